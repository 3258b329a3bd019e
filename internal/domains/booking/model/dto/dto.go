package dto

import (
	"slotbook/internal/domains/booking/model"
	"slotbook/shared"
	"slotbook/shared/constant"
	gDto "slotbook/shared/dto"
	gModel "slotbook/shared/model"
	"slotbook/shared/timezone"

	"github.com/google/uuid"
)

// NewBookingModel builds a confirmed booking for the given user and slot.
func NewBookingModel(userID, slotID string) model.Booking {
	return model.Booking{
		ID:     uuid.NewString(),
		UserID: userID,
		SlotID: slotID,
		Status: constant.BookingStatusConfirmed,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  userID,
			ModifiedBy: userID,
		},
	}
}

type BookResponse struct {
	ID     string `json:"id"`
	SlotID string `json:"slot_id"`
	Status string `json:"status"`
}

func (b *BookResponse) FromModel(model model.Booking) {
	b.ID = model.ID
	b.SlotID = model.SlotID
	b.Status = model.Status
}

type BookingResponse struct {
	ID              string  `json:"id"`
	SlotID          string  `json:"slot_id"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	SlotDescription *string `json:"slot_description,omitempty"`
	Status          string  `json:"status"`
	CancelledAt     *string `json:"cancelled_at,omitempty"`
	UserID          string  `json:"user_id"`
	UserEmail       string  `json:"user_email"`
	UserFullName    *string `json:"user_full_name,omitempty"`
	gDto.Metadata
}

func (b *BookingResponse) FromModel(model model.BookingDetail) {
	b.ID = model.ID
	b.SlotID = model.SlotID
	b.Date = model.SlotDate
	b.Time = model.SlotTime
	b.SlotDescription = model.SlotDescription
	b.Status = model.Status
	b.UserID = model.UserID
	b.UserEmail = model.UserEmail
	b.UserFullName = model.UserFullName

	if model.CancelledAt != nil {
		cancelledAt := timezone.Format(*model.CancelledAt, constant.DateFormat)
		b.CancelledAt = &cancelledAt
	}

	b.Metadata.FromModel(model.Metadata)
}

type GetBookingsResponse struct {
	Bookings  []BookingResponse `json:"bookings"`
	TotalPage int               `json:"total_page"`
	TotalData int               `json:"total_data"`
}

func (g *GetBookingsResponse) FromModels(models []model.BookingDetail, totalData, limit int) {
	g.TotalData = totalData
	g.TotalPage = shared.CalculateTotalPage(totalData, limit)

	g.Bookings = make([]BookingResponse, len(models))
	for i, mod := range models {
		g.Bookings[i].FromModel(mod)
	}
}
