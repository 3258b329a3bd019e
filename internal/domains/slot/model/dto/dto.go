package dto

import (
	"slotbook/internal/domains/slot/model"
	"slotbook/shared"
	gDto "slotbook/shared/dto"
	gModel "slotbook/shared/model"
	"slotbook/shared/timezone"

	"github.com/google/uuid"
)

type CreateSlotRequest struct {
	Date        string  `json:"date"                  validate:"required,datetime=2006-01-02"`
	Time        string  `json:"time"                  validate:"required,datetime=15:04"`
	Capacity    int     `json:"capacity"              validate:"required,min=1"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
}

func (c *CreateSlotRequest) ToModel(user string) model.Slot {
	return model.Slot{
		ID:          uuid.NewString(),
		SlotDate:    c.Date,
		SlotTime:    c.Time,
		Capacity:    c.Capacity,
		BookedCount: 0,
		Description: c.Description,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type SlotResponse struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Capacity    int     `json:"capacity"`
	BookedCount int     `json:"booked_count"`
	Available   int     `json:"available"`
	Description *string `json:"description,omitempty"`
	gDto.Metadata
}

func (s *SlotResponse) FromModel(model model.Slot) {
	s.ID = model.ID
	s.Date = model.SlotDate
	s.Time = model.SlotTime
	s.Capacity = model.Capacity
	s.BookedCount = model.BookedCount
	s.Available = model.Available()
	s.Description = model.Description
	s.Metadata.FromModel(model.Metadata)
}

type GetSlotsResponse struct {
	Slots     []SlotResponse `json:"slots"`
	TotalPage int            `json:"total_page"`
	TotalData int            `json:"total_data"`
}

func (g *GetSlotsResponse) FromModels(models []model.Slot, totalData, limit int) {
	g.TotalData = totalData
	g.TotalPage = shared.CalculateTotalPage(totalData, limit)

	g.Slots = make([]SlotResponse, len(models))
	for i, mod := range models {
		g.Slots[i].FromModel(mod)
	}
}
