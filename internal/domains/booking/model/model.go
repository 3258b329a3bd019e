package model

import (
	"slotbook/shared/model"
	"time"
)

const (
	TableName  = "bookings"
	EntityName = "booking"

	DetailEntityName = "booking_detail"

	FieldID          = "id"
	FieldUserID      = "user_id"
	FieldSlotID      = "slot_id"
	FieldStatus      = "status"
	FieldCancelledAt = "cancelled_at"
)

type Booking struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	SlotID      string     `db:"slot_id"`
	Status      string     `db:"status"`
	CancelledAt *time.Time `db:"cancelled_at"`
	model.Metadata
}

// BookingDetail is the read model for booking listings, joined with the
// slot being booked and the user who booked it.
type BookingDetail struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	SlotID          string     `db:"slot_id"`
	Status          string     `db:"status"`
	CancelledAt     *time.Time `db:"cancelled_at"`
	SlotDate        string     `db:"slot_date"        table:"slots"`
	SlotTime        string     `db:"slot_time"        table:"slots"`
	SlotDescription *string    `db:"slot_description" table:"slots" column:"description"`
	UserEmail       string     `db:"user_email"       table:"users" column:"email"`
	UserFullName    *string    `db:"user_full_name"   table:"users" column:"full_name"`
	model.Metadata
}

func (BookingDetail) GetJoinQuery() string {
	return "JOIN slots ON slots.id = bookings.slot_id JOIN users ON users.id = bookings.user_id"
}
