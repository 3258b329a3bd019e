package model

import (
	"slotbook/shared/model"
)

const (
	TableName  = "slots"
	EntityName = "slot"

	FieldID          = "id"
	FieldSlotDate    = "slot_date"
	FieldSlotTime    = "slot_time"
	FieldCapacity    = "capacity"
	FieldBookedCount = "booked_count"
	FieldDescription = "description"
)

// Slot date and time are opaque comparable tokens ("2006-01-02", "15:04").
// They are validated at the edge and compared for equality only, never
// interpreted as calendar values, so no timezone can shift them.
type Slot struct {
	ID          string  `db:"id"`
	SlotDate    string  `db:"slot_date"`
	SlotTime    string  `db:"slot_time"`
	Capacity    int     `db:"capacity"`
	BookedCount int     `db:"booked_count"`
	Description *string `db:"description"`
	model.Metadata
}

// Available reports how many seats remain on the slot.
func (s *Slot) Available() int {
	remaining := s.Capacity - s.BookedCount
	if remaining < 0 {
		return 0
	}

	return remaining
}
