package models

// Slot names one of the two demo upload positions
type Slot string

const (
	SlotPast    Slot = "past"
	SlotCurrent Slot = "current"
)

// Slots lists the upload positions in display order
var Slots = []Slot{SlotPast, SlotCurrent}

// ParseSlot maps a route or form value to a Slot
func ParseSlot(s string) (Slot, bool) {
	switch Slot(s) {
	case SlotPast, SlotCurrent:
		return Slot(s), true
	}
	return "", false
}

// FieldName is the multipart field the analysis service reads the slot's file from
func (s Slot) FieldName() string {
	return string(s) + "_image"
}

// Label is the heading shown above the slot
func (s Slot) Label() string {
	switch s {
	case SlotPast:
		return "Past Image"
	case SlotCurrent:
		return "Current Image"
	}
	return string(s)
}
