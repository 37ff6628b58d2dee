package domain

type RoomType string

const (
	RoomTypeLuxus      RoomType = "Luxus Room"
	RoomTypeAffordable RoomType = "Affordable Room"
	RoomTypeTiedBudget RoomType = "Tied-Budget Room"
	RoomTypeDouble     RoomType = "Double Room"
)

// RoomTypes lists the bookable room types in display order.
func RoomTypes() []RoomType {
	return []RoomType{RoomTypeLuxus, RoomTypeAffordable, RoomTypeTiedBudget, RoomTypeDouble}
}

// Valid reports whether r is exactly one of the canonical room types.
func (r RoomType) Valid() bool {
	switch r {
	case RoomTypeLuxus, RoomTypeAffordable, RoomTypeTiedBudget, RoomTypeDouble:
		return true
	default:
		return false
	}
}
