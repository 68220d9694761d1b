package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// TicketEntry is one booking as shown on a user's ticket history, with the
// slot's current rate for display next to the stored total.
type TicketEntry struct {
	Booking
	CurrentSlotPrice null.Float `json:"currentSlotPrice"`
}

type TicketHistory struct {
	Username    string        `json:"username"`
	User        *UserProfile  `json:"user,omitempty"`
	Entries     []TicketEntry `json:"bookings"`
	Count       int           `json:"count"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// StationQueue is what a manager works through for one station.
type StationQueue struct {
	City     string    `json:"city,omitempty"`
	Station  string    `json:"station"`
	Bookings []Booking `json:"bookings"`
	Pending  int       `json:"pending"`
}
