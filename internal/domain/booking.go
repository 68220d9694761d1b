package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

type BookingStatus string

const (
	BookingRequested BookingStatus = "requested"
	BookingApproved  BookingStatus = "approved"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentSuccess PaymentStatus = "Success"
)

const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04"
	dateTimeLayout = DateLayout + " " + TimeLayout
)

// Booking is the persisted booking-history record. JSON names follow the
// record layout shared with the reservation front end.
type Booking struct {
	ID             string        `json:"id"`
	BookedBy       string        `json:"BookedBy"`
	City           string        `json:"city"`
	ParkingStation string        `json:"parkingStation"`
	Slot           float64       `json:"slot"`
	CheckInDate    string        `json:"checkInDate"`
	CheckInTime    string        `json:"checkInTime"`
	CheckOutDate   string        `json:"checkOutDate"`
	CheckOutTime   string        `json:"checkOutTime"`
	TotalPrice     float64       `json:"totalPrice"`
	Status         BookingStatus `json:"status"`
	Payment        PaymentStatus `json:"payment"`
	CheckedIn      bool          `json:"CheckedIn"`
	CheckedOut     bool          `json:"CheckedOut"`

	CreatedAt    null.Time `json:"createdAt"`
	ApprovedAt   null.Time `json:"approvedAt"`
	CheckedInAt  null.Time `json:"checkedInAt"`
	CheckedOutAt null.Time `json:"checkedOutAt"`
	PaidAt       null.Time `json:"paidAt"`

	Version int64 `json:"version"`
}

// UnmarshalJSON accepts slot and totalPrice written as strings by older clients.
func (b *Booking) UnmarshalJSON(data []byte) error {
	type plain Booking
	var raw struct {
		plain
		Slot       json.RawMessage `json:"slot"`
		TotalPrice json.RawMessage `json:"totalPrice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	slot, err := decodeNumber(raw.Slot)
	if err != nil {
		return fmt.Errorf("slot: %w", err)
	}
	total, err := decodeNumber(raw.TotalPrice)
	if err != nil {
		return fmt.Errorf("totalPrice: %w", err)
	}
	*b = Booking(raw.plain)
	b.Slot = slot
	b.TotalPrice = total
	return nil
}

func (b Booking) IsApproved() bool {
	return strings.EqualFold(string(b.Status), string(BookingApproved))
}

func (b Booking) IsPaid() bool {
	return strings.EqualFold(string(b.Payment), string(PaymentSuccess))
}

func (b Booking) CheckInAt() (time.Time, error) {
	return ParseDateTime(b.CheckInDate, b.CheckInTime)
}

func (b Booking) CheckOutAt() (time.Time, error) {
	return ParseDateTime(b.CheckOutDate, b.CheckOutTime)
}

func ParseDateTime(date, clock string) (time.Time, error) {
	return time.Parse(dateTimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock))
}

// ReservationRequest is what a customer-facing client submits to reserve a slot.
type ReservationRequest struct {
	BookedBy       string    `json:"BookedBy"`
	City           string    `json:"city" binding:"required"`
	ParkingStation string    `json:"parkingStation" binding:"required"`
	Slot           FormValue `json:"slot" binding:"required"`
	CheckInDate    string    `json:"checkInDate" binding:"required"`
	CheckInTime    string    `json:"checkInTime" binding:"required"`
	CheckOutDate   string    `json:"checkOutDate" binding:"required"`
	CheckOutTime   string    `json:"checkOutTime" binding:"required"`
	TotalPrice     FormValue `json:"totalPrice,omitempty"`
}

func (r ReservationRequest) SlotNumber() (float64, bool) {
	return ParseSlotNumber(r.Slot.String())
}

// QuotedPrice is the client-supplied total, if any.
func (r ReservationRequest) QuotedPrice() (float64, bool) {
	if strings.TrimSpace(r.TotalPrice.String()) == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(r.TotalPrice.String()), 64)
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}

// BookingFilter matches city and station names the way lookups do;
// status and payment ignore letter case.
type BookingFilter struct {
	City    string `form:"city"`
	Station string `form:"station"`
	User    string `form:"user"`
	Status  string `form:"status"`
	Payment string `form:"payment"`
}

func (f BookingFilter) Matches(b Booking) bool {
	if f.City != "" && !SameName(b.City, f.City) {
		return false
	}
	if f.Station != "" && !SameName(b.ParkingStation, f.Station) {
		return false
	}
	if f.User != "" && b.BookedBy != f.User {
		return false
	}
	if f.Status != "" && !strings.EqualFold(string(b.Status), f.Status) {
		return false
	}
	if f.Payment != "" && !strings.EqualFold(string(b.Payment), f.Payment) {
		return false
	}
	return true
}
