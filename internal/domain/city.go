package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type EmployeeRole string

const (
	RoleManager  EmployeeRole = "Manager"
	RoleStaff    EmployeeRole = "Staff"
	RoleSecurity EmployeeRole = "Security"
)

// ParseEmployeeRole accepts a role name in any letter case.
func ParseEmployeeRole(s string) (EmployeeRole, bool) {
	for _, r := range []EmployeeRole{RoleManager, RoleStaff, RoleSecurity} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, true
		}
	}
	return "", false
}

// City is the persisted city-location document. Stations, slots and
// employees are embedded and only ever written as part of the whole document.
type City struct {
	ID              string    `json:"id"`
	Name            string    `json:"city"`
	ParkingStations []Station `json:"parkingStations"`
	Version         int64     `json:"version"`
}

type Station struct {
	Name      string     `json:"name"`
	Employees []Employee `json:"employees"`
	Slots     []Slot     `json:"slots"`
}

// Slot numbers are decimals: legacy forms accept values such as 2.5, and
// 2.5 and 2 are different slots.
type Slot struct {
	SlotNumber float64 `json:"slotNumber"`
	Price      float64 `json:"price"`

	stored storedSlot
}

// storedSlot keeps fields that were not plain JSON numbers exactly as read.
// They are written back verbatim until the decoded value is changed.
type storedSlot struct {
	number    json.RawMessage
	numberVal float64
	numberOK  bool
	price     json.RawMessage
	priceVal  float64
}

type Employee struct {
	ID      string       `json:"id,omitempty"`
	Name    string       `json:"name"`
	Role    EmployeeRole `json:"role"`
	Contact string       `json:"contact"`
}

// UnmarshalJSON tolerates documents written by form-driven clients, which
// store slot numbers and prices as strings, sometimes empty.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw struct {
		SlotNumber json.RawMessage `json:"slotNumber"`
		Price      json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Slot
	number, verbatim, ok, err := decodeField(raw.SlotNumber)
	if err != nil {
		return fmt.Errorf("slotNumber: %w", err)
	}
	out.SlotNumber = number
	if verbatim != nil {
		out.stored.number, out.stored.numberVal, out.stored.numberOK = verbatim, number, ok
	}
	price, verbatim, _, err := decodeField(raw.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	out.Price = price
	if verbatim != nil {
		out.stored.price, out.stored.priceVal = verbatim, price
	}
	*s = out
	return nil
}

func (s Slot) MarshalJSON() ([]byte, error) {
	number, err := encodeField(s.SlotNumber, s.stored.number, s.stored.numberVal)
	if err != nil {
		return nil, fmt.Errorf("slotNumber: %w", err)
	}
	price, err := encodeField(s.Price, s.stored.price, s.stored.priceVal)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	return json.Marshal(struct {
		SlotNumber json.RawMessage `json:"slotNumber"`
		Price      json.RawMessage `json:"price"`
	}{number, price})
}

// HasNumber is false for slots whose stored number is not a number at all.
// Such slots are kept but never matched by number.
func (s Slot) HasNumber() bool {
	if s.stored.number == nil || s.SlotNumber != s.stored.numberVal {
		return true
	}
	return s.stored.numberOK
}

// decodeField reads a JSON number as is. Strings and null are also returned
// verbatim so they can be written back unchanged; ok reports whether they
// held a number.
func decodeField(raw json.RawMessage) (value float64, verbatim json.RawMessage, ok bool, err error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && string(raw) != "null" {
		return f, nil, true, nil
	}
	verbatim = append(json.RawMessage{}, raw...)
	if string(raw) == "null" {
		return 0, verbatim, false, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, nil, false, fmt.Errorf("want a number or a string, got %s", raw)
	}
	f, err = strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, verbatim, false, nil
	}
	return f, verbatim, true, nil
}

func encodeField(value float64, verbatim json.RawMessage, decoded float64) (json.RawMessage, error) {
	if verbatim != nil && value == decoded {
		return verbatim, nil
	}
	return json.Marshal(value)
}

// decodeNumber reads a number that may be written as a string. Empty and
// null read as zero; any other non-numeric text is an error.
func decodeNumber(raw json.RawMessage) (float64, error) {
	f, verbatim, ok, err := decodeField(raw)
	if err != nil || ok || verbatim == nil {
		return f, err
	}
	var text string
	if json.Unmarshal(verbatim, &text) == nil && strings.TrimSpace(text) != "" {
		return 0, fmt.Errorf("not a number: %s", verbatim)
	}
	return 0, nil
}

// Clone returns a deep copy so a transformation never touches the snapshot
// it was read from.
func (c City) Clone() City {
	out := c
	out.ParkingStations = make([]Station, len(c.ParkingStations))
	for i, st := range c.ParkingStations {
		cp := Station{Name: st.Name}
		cp.Slots = append([]Slot{}, st.Slots...)
		cp.Employees = append([]Employee{}, st.Employees...)
		out.ParkingStations[i] = cp
	}
	return out
}

// StationIndex finds a station by exact name, falling back to a trimmed
// case-insensitive match. It returns -1 if neither matches.
func (c City) StationIndex(name string) int {
	for i, st := range c.ParkingStations {
		if st.Name == name {
			return i
		}
	}
	want := strings.TrimSpace(name)
	for i, st := range c.ParkingStations {
		if strings.EqualFold(strings.TrimSpace(st.Name), want) {
			return i
		}
	}
	return -1
}

func (s Station) FindSlot(number float64) (Slot, bool) {
	for _, slot := range s.Slots {
		if slot.HasNumber() && slot.SlotNumber == number {
			return slot, true
		}
	}
	return Slot{}, false
}

// SameName reports whether two city or station names refer to the same
// thing under lookup rules (trimmed, case-insensitive).
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ParseSlotNumber validates a non-negative decimal slot number given as free text.
func ParseSlotNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ParsePrice validates a non-negative finite price given as free text.
func ParsePrice(s string) (float64, bool) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}

type CityDTO struct {
	Name string `json:"city" binding:"required"`
}

type StationDTO struct {
	Name string `json:"name" binding:"required"`
}

// SlotDTO carries raw form values; validation happens in the service so a
// malformed number is reported as an invalid slot rather than a bind error.
type SlotDTO struct {
	SlotNumber FormValue `json:"slotNumber"`
	Price      FormValue `json:"price"`
}

type SlotPriceDTO struct {
	Price FormValue `json:"price"`
}

// FormValue holds a JSON number or string verbatim as text.
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = FormValue(s)
		return nil
	}
	if string(data) == "null" {
		*v = ""
		return nil
	}
	*v = FormValue(strings.TrimSpace(string(data)))
	return nil
}

func (v FormValue) String() string { return string(v) }

type EmployeeDTO struct {
	Name    string `json:"name" binding:"required"`
	Role    string `json:"role" binding:"required"`
	Contact string `json:"contact" binding:"required"`
}

type EmployeeRoleDTO struct {
	Role string `json:"role" binding:"required"`
}
