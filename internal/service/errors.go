package service

import "errors"

var ErrDuplicateCity = errors.New("city already exists")
var ErrDuplicateStation = errors.New("station already exists in this city")
var ErrDuplicateSlot = errors.New("slot number already exists on this station")
var ErrInvalidSlot = errors.New("slot number and price must be non-negative numbers")
var ErrInvalidEmployee = errors.New("employee name, role and contact are required; role must be Manager, Staff or Security")
var ErrInvalidBooking = errors.New("booking dates are malformed or check-out is not after check-in")
var ErrStationNotFound = errors.New("station not found")
var ErrSlotNotFound = errors.New("slot not found")
var ErrInvalidTransition = errors.New("booking cannot be checked out before it is checked in")
var ErrForbidden = errors.New("not allowed for this account")
var ErrInvalidName = errors.New("name must not be empty")
var ErrEmployeeNotFound = errors.New("employee not found")
