package repository

import (
	"context"
	"encoding/json"
	"errors"

	"parking_network/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrStaleWrite = errors.New("record was modified since it was read")
var ErrStoreUnavailable = errors.New("record store unavailable")

// Collection names shared with the reservation front end.
const (
	CollectionCities   = "cityLocations"
	CollectionBookings = "bookingHistory"
	CollectionManagers = "managers"
	CollectionUsers    = "users"
)

// Record is one keyed document. Version starts at 1 on Create and is bumped
// by every successful Replace or Patch.
type Record struct {
	ID      string
	Version int64
	Body    json.RawMessage
}

// RecordStore is the generic keyed-record storage every backend implements.
// Replace and Patch are compare-and-swap on Version and fail with
// ErrStaleWrite when the stored version differs from expectedVersion.
type RecordStore interface {
	List(ctx context.Context, collection string) ([]Record, error)
	// Find returns records whose top-level string field equals value.
	Find(ctx context.Context, collection, field, value string) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	Replace(ctx context.Context, collection, id string, expectedVersion int64, body json.RawMessage) (Record, error)
	Patch(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]any) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	Close(ctx context.Context) error
}

type CityRepository interface {
	FindAll(ctx context.Context) ([]domain.City, error)
	FindByID(ctx context.Context, id string) (*domain.City, error)
	Create(ctx context.Context, city *domain.City) (*domain.City, error)
	// Replace writes the whole document if city.Version is still current.
	Replace(ctx context.Context, city *domain.City) (*domain.City, error)
	Delete(ctx context.Context, id string) error
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error)
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	FindAll(ctx context.Context) ([]domain.Booking, error)
	FindByStation(ctx context.Context, station string) ([]domain.Booking, error)
	FindByUser(ctx context.Context, username string) ([]domain.Booking, error)
	// Patch merges fields into the booking if version is still current.
	Patch(ctx context.Context, id string, version int64, fields map[string]any) (*domain.Booking, error)
}

type ManagerRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Manager, error)
}

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.UserProfile, error)
}

// MergeFields applies a shallow field merge to a JSON object body.
func MergeFields(body json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	doc := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	return json.Marshal(doc)
}

// FieldEquals reports whether the top-level field of body is the string value.
func FieldEquals(body json.RawMessage, field, value string) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	raw, ok := doc[field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == value
}
