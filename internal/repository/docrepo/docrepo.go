// Package docrepo maps domain types onto a RecordStore. Every store call is
// bounded by the configured timeout.
package docrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

type base struct {
	store   repository.RecordStore
	timeout time.Duration
}

func (b base) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, repository.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, err)
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrStaleWrite) || errors.Is(err, repository.ErrDuplicateEntry) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// The version lives on the record, not in its body. These views shadow the
// domain Version field so it is never persisted.
type (
	cityBody struct {
		*domain.City
		Version *int64 `json:"version,omitempty"`
	}
	bookingBody struct {
		*domain.Booking
		Version *int64 `json:"version,omitempty"`
	}
)

func encodeCity(c *domain.City) (json.RawMessage, error) {
	return json.Marshal(cityBody{City: c})
}

func encodeBooking(b *domain.Booking) (json.RawMessage, error) {
	return json.Marshal(bookingBody{Booking: b})
}

func decode[T any](rec repository.Record) (*T, error) {
	var v T
	if err := json.Unmarshal(rec.Body, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rec.ID, err)
	}
	return &v, nil
}
