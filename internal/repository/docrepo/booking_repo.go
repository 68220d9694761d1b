package docrepo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

type bookingRepository struct {
	base
}

func NewBookingRepository(store repository.RecordStore, timeout time.Duration) repository.BookingRepository {
	return &bookingRepository{base{store: store, timeout: timeout}}
}

func toBooking(rec repository.Record) (*domain.Booking, error) {
	b, err := decode[domain.Booking](rec)
	if err != nil {
		return nil, err
	}
	b.ID = rec.ID
	b.Version = rec.Version
	return b, nil
}

func toBookings(recs []repository.Record) ([]domain.Booking, error) {
	out := make([]domain.Booking, 0, len(recs))
	for _, rec := range recs {
		b, err := toBooking(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	var created *domain.Booking
	err := r.call(ctx, "BookingRepository.Create", func(ctx context.Context) error {
		body, err := encodeBooking(booking)
		if err != nil {
			return err
		}
		rec, err := r.store.Create(ctx, repository.CollectionBookings, repository.Record{ID: booking.ID, Body: body})
		if err != nil {
			return err
		}
		out := *booking
		out.Version = rec.Version
		created = &out
		return nil
	})
	return created, err
}

func (r *bookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := r.call(ctx, "BookingRepository.FindByID", func(ctx context.Context) error {
		rec, err := r.store.Get(ctx, repository.CollectionBookings, id)
		if err != nil {
			return err
		}
		booking, err = toBooking(rec)
		return err
	})
	return booking, err
}

func (r *bookingRepository) FindAll(ctx context.Context) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.call(ctx, "BookingRepository.FindAll", func(ctx context.Context) error {
		recs, err := r.store.List(ctx, repository.CollectionBookings)
		if err != nil {
			return err
		}
		bookings, err = toBookings(recs)
		return err
	})
	return bookings, err
}

func (r *bookingRepository) findBy(ctx context.Context, op, field, value string) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.call(ctx, op, func(ctx context.Context) error {
		recs, err := r.store.Find(ctx, repository.CollectionBookings, field, value)
		if err != nil {
			return err
		}
		bookings, err = toBookings(recs)
		return err
	})
	return bookings, err
}

func (r *bookingRepository) FindByStation(ctx context.Context, station string) ([]domain.Booking, error) {
	return r.findBy(ctx, "BookingRepository.FindByStation", "parkingStation", station)
}

func (r *bookingRepository) FindByUser(ctx context.Context, username string) ([]domain.Booking, error) {
	return r.findBy(ctx, "BookingRepository.FindByUser", "BookedBy", username)
}

func (r *bookingRepository) Patch(ctx context.Context, id string, version int64, fields map[string]any) (*domain.Booking, error) {
	var booking *domain.Booking
	err := r.call(ctx, "BookingRepository.Patch", func(ctx context.Context) error {
		rec, err := r.store.Patch(ctx, repository.CollectionBookings, id, version, fields)
		if err != nil {
			return err
		}
		booking, err = toBooking(rec)
		return err
	})
	return booking, err
}
