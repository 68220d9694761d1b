package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"parking_network/internal/domain"
	"parking_network/internal/lock"
	"parking_network/internal/metrics"
	"parking_network/internal/repository"
)

type BookingService struct {
	bookings       repository.BookingRepository
	inventory      *InventoryService
	locker         lock.Locker
	auth           *Authorizer
	strictCheckout bool
	now            func() time.Time
	log            *zap.Logger
}

func NewBookingService(
	bookings repository.BookingRepository,
	inventory *InventoryService,
	locker lock.Locker,
	auth *Authorizer,
	strictCheckout bool,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:       bookings,
		inventory:      inventory,
		locker:         locker,
		auth:           auth,
		strictCheckout: strictCheckout,
		now:            time.Now,
		log:            log,
	}
}

// CreateBooking records a reservation against an existing slot. The total
// price is fixed here and never recomputed from later slot prices.
func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, req domain.ReservationRequest) (*domain.Booking, error) {
	bookedBy := strings.TrimSpace(req.BookedBy)
	switch actor.Role {
	case domain.ActorUser:
		bookedBy = actor.Username
	case domain.ActorAdmin, domain.ActorSystem:
		if bookedBy == "" {
			return nil, fmt.Errorf("%w: BookedBy is required", ErrInvalidBooking)
		}
	default:
		return nil, fmt.Errorf("%w: %s cannot create bookings", ErrForbidden, actor.Role)
	}

	slotNumber, ok := req.SlotNumber()
	if !ok {
		return nil, fmt.Errorf("%w: slot %q", ErrInvalidBooking, req.Slot)
	}
	checkIn, err := domain.ParseDateTime(req.CheckInDate, req.CheckInTime)
	if err != nil {
		return nil, fmt.Errorf("%w: check-in: %v", ErrInvalidBooking, err)
	}
	checkOut, err := domain.ParseDateTime(req.CheckOutDate, req.CheckOutTime)
	if err != nil {
		return nil, fmt.Errorf("%w: check-out: %v", ErrInvalidBooking, err)
	}
	if !checkOut.After(checkIn) {
		return nil, fmt.Errorf("%w: check-out %s is not after check-in %s", ErrInvalidBooking, checkOut.Format(time.DateTime), checkIn.Format(time.DateTime))
	}

	city, station, slot, err := s.inventory.ResolveSlot(ctx, req.City, req.ParkingStation, slotNumber)
	if err != nil {
		return nil, err
	}

	total, quoted := req.QuotedPrice()
	if !quoted {
		total = slot.Price * math.Ceil(checkOut.Sub(checkIn).Hours())
	}

	booking := &domain.Booking{
		BookedBy:       bookedBy,
		City:           city.Name,
		ParkingStation: station.Name,
		Slot:           slot.SlotNumber,
		CheckInDate:    checkIn.Format(domain.DateLayout),
		CheckInTime:    checkIn.Format(domain.TimeLayout),
		CheckOutDate:   checkOut.Format(domain.DateLayout),
		CheckOutTime:   checkOut.Format(domain.TimeLayout),
		TotalPrice:     total,
		Status:         domain.BookingRequested,
		Payment:        domain.PaymentPending,
		CreatedAt:      null.TimeFrom(s.now().UTC()),
	}
	created, err := s.bookings.Create(ctx, booking)
	if err != nil {
		s.log.Error("booking create failed", zap.String("city", city.Name), zap.String("station", station.Name), zap.Error(err))
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues("create", "applied").Inc()
	s.log.Info("booking created",
		zap.String("booking_id", created.ID),
		zap.String("city", created.City),
		zap.String("station", created.ParkingStation),
		zap.Float64("slot", created.Slot),
		zap.String("booked_by", created.BookedBy),
		zap.Float64("total_price", created.TotalPrice))
	return created, nil
}

// bookingChange returns the fields to patch, or nil if the change is already applied.
type bookingChange func(b *domain.Booking, now string) (map[string]any, error)

func (s *BookingService) transition(ctx context.Context, actor domain.Actor, id, name string, change bookingChange) (*domain.Booking, error) {
	release, err := s.locker.Lock(ctx, "booking:"+id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		current, err := s.bookings.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.auth.RequireBookingAccess(ctx, actor, current); err != nil {
			return nil, err
		}
		if actor.Role == domain.ActorUser {
			return nil, fmt.Errorf("%w: customers cannot %s bookings", ErrForbidden, name)
		}
		fields, err := change(current, s.now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			metrics.BookingTransitions.WithLabelValues(name, "rejected").Inc()
			return nil, err
		}
		if fields == nil {
			metrics.BookingTransitions.WithLabelValues(name, "noop").Inc()
			return current, nil
		}

		updated, err := s.bookings.Patch(ctx, id, current.Version, fields)
		if err == nil {
			metrics.BookingTransitions.WithLabelValues(name, "applied").Inc()
			s.log.Info("booking "+name,
				zap.String("booking_id", id),
				zap.String("city", updated.City),
				zap.String("station", updated.ParkingStation),
				zap.String("actor", actor.Username))
			return updated, nil
		}
		if errors.Is(err, repository.ErrStaleWrite) && attempt == 0 {
			metrics.StaleWriteRetries.WithLabelValues(repository.CollectionBookings).Inc()
			s.log.Warn("stale booking write, retrying", zap.String("booking_id", id), zap.String("transition", name), zap.Error(err))
			continue
		}
		if !errors.Is(err, repository.ErrStaleWrite) {
			s.log.Error("booking write failed", zap.String("booking_id", id), zap.String("transition", name), zap.Error(err))
		}
		return nil, err
	}
}

// Approve moves a booking from requested to approved.
func (s *BookingService) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	return s.transition(ctx, actor, id, "approve", func(b *domain.Booking, now string) (map[string]any, error) {
		if b.IsApproved() {
			return nil, nil
		}
		return map[string]any{"status": string(domain.BookingApproved), "approvedAt": now}, nil
	})
}

func (s *BookingService) CheckIn(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	return s.transition(ctx, actor, id, "check_in", func(b *domain.Booking, now string) (map[string]any, error) {
		if b.CheckedIn {
			return nil, nil
		}
		return map[string]any{"CheckedIn": true, "checkedInAt": now}, nil
	})
}

// CheckOut requires a prior check-in unless strict checkout is disabled.
func (s *BookingService) CheckOut(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	return s.transition(ctx, actor, id, "check_out", func(b *domain.Booking, now string) (map[string]any, error) {
		if b.CheckedOut {
			return nil, nil
		}
		if s.strictCheckout && !b.CheckedIn {
			return nil, fmt.Errorf("%w: booking %s", ErrInvalidTransition, b.ID)
		}
		return map[string]any{"CheckedOut": true, "checkedOutAt": now}, nil
	})
}

// MarkPaid moves payment from pending to success. Lifecycle status is untouched.
func (s *BookingService) MarkPaid(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	return s.transition(ctx, actor, id, "mark_paid", func(b *domain.Booking, now string) (map[string]any, error) {
		if b.IsPaid() {
			return nil, nil
		}
		return map[string]any{"payment": string(domain.PaymentSuccess), "paidAt": now}, nil
	})
}

func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auth.RequireBookingAccess(ctx, actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByStation returns the station's bookings in creation order. The name
// is matched the way CreateBooking resolves it; managers see only their city.
func (s *BookingService) ListByStation(ctx context.Context, actor domain.Actor, station string) ([]domain.Booking, error) {
	scope, err := s.auth.StationScope(ctx, actor, station)
	if err != nil {
		return nil, err
	}
	bookings, err := s.stationBookings(ctx, station)
	if err != nil {
		return nil, err
	}
	if scope == "" {
		return bookings, nil
	}
	return slices.DeleteFunc(bookings, func(b domain.Booking) bool {
		return !domain.SameName(b.City, scope)
	}), nil
}

// stationBookings looks bookings up under every stored spelling of station.
func (s *BookingService) stationBookings(ctx context.Context, station string) ([]domain.Booking, error) {
	names, err := s.inventory.StationNames(ctx, station)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = []string{station}
	}
	var out []domain.Booking
	for _, name := range names {
		found, err := s.bookings.FindByStation(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	if len(names) > 1 {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time)
		})
	}
	if out == nil {
		out = []domain.Booking{}
	}
	return out, nil
}

// ListByUser returns a user's bookings together with their count.
func (s *BookingService) ListByUser(ctx context.Context, actor domain.Actor, username string) ([]domain.Booking, int, error) {
	if err := s.auth.RequireUser(actor, username); err != nil {
		return nil, 0, err
	}
	bookings, err := s.bookings.FindByUser(ctx, username)
	if err != nil {
		return nil, 0, err
	}
	return bookings, len(bookings), nil
}

// FindBookings narrows the filter to what actor may see, then applies it.
func (s *BookingService) FindBookings(ctx context.Context, actor domain.Actor, filter domain.BookingFilter) ([]domain.Booking, error) {
	switch actor.Role {
	case domain.ActorUser:
		if filter.User != "" && filter.User != actor.Username {
			return nil, fmt.Errorf("%w: %q cannot list %q", ErrForbidden, actor.Username, filter.User)
		}
		filter.User = actor.Username
	case domain.ActorManager:
		m, err := s.auth.ManagedStation(ctx, actor)
		if err != nil {
			return nil, err
		}
		if filter.Station != "" && !domain.SameName(filter.Station, m.ParkingStationName) {
			return nil, fmt.Errorf("%w: %q manages %q", ErrForbidden, actor.Username, m.ParkingStationName)
		}
		if m.City != "" && filter.City != "" && !domain.SameName(filter.City, m.City) {
			return nil, fmt.Errorf("%w: %q manages %q in %q", ErrForbidden, actor.Username, m.ParkingStationName, m.City)
		}
		filter.Station = m.ParkingStationName
		if m.City != "" {
			filter.City = m.City
		}
	}

	var (
		candidates []domain.Booking
		err        error
	)
	switch {
	case filter.Station != "":
		candidates, err = s.stationBookings(ctx, filter.Station)
	case filter.User != "":
		candidates, err = s.bookings.FindByUser(ctx, filter.User)
	default:
		candidates, err = s.bookings.FindAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(candidates))
	for _, b := range candidates {
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	return out, nil
}
