package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

var ErrArchiveDisabled = errors.New("ticket history archive is not configured")

type HistoryRenderer interface {
	Render(history domain.TicketHistory) ([]byte, error)
}

type HistoryArchiver interface {
	Archive(ctx context.Context, key string, pdf []byte) (string, error)
}

// QueryService builds read-only views over inventory and bookings.
type QueryService struct {
	inventory *InventoryService
	bookings  *BookingService
	users     repository.UserRepository
	auth      *Authorizer
	renderer  HistoryRenderer
	archiver  HistoryArchiver
	log       *zap.Logger
}

func NewQueryService(
	inventory *InventoryService,
	bookings *BookingService,
	users repository.UserRepository,
	auth *Authorizer,
	renderer HistoryRenderer,
	archiver HistoryArchiver,
	log *zap.Logger,
) *QueryService {
	return &QueryService{
		inventory: inventory,
		bookings:  bookings,
		users:     users,
		auth:      auth,
		renderer:  renderer,
		archiver:  archiver,
		log:       log,
	}
}

func queueOf(station, city string, bookings []domain.Booking) *domain.StationQueue {
	q := &domain.StationQueue{City: city, Station: station, Bookings: bookings}
	for _, b := range bookings {
		if !b.IsApproved() || !b.CheckedOut || !b.IsPaid() {
			q.Pending++
		}
	}
	return q
}

func (s *QueryService) StationQueue(ctx context.Context, actor domain.Actor, station string) (*domain.StationQueue, error) {
	bookings, err := s.bookings.ListByStation(ctx, actor, station)
	if err != nil {
		return nil, err
	}
	return queueOf(station, "", bookings), nil
}

// ManagerQueue shows the bookings of the station assigned to the acting manager.
func (s *QueryService) ManagerQueue(ctx context.Context, actor domain.Actor) (*domain.StationQueue, error) {
	m, err := s.auth.ManagedStation(ctx, actor)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByStation(ctx, actor, m.ParkingStationName)
	if err != nil {
		return nil, err
	}
	return queueOf(m.ParkingStationName, m.City, bookings), nil
}

// UserTicketHistory lists a user's bookings with each slot's current rate.
// The stored total price is shown as booked.
func (s *QueryService) UserTicketHistory(ctx context.Context, actor domain.Actor, username string) (*domain.TicketHistory, error) {
	bookings, count, err := s.bookings.ListByUser(ctx, actor, username)
	if err != nil {
		return nil, err
	}
	history := &domain.TicketHistory{
		Username:    username,
		Entries:     make([]domain.TicketEntry, 0, len(bookings)),
		Count:       count,
		GeneratedAt: time.Now().UTC(),
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		history.User = user
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	cities, err := s.inventory.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		history.Entries = append(history.Entries, domain.TicketEntry{
			Booking:          b,
			CurrentSlotPrice: currentPrice(cities, b),
		})
	}
	return history, nil
}

func currentPrice(cities []domain.City, b domain.Booking) null.Float {
	for _, c := range cities {
		if !domain.SameName(c.Name, b.City) {
			continue
		}
		idx := c.StationIndex(b.ParkingStation)
		if idx < 0 {
			return null.Float{}
		}
		if slot, ok := c.ParkingStations[idx].FindSlot(b.Slot); ok {
			return null.FloatFrom(slot.Price)
		}
		return null.Float{}
	}
	return null.Float{}
}

func (s *QueryService) RenderTicketHistoryPDF(ctx context.Context, actor domain.Actor, username string) ([]byte, error) {
	history, err := s.UserTicketHistory(ctx, actor, username)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.Render(*history)
	if err != nil {
		return nil, fmt.Errorf("render ticket history: %w", err)
	}
	return pdf, nil
}

// ArchiveTicketHistory stores the rendered PDF and returns where it went.
func (s *QueryService) ArchiveTicketHistory(ctx context.Context, actor domain.Actor, username string) (string, error) {
	if s.archiver == nil {
		return "", ErrArchiveDisabled
	}
	pdf, err := s.RenderTicketHistoryPDF(ctx, actor, username)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("ticket-history/%s/%s.pdf", username, time.Now().UTC().Format("20060102T150405Z"))
	location, err := s.archiver.Archive(ctx, key, pdf)
	if err != nil {
		s.log.Error("ticket history archive failed", zap.String("username", username), zap.Error(err))
		return "", fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	s.log.Info("ticket history archived", zap.String("username", username), zap.String("location", location))
	return location, nil
}
