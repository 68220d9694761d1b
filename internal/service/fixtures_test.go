package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parking_network/internal/domain"
	"parking_network/internal/lock"
	"parking_network/internal/repository"
	"parking_network/internal/repository/docrepo"
	"parking_network/internal/repository/memory"
)

var (
	admin   = domain.Actor{UserID: "a1", Username: "root", Role: domain.ActorAdmin}
	meera   = domain.Actor{UserID: "m1", Username: "meera", Role: domain.ActorManager}
	ravi    = domain.Actor{UserID: "u1", Username: "ravi", Role: domain.ActorUser}
	someone = domain.Actor{UserID: "u2", Username: "kiran", Role: domain.ActorUser}
)

type fixture struct {
	store     *memory.Store
	cities    repository.CityRepository
	inventory *InventoryService
	bookings  *BookingService
	query     *QueryService
	renderer  *fakeRenderer
	archiver  *fakeArchiver
}

type fakeRenderer struct{ last domain.TicketHistory }

func (f *fakeRenderer) Render(h domain.TicketHistory) ([]byte, error) {
	f.last = h
	return []byte("%PDF-fake"), nil
}

type fakeArchiver struct {
	keys []string
}

func (f *fakeArchiver) Archive(_ context.Context, key string, _ []byte) (string, error) {
	f.keys = append(f.keys, key)
	return "s3://bucket/" + key, nil
}

// nopLocker lets tests exercise the version check without serialization.
type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	_, err := store.Create(ctx, repository.CollectionManagers, repository.Record{ID: "m1", Body: json.RawMessage(
		`{"id":"m1","username":"meera","password":"secret","city":"Pune","parkingStationName":"MG Road"}`)})
	require.NoError(t, err)
	_, err = store.Create(ctx, repository.CollectionUsers, repository.Record{ID: "u1", Body: json.RawMessage(
		`{"id":"u1","name":"Ravi Kumar","username":"ravi","email":"ravi@example.com","contact":"9000000002"}`)})
	require.NoError(t, err)

	log := zap.NewNop()
	cities := docrepo.NewCityRepository(store, time.Second)
	auth := NewAuthorizer(docrepo.NewManagerRepository(store, time.Second))
	inventory := NewInventoryService(cities, locker, auth, log)
	bookings := NewBookingService(docrepo.NewBookingRepository(store, time.Second), inventory, locker, auth, true, log)
	renderer := &fakeRenderer{}
	archiver := &fakeArchiver{}
	query := NewQueryService(inventory, bookings, docrepo.NewUserRepository(store, time.Second), auth, renderer, archiver, log)
	return &fixture{
		store:     store,
		cities:    cities,
		inventory: inventory,
		bookings:  bookings,
		query:     query,
		renderer:  renderer,
		archiver:  archiver,
	}
}

// seedPune creates Pune / MG Road with slot 5 priced 50.
func (f *fixture) seedPune(t *testing.T) *domain.City {
	t.Helper()
	ctx := context.Background()
	city, err := f.inventory.CreateCity(ctx, admin, domain.CityDTO{Name: "Pune"})
	require.NoError(t, err)
	_, err = f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "MG Road"})
	require.NoError(t, err)
	city, err = f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", domain.SlotDTO{SlotNumber: "5", Price: "50"})
	require.NoError(t, err)
	return city
}

func reservation() domain.ReservationRequest {
	return domain.ReservationRequest{
		City:           "Pune",
		ParkingStation: "MG Road",
		Slot:           "5",
		CheckInDate:    "2024-05-01",
		CheckInTime:    "10:00",
		CheckOutDate:   "2024-05-01",
		CheckOutTime:   "12:30",
	}
}
