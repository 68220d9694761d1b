package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parking_network/internal/api/middleware"
	"parking_network/internal/domain"
	"parking_network/internal/lock"
	"parking_network/internal/report"
	"parking_network/internal/repository"
	"parking_network/internal/repository/docrepo"
	"parking_network/internal/repository/memory"
	"parking_network/internal/service"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	_, err := store.Create(context.Background(), repository.CollectionManagers, repository.Record{ID: "m1", Body: json.RawMessage(
		`{"id":"m1","username":"meera","city":"Pune","parkingStationName":"MG Road"}`)})
	require.NoError(t, err)

	log := zap.NewNop()
	locker := lock.NewLocal()
	auth := service.NewAuthorizer(docrepo.NewManagerRepository(store, time.Second))
	inventory := service.NewInventoryService(docrepo.NewCityRepository(store, time.Second), locker, auth, log)
	bookings := service.NewBookingService(docrepo.NewBookingRepository(store, time.Second), inventory, locker, auth, true, log)
	queries := service.NewQueryService(inventory, bookings, docrepo.NewUserRepository(store, time.Second), auth, report.NewPDFRenderer(), nil, log)

	authService := service.NewAuthService("test-secret", time.Hour)
	tokens := map[string]string{}
	for name, actor := range map[string]domain.Actor{
		"admin": {UserID: "a1", Username: "root", Role: domain.ActorAdmin},
		"meera": {UserID: "m1", Username: "meera", Role: domain.ActorManager},
		"ravi":  {UserID: "u1", Username: "ravi", Role: domain.ActorUser},
	} {
		token, err := authService.IssueToken(actor)
		require.NoError(t, err)
		tokens[name] = token
	}

	router := SetupRouter(inventory, bookings, queries, middleware.NewAuthMiddleware(authService, log), 0, log)
	return &testServer{t: t, router: router, tokens: tokens}
}

func (s *testServer) do(method, path, who string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[who])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/cities", "", nil).Code)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/cities", "admin", map[string]string{"city": "Pune"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/cities/Pune/stations", "admin", map[string]string{"name": "MG Road"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/cities/Pune/stations/MG%20Road/slots", "admin", map[string]any{"slotNumber": "5", "price": 50})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	city := decode[domain.City](t, w)
	require.Len(t, city.ParkingStations, 1)
	assert.Equal(t, []domain.Slot{{SlotNumber: 5, Price: 50}}, city.ParkingStations[0].Slots)

	w = s.do(http.MethodPost, "/api/v1/cities/Pune/stations/MG%20Road/slots", "admin", map[string]any{"slotNumber": "5", "price": 60})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(http.MethodPost, "/api/v1/cities/Pune/stations/MG%20Road/slots", "meera", map[string]any{"slotNumber": "6", "price": 60})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/bookings", "ravi", map[string]any{
		"city": "Pune", "parkingStation": "MG Road", "slot": 5,
		"checkInDate": "2024-05-01", "checkInTime": "10:00",
		"checkOutDate": "2024-05-01", "checkOutTime": "12:30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[domain.Booking](t, w)
	assert.Equal(t, "ravi", booking.BookedBy)
	assert.Equal(t, 150.0, booking.TotalPrice)

	path := "/api/v1/bookings/" + booking.ID
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, path+"/approve", "ravi", nil).Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, path+"/check-out", "meera", nil).Code)
	for _, step := range []string{"/approve", "/check-in", "/check-out", "/mark-paid"} {
		w = s.do(http.MethodPost, path+step, "meera", nil)
		require.Equal(t, http.StatusOK, w.Code, step+": "+w.Body.String())
	}
	done := decode[domain.Booking](t, w)
	assert.True(t, done.IsApproved())
	assert.True(t, done.CheckedIn)
	assert.True(t, done.CheckedOut)
	assert.True(t, done.IsPaid())

	w = s.do(http.MethodGet, "/api/v1/manager/queue", "meera", nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode[domain.StationQueue](t, w)
	assert.Equal(t, "Pune", queue.City)
	assert.Len(t, queue.Bookings, 1)
	assert.Equal(t, 0, queue.Pending)

	w = s.do(http.MethodGet, "/api/v1/users/ravi/history", "ravi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = s.do(http.MethodGet, "/api/v1/users/ravi/history.pdf", "ravi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/api/v1/users/ravi/history/archive", "ravi", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/users/kiran/history", "ravi", nil).Code)
}

func TestEmployeeRoutes(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/cities", "admin", map[string]string{"city": "Pune"}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/cities/Pune/stations", "admin", map[string]string{"name": "MG Road"}).Code)

	base := "/api/v1/cities/Pune/stations/MG%20Road/employees"
	w := s.do(http.MethodPost, base, "meera", map[string]string{"name": "Asha", "role": "Staff", "contact": "9000000001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	employee := decode[domain.Employee](t, w)
	require.NotEmpty(t, employee.ID)

	w = s.do(http.MethodPut, base+"/"+employee.ID+"/role", "meera", map[string]string{"role": "Security"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.RoleSecurity, decode[domain.City](t, w).ParkingStations[0].Employees[0].Role)

	w = s.do(http.MethodPut, base+"/role?name=Asha", "meera", map[string]string{"role": "Manager"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, base+"/role?name=Asha", "meera", map[string]string{"role": "Janitor"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, base+"/nope/role", "meera", map[string]string{"role": "Staff"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodDelete, base, "meera", nil).Code)

	w = s.do(http.MethodDelete, base+"?name=Asha", "meera", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[domain.City](t, w).ParkingStations[0].Employees)
}

func TestDeleteCity(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/cities", "admin", map[string]string{"city": "Pune"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/cities/Pune", "meera", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/cities/Pune", "admin", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/cities/Pune", "admin", nil).Code)
}
