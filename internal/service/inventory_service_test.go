package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_network/internal/domain"
	"parking_network/internal/lock"
	"parking_network/internal/repository"
)

func slotNumbers(st domain.Station) []float64 {
	out := make([]float64, 0, len(st.Slots))
	for _, s := range st.Slots {
		out = append(out, s.SlotNumber)
	}
	return out
}

func TestAddStationTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	_, err := f.inventory.CreateCity(ctx, admin, domain.CityDTO{Name: "Pune"})
	require.NoError(t, err)

	_, err = f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "X"})
	require.NoError(t, err)
	_, err = f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "X"})
	assert.ErrorIs(t, err, ErrDuplicateStation)

	city, err := f.inventory.GetCity(ctx, "pune")
	require.NoError(t, err)
	count := 0
	for _, st := range city.ParkingStations {
		if st.Name == "X" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStationNamesAreCaseSensitiveForDuplicates(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)
	city, err := f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "mg road"})
	require.NoError(t, err)
	assert.Len(t, city.ParkingStations, 2)
}

func TestCreateCityRejectsCaseInsensitiveClash(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	_, err := f.inventory.CreateCity(ctx, admin, domain.CityDTO{Name: "Pune"})
	require.NoError(t, err)
	_, err = f.inventory.CreateCity(ctx, admin, domain.CityDTO{Name: " PUNE "})
	assert.ErrorIs(t, err, ErrDuplicateCity)
	_, err = f.inventory.CreateCity(ctx, admin, domain.CityDTO{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRemoveSlotLeavesTheOthers(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)
	_, err := f.inventory.RemoveSlot(ctx, admin, "Pune", "MG Road", 5)
	require.NoError(t, err)
	for _, n := range []string{"1", "2", "3"} {
		_, err := f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", domain.SlotDTO{SlotNumber: domain.FormValue(n), Price: "10"})
		require.NoError(t, err)
	}

	city, err := f.inventory.RemoveSlot(ctx, admin, "Pune", "MG Road", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, slotNumbers(city.ParkingStations[0]))

	before := city.Version
	city, err = f.inventory.RemoveSlot(ctx, admin, "Pune", "MG Road", 42)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, slotNumbers(city.ParkingStations[0]))
	assert.Equal(t, before, city.Version, "no-op must not write")
}

func TestAddSlotValidation(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)

	cases := []domain.SlotDTO{
		{SlotNumber: "abc", Price: "10"},
		{SlotNumber: "-1", Price: "10"},
		{SlotNumber: "7", Price: "-3"},
		{SlotNumber: "7", Price: "ten"},
		{SlotNumber: "", Price: "10"},
	}
	for _, dto := range cases {
		_, err := f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", dto)
		assert.ErrorIs(t, err, ErrInvalidSlot, "%+v", dto)
	}

	_, err := f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", domain.SlotDTO{SlotNumber: "5", Price: "10"})
	assert.ErrorIs(t, err, ErrDuplicateSlot)

	_, err = f.inventory.AddSlot(ctx, admin, "Pune", "Baner", domain.SlotDTO{SlotNumber: "1", Price: "10"})
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestUpdateSlotPrice(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)

	city, err := f.inventory.UpdateSlotPrice(ctx, admin, "Pune", "MG Road", 5, domain.SlotPriceDTO{Price: "75.5"})
	require.NoError(t, err)
	assert.Equal(t, 75.5, city.ParkingStations[0].Slots[0].Price)

	_, err = f.inventory.UpdateSlotPrice(ctx, admin, "Pune", "MG Road", 5, domain.SlotPriceDTO{Price: "free"})
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = f.inventory.UpdateSlotPrice(ctx, admin, "Pune", "MG Road", 9, domain.SlotPriceDTO{Price: "1"})
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestRemoveStationCascadesAndToleratesAbsence(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)

	city, err := f.inventory.RemoveStation(ctx, admin, "Pune", "MG Road")
	require.NoError(t, err)
	assert.Empty(t, city.ParkingStations)

	_, err = f.inventory.RemoveStation(ctx, admin, "Pune", "MG Road")
	assert.NoError(t, err)
}

func TestDeleteCity(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)
	require.NoError(t, f.inventory.DeleteCity(ctx, admin, "pune"))
	_, err := f.inventory.GetCity(ctx, "Pune")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEmployeesByIDAndByName(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)

	first, err := f.inventory.AddEmployee(ctx, admin, " pune ", "mg road", domain.EmployeeDTO{Name: "Asha", Role: "staff", Contact: "1"})
	require.NoError(t, err)
	second, err := f.inventory.AddEmployee(ctx, meera, "Pune", "MG Road", domain.EmployeeDTO{Name: "Asha", Role: "Security", Contact: "2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.RoleStaff, first.Role)

	city, err := f.inventory.UpdateEmployeeRole(ctx, admin, "Pune", "MG Road", second.ID, domain.EmployeeRoleDTO{Role: "Manager"})
	require.NoError(t, err)
	emps := city.ParkingStations[0].Employees
	require.Len(t, emps, 2)
	assert.Equal(t, domain.RoleStaff, emps[0].Role)
	assert.Equal(t, domain.RoleManager, emps[1].Role)

	_, err = f.inventory.UpdateEmployeeRole(ctx, admin, "Pune", "MG Road", "missing", domain.EmployeeRoleDTO{Role: "Manager"})
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
	_, err = f.inventory.UpdateEmployeeRole(ctx, admin, "Pune", "MG Road", first.ID, domain.EmployeeRoleDTO{Role: "Janitor"})
	assert.ErrorIs(t, err, ErrInvalidEmployee)

	city, err = f.inventory.RemoveEmployee(ctx, admin, "Pune", "MG Road", first.ID)
	require.NoError(t, err)
	require.Len(t, city.ParkingStations[0].Employees, 1)
	assert.Equal(t, second.ID, city.ParkingStations[0].Employees[0].ID)

	_, err = f.inventory.AddEmployee(ctx, admin, "Pune", "MG Road", domain.EmployeeDTO{Name: "Asha", Role: "Staff", Contact: "3"})
	require.NoError(t, err)
	city, err = f.inventory.UpdateEmployeeRoleByName(ctx, admin, "Pune", "MG Road", "Asha", domain.EmployeeRoleDTO{Role: "Security"})
	require.NoError(t, err)
	for _, e := range city.ParkingStations[0].Employees {
		assert.Equal(t, domain.RoleSecurity, e.Role)
	}
	city, err = f.inventory.RemoveEmployeesByName(ctx, admin, "Pune", "MG Road", "Asha")
	require.NoError(t, err)
	assert.Empty(t, city.ParkingStations[0].Employees)
}

func TestAddEmployeeErrors(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)

	_, err := f.inventory.AddEmployee(ctx, admin, "Pune", "MG Road", domain.EmployeeDTO{Name: "Asha", Role: "Janitor", Contact: "1"})
	assert.ErrorIs(t, err, ErrInvalidEmployee)
	_, err = f.inventory.AddEmployee(ctx, admin, "Mumbai", "MG Road", domain.EmployeeDTO{Name: "Asha", Role: "Staff", Contact: "1"})
	assert.ErrorIs(t, err, ErrStationNotFound)
	_, err = f.inventory.AddEmployee(ctx, admin, "Pune", "Baner", domain.EmployeeDTO{Name: "Asha", Role: "Staff", Contact: "1"})
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestAuthorizationOnInventory(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)
	_, err := f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "FC Road"})
	require.NoError(t, err)

	_, err = f.inventory.AddSlot(ctx, meera, "Pune", "MG Road", domain.SlotDTO{SlotNumber: "9", Price: "1"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.inventory.AddEmployee(ctx, meera, "Pune", "FC Road", domain.EmployeeDTO{Name: "Asha", Role: "Staff", Contact: "1"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.inventory.AddEmployee(ctx, ravi, "Pune", "MG Road", domain.EmployeeDTO{Name: "Asha", Role: "Staff", Contact: "1"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLegacyEmployeesGetIDsOnNextWrite(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	_, err := f.store.Create(ctx, repository.CollectionCities, repository.Record{ID: "7", Body: json.RawMessage(`{
		"id":"7","city":"Nagpur","parkingStations":[{"name":"Sitabuldi",
		"employees":[{"name":"Old Hand","role":"Staff","contact":"1"}],
		"slots":[{"slotNumber":"1","price":"20"}]}]}`)})
	require.NoError(t, err)

	city, err := f.inventory.AddSlot(ctx, admin, "nagpur", "Sitabuldi", domain.SlotDTO{SlotNumber: "2", Price: "20"})
	require.NoError(t, err)
	emps := city.ParkingStations[0].Employees
	require.Len(t, emps, 1)
	assert.NotEmpty(t, emps[0].ID)
	assert.Equal(t, []float64{1, 2}, slotNumbers(city.ParkingStations[0]))
}

func TestConcurrentAddSlotLosesNothing(t *testing.T) {
	lockers := map[string]lock.Locker{
		"local lock":       lock.NewLocal(),
		"optimistic retry": nopLocker{},
	}
	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, locker)
			ctx := context.Background()
			f.seedPune(t)

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i, n := range []int{10, 11} {
				wg.Add(1)
				go func(i, n int) {
					defer wg.Done()
					_, errs[i] = f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", domain.SlotDTO{
						SlotNumber: domain.FormValue(fmt.Sprint(n)),
						Price:      "20",
					})
				}(i, n)
			}
			wg.Wait()
			require.NoError(t, errs[0])
			require.NoError(t, errs[1])

			city, err := f.inventory.GetCity(ctx, "Pune")
			require.NoError(t, err)
			assert.ElementsMatch(t, []float64{5, 10, 11}, slotNumbers(city.ParkingStations[0]))
		})
	}
}

func TestStaleWriteSurfacesAfterOneRetry(t *testing.T) {
	f := newFixture(t, nopLocker{})
	ctx := context.Background()
	f.seedPune(t)

	bumps := 0
	_, err := f.inventory.mutateCity(ctx, "test", "Pune", func(city *domain.City) (bool, error) {
		// Another writer lands between every read and write.
		cur, err := f.cities.FindByID(ctx, city.ID)
		require.NoError(t, err)
		_, err = f.cities.Replace(ctx, cur)
		require.NoError(t, err)
		bumps++
		city.ParkingStations[0].Slots = append(city.ParkingStations[0].Slots, domain.Slot{SlotNumber: 99})
		return true, nil
	})
	assert.ErrorIs(t, err, repository.ErrStaleWrite)
	assert.Equal(t, 2, bumps)
}

func TestCityRoundTripThroughService(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	f.seedPune(t)
	_, err := f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "FC Road"})
	require.NoError(t, err)
	_, err = f.inventory.AddEmployee(ctx, admin, "Pune", "FC Road", domain.EmployeeDTO{Name: "Dev", Role: "Security", Contact: "5"})
	require.NoError(t, err)

	city, err := f.inventory.GetCity(ctx, "Pune")
	require.NoError(t, err)
	raw, err := json.Marshal(city)
	require.NoError(t, err)

	var back domain.City
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, *city, back)
}

func TestUnrelatedWriteKeepsLegacySlots(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	_, err := f.store.Create(ctx, repository.CollectionCities, repository.Record{ID: "c1", Body: json.RawMessage(
		`{"id":"c1","city":"Pune","parkingStations":[{"name":"MG Road","employees":[],"slots":[` +
			`{"slotNumber":"2.5","price":"30"},{"slotNumber":"2","price":"40"},{"slotNumber":"","price":"15"}]}]}`)})
	require.NoError(t, err)

	_, err = f.inventory.AddStation(ctx, admin, "Pune", domain.StationDTO{Name: "FC Road"})
	require.NoError(t, err)

	rec, err := f.store.Get(ctx, repository.CollectionCities, "c1")
	require.NoError(t, err)
	var stored struct {
		ParkingStations []struct {
			Slots json.RawMessage `json:"slots"`
		} `json:"parkingStations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body, &stored))
	require.Len(t, stored.ParkingStations, 2)
	assert.JSONEq(t,
		`[{"slotNumber":"2.5","price":"30"},{"slotNumber":"2","price":"40"},{"slotNumber":"","price":"15"}]`,
		string(stored.ParkingStations[0].Slots))

	city, err := f.inventory.RemoveSlot(ctx, admin, "Pune", "MG Road", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 0}, slotNumbers(city.ParkingStations[0]))

	_, err = f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", domain.SlotDTO{SlotNumber: "2.5", Price: "1"})
	assert.ErrorIs(t, err, ErrDuplicateSlot)
	city, err = f.inventory.AddSlot(ctx, admin, "Pune", "MG Road", domain.SlotDTO{SlotNumber: "0", Price: "1"})
	require.NoError(t, err, "a slot with an unreadable number does not occupy slot 0")
	assert.Equal(t, []float64{2.5, 0, 0}, slotNumbers(city.ParkingStations[0]))
}

func TestManagerCannotTouchSameNamedStationInAnotherCity(t *testing.T) {
	f := newFixture(t, lock.NewLocal())
	ctx := context.Background()
	pune := f.seedPune(t)
	mumbai, err := f.inventory.CreateCity(ctx, admin, domain.CityDTO{Name: "Mumbai"})
	require.NoError(t, err)
	_, err = f.inventory.AddStation(ctx, admin, "Mumbai", domain.StationDTO{Name: "MG Road"})
	require.NoError(t, err)

	asha := domain.EmployeeDTO{Name: "Asha", Role: "Staff", Contact: "9000000001"}
	for _, ref := range []string{"Mumbai", " mumbai ", mumbai.ID} {
		_, err = f.inventory.AddEmployee(ctx, meera, ref, "MG Road", asha)
		assert.ErrorIs(t, err, ErrForbidden, ref)
	}
	_, err = f.inventory.RemoveEmployeesByName(ctx, meera, "Mumbai", "MG Road", "Asha")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.inventory.AddEmployee(ctx, meera, "Nowhere", "MG Road", asha)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.inventory.AddEmployee(ctx, meera, pune.ID, "MG Road", asha)
	require.NoError(t, err, "the manager's own city by id")
	_, err = f.inventory.AddEmployee(ctx, admin, "Mumbai", "MG Road", asha)
	require.NoError(t, err)

	city, err := f.inventory.GetCity(ctx, "Mumbai")
	require.NoError(t, err)
	assert.Len(t, city.ParkingStations[0].Employees, 1)
}
