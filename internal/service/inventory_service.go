package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parking_network/internal/domain"
	"parking_network/internal/lock"
	"parking_network/internal/metrics"
	"parking_network/internal/repository"
)

// cityNamesKey serializes city creation so the case-insensitive name check holds.
const cityNamesKey = "cities:names"

type InventoryService struct {
	cities repository.CityRepository
	locker lock.Locker
	auth   *Authorizer
	log    *zap.Logger
}

func NewInventoryService(cities repository.CityRepository, locker lock.Locker, auth *Authorizer, log *zap.Logger) *InventoryService {
	return &InventoryService{cities: cities, locker: locker, auth: auth, log: log}
}

func (s *InventoryService) ListCities(ctx context.Context) ([]domain.City, error) {
	return s.cities.FindAll(ctx)
}

// GetCity resolves ref as an id first, then as a city name.
func (s *InventoryService) GetCity(ctx context.Context, ref string) (*domain.City, error) {
	city, err := s.cities.FindByID(ctx, ref)
	if err == nil {
		return city, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	all, err := s.cities.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if domain.SameName(all[i].Name, ref) {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("city %q: %w", ref, repository.ErrNotFound)
}

// ResolveSlot looks a slot up by city name or id, station name and slot number.
func (s *InventoryService) ResolveSlot(ctx context.Context, cityRef, stationName string, slotNumber float64) (*domain.City, domain.Station, domain.Slot, error) {
	city, err := s.GetCity(ctx, cityRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Station{}, domain.Slot{}, fmt.Errorf("%w: city %q", ErrSlotNotFound, cityRef)
		}
		return nil, domain.Station{}, domain.Slot{}, err
	}
	idx := city.StationIndex(stationName)
	if idx < 0 {
		return nil, domain.Station{}, domain.Slot{}, fmt.Errorf("%w: station %q in %q", ErrSlotNotFound, stationName, city.Name)
	}
	station := city.ParkingStations[idx]
	slot, ok := station.FindSlot(slotNumber)
	if !ok {
		return nil, domain.Station{}, domain.Slot{}, fmt.Errorf("%w: slot %v at %q", ErrSlotNotFound, slotNumber, station.Name)
	}
	return city, station, slot, nil
}

// StationNames returns the stored spelling of every station that the given
// name resolves to, one per city at most, without duplicates.
func (s *InventoryService) StationNames(ctx context.Context, stationName string) ([]string, error) {
	cities, err := s.cities.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	seen := make(map[string]bool)
	for _, c := range cities {
		idx := c.StationIndex(stationName)
		if idx < 0 {
			continue
		}
		name := c.ParkingStations[idx].Name
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *InventoryService) CreateCity(ctx context.Context, actor domain.Actor, dto domain.CityDTO) (*domain.City, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	release, err := s.locker.Lock(ctx, cityNamesKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	defer release()

	all, err := s.cities.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if domain.SameName(c.Name, name) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCity, c.Name)
		}
	}
	created, err := s.cities.Create(ctx, &domain.City{Name: name, ParkingStations: []domain.Station{}})
	if err != nil {
		metrics.InventoryWrites.WithLabelValues("create_city", "error").Inc()
		return nil, err
	}
	metrics.InventoryWrites.WithLabelValues("create_city", "ok").Inc()
	s.log.Info("city created", zap.String("city_id", created.ID), zap.String("city", created.Name), zap.String("actor", actor.Username))
	return created, nil
}

// DeleteCity removes the city with every embedded station, slot and employee.
func (s *InventoryService) DeleteCity(ctx context.Context, actor domain.Actor, ref string) error {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return err
	}
	city, err := s.GetCity(ctx, ref)
	if err != nil {
		return err
	}
	release, err := s.locker.Lock(ctx, "city:"+city.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	defer release()
	if err := s.cities.Delete(ctx, city.ID); err != nil {
		return err
	}
	metrics.InventoryWrites.WithLabelValues("delete_city", "ok").Inc()
	s.log.Info("city deleted", zap.String("city_id", city.ID), zap.String("city", city.Name), zap.String("actor", actor.Username))
	return nil
}

// cityChange transforms a private copy of the city. Returning false means
// nothing changed and no write is issued.
type cityChange func(city *domain.City) (bool, error)

// mutateCity runs one locked read-modify-write of the whole city document,
// retrying once if the version moved underneath it.
func (s *InventoryService) mutateCity(ctx context.Context, op, ref string, change cityChange) (*domain.City, error) {
	target, err := s.GetCity(ctx, ref)
	if err != nil {
		return nil, err
	}
	release, err := s.locker.Lock(ctx, "city:"+target.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		current, err := s.cities.FindByID(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		changed, err := change(&next)
		if err != nil {
			metrics.InventoryWrites.WithLabelValues(op, "rejected").Inc()
			return nil, err
		}
		if !changed {
			metrics.InventoryWrites.WithLabelValues(op, "noop").Inc()
			return current, nil
		}
		assignEmployeeIDs(&next)

		saved, err := s.cities.Replace(ctx, &next)
		if err == nil {
			metrics.InventoryWrites.WithLabelValues(op, "ok").Inc()
			s.log.Info("city updated",
				zap.String("operation", op),
				zap.String("city_id", saved.ID),
				zap.String("city", saved.Name),
				zap.Int64("version", saved.Version))
			return saved, nil
		}
		if errors.Is(err, repository.ErrStaleWrite) && attempt == 0 {
			metrics.StaleWriteRetries.WithLabelValues(repository.CollectionCities).Inc()
			s.log.Warn("stale city write, retrying", zap.String("operation", op), zap.String("city_id", target.ID), zap.Error(err))
			continue
		}
		metrics.InventoryWrites.WithLabelValues(op, "error").Inc()
		if !errors.Is(err, repository.ErrStaleWrite) {
			s.log.Error("city write failed", zap.String("operation", op), zap.String("city_id", target.ID), zap.Error(err))
		}
		return nil, err
	}
}

// assignEmployeeIDs gives employees from older documents a stable id.
func assignEmployeeIDs(city *domain.City) {
	for i := range city.ParkingStations {
		st := &city.ParkingStations[i]
		if st.Employees == nil {
			st.Employees = []domain.Employee{}
		}
		if st.Slots == nil {
			st.Slots = []domain.Slot{}
		}
		for j := range st.Employees {
			if st.Employees[j].ID == "" {
				st.Employees[j].ID = uuid.NewString()
			}
		}
	}
}

func stationOf(city *domain.City, name string) (*domain.Station, error) {
	idx := city.StationIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q in %q", ErrStationNotFound, name, city.Name)
	}
	return &city.ParkingStations[idx], nil
}

// AddStation fails if a station with exactly this name already exists.
func (s *InventoryService) AddStation(ctx context.Context, actor domain.Actor, cityRef string, dto domain.StationDTO) (*domain.City, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(dto.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	return s.mutateCity(ctx, "add_station", cityRef, func(city *domain.City) (bool, error) {
		for _, st := range city.ParkingStations {
			if st.Name == name {
				return false, fmt.Errorf("%w: %q in %q", ErrDuplicateStation, name, city.Name)
			}
		}
		city.ParkingStations = append(city.ParkingStations, domain.Station{
			Name:      name,
			Employees: []domain.Employee{},
			Slots:     []domain.Slot{},
		})
		return true, nil
	})
}

// RemoveStation drops the station and everything in it. A missing station is not an error.
func (s *InventoryService) RemoveStation(ctx context.Context, actor domain.Actor, cityRef, stationName string) (*domain.City, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateCity(ctx, "remove_station", cityRef, func(city *domain.City) (bool, error) {
		idx := city.StationIndex(stationName)
		if idx < 0 {
			return false, nil
		}
		city.ParkingStations = append(city.ParkingStations[:idx], city.ParkingStations[idx+1:]...)
		return true, nil
	})
}

func (s *InventoryService) AddSlot(ctx context.Context, actor domain.Actor, cityRef, stationName string, dto domain.SlotDTO) (*domain.City, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	number, ok := domain.ParseSlotNumber(dto.SlotNumber.String())
	if !ok {
		return nil, fmt.Errorf("%w: slot number %q", ErrInvalidSlot, dto.SlotNumber)
	}
	price, ok := domain.ParsePrice(dto.Price.String())
	if !ok {
		return nil, fmt.Errorf("%w: price %q", ErrInvalidSlot, dto.Price)
	}
	return s.mutateCity(ctx, "add_slot", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		if _, exists := st.FindSlot(number); exists {
			return false, fmt.Errorf("%w: %v at %q", ErrDuplicateSlot, number, st.Name)
		}
		st.Slots = append(st.Slots, domain.Slot{SlotNumber: number, Price: price})
		return true, nil
	})
}

// RemoveSlot removes every slot with this number. A missing slot is not an error.
func (s *InventoryService) RemoveSlot(ctx context.Context, actor domain.Actor, cityRef, stationName string, slotNumber float64) (*domain.City, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.mutateCity(ctx, "remove_slot", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		kept := st.Slots[:0]
		for _, slot := range st.Slots {
			if !slot.HasNumber() || slot.SlotNumber != slotNumber {
				kept = append(kept, slot)
			}
		}
		changed := len(kept) != len(st.Slots)
		st.Slots = kept
		return changed, nil
	})
}

func (s *InventoryService) UpdateSlotPrice(ctx context.Context, actor domain.Actor, cityRef, stationName string, slotNumber float64, dto domain.SlotPriceDTO) (*domain.City, error) {
	if err := s.auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	price, ok := domain.ParsePrice(dto.Price.String())
	if !ok {
		return nil, fmt.Errorf("%w: price %q", ErrInvalidSlot, dto.Price)
	}
	return s.mutateCity(ctx, "update_slot_price", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		found, changed := false, false
		for i := range st.Slots {
			if st.Slots[i].HasNumber() && st.Slots[i].SlotNumber == slotNumber {
				found = true
				if st.Slots[i].Price != price {
					st.Slots[i].Price = price
					changed = true
				}
			}
		}
		if !found {
			return false, fmt.Errorf("%w: slot %v at %q", ErrSlotNotFound, slotNumber, st.Name)
		}
		return changed, nil
	})
}

func validEmployee(dto domain.EmployeeDTO) (domain.Employee, error) {
	role, ok := domain.ParseEmployeeRole(dto.Role)
	name := strings.TrimSpace(dto.Name)
	contact := strings.TrimSpace(dto.Contact)
	if !ok || name == "" || contact == "" {
		return domain.Employee{}, ErrInvalidEmployee
	}
	return domain.Employee{ID: uuid.NewString(), Name: name, Role: role, Contact: contact}, nil
}

// requireStation resolves cityRef to a city name before checking the
// actor's station scope. An unknown city is checked by the name given.
func (s *InventoryService) requireStation(ctx context.Context, actor domain.Actor, cityRef, stationName string) error {
	if actor.Role != domain.ActorManager {
		return s.auth.RequireStation(ctx, actor, cityRef, stationName)
	}
	cityName := cityRef
	city, err := s.GetCity(ctx, cityRef)
	switch {
	case err == nil:
		cityName = city.Name
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}
	return s.auth.RequireStation(ctx, actor, cityName, stationName)
}

// AddEmployee appends an employee; duplicate names are allowed since the id is the key.
func (s *InventoryService) AddEmployee(ctx context.Context, actor domain.Actor, cityRef, stationName string, dto domain.EmployeeDTO) (*domain.Employee, error) {
	if err := s.requireStation(ctx, actor, cityRef, stationName); err != nil {
		return nil, err
	}
	emp, err := validEmployee(dto)
	if err != nil {
		return nil, err
	}
	_, err = s.mutateCity(ctx, "add_employee", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		st.Employees = append(st.Employees, emp)
		return true, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: city %q", ErrStationNotFound, cityRef)
		}
		return nil, err
	}
	return &emp, nil
}

// RemoveEmployee removes one employee by id. A missing employee is not an error.
func (s *InventoryService) RemoveEmployee(ctx context.Context, actor domain.Actor, cityRef, stationName, employeeID string) (*domain.City, error) {
	if err := s.requireStation(ctx, actor, cityRef, stationName); err != nil {
		return nil, err
	}
	return s.mutateCity(ctx, "remove_employee", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		return removeEmployees(st, func(e domain.Employee) bool { return e.ID == employeeID }), nil
	})
}

func (s *InventoryService) UpdateEmployeeRole(ctx context.Context, actor domain.Actor, cityRef, stationName, employeeID string, dto domain.EmployeeRoleDTO) (*domain.City, error) {
	if err := s.requireStation(ctx, actor, cityRef, stationName); err != nil {
		return nil, err
	}
	role, ok := domain.ParseEmployeeRole(dto.Role)
	if !ok {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidEmployee, dto.Role)
	}
	return s.mutateCity(ctx, "update_employee_role", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		matched, changed := setRoles(st, role, func(e domain.Employee) bool { return e.ID == employeeID })
		if matched == 0 {
			return false, fmt.Errorf("%w: %s at %q", ErrEmployeeNotFound, employeeID, st.Name)
		}
		return changed, nil
	})
}

// RemoveEmployeesByName removes every employee with this name.
func (s *InventoryService) RemoveEmployeesByName(ctx context.Context, actor domain.Actor, cityRef, stationName, name string) (*domain.City, error) {
	if err := s.requireStation(ctx, actor, cityRef, stationName); err != nil {
		return nil, err
	}
	return s.mutateCity(ctx, "remove_employee_by_name", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		return removeEmployees(st, func(e domain.Employee) bool { return e.Name == name }), nil
	})
}

// UpdateEmployeeRoleByName sets the role of every employee with this name.
func (s *InventoryService) UpdateEmployeeRoleByName(ctx context.Context, actor domain.Actor, cityRef, stationName, name string, dto domain.EmployeeRoleDTO) (*domain.City, error) {
	if err := s.requireStation(ctx, actor, cityRef, stationName); err != nil {
		return nil, err
	}
	role, ok := domain.ParseEmployeeRole(dto.Role)
	if !ok {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidEmployee, dto.Role)
	}
	return s.mutateCity(ctx, "update_employee_role_by_name", cityRef, func(city *domain.City) (bool, error) {
		st, err := stationOf(city, stationName)
		if err != nil {
			return false, err
		}
		_, changed := setRoles(st, role, func(e domain.Employee) bool { return e.Name == name })
		return changed, nil
	})
}

func removeEmployees(st *domain.Station, match func(domain.Employee) bool) bool {
	kept := st.Employees[:0]
	for _, e := range st.Employees {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	changed := len(kept) != len(st.Employees)
	st.Employees = kept
	return changed
}

func setRoles(st *domain.Station, role domain.EmployeeRole, match func(domain.Employee) bool) (matched int, changed bool) {
	for i := range st.Employees {
		if match(st.Employees[i]) {
			matched++
			if st.Employees[i].Role != role {
				st.Employees[i].Role = role
				changed = true
			}
		}
	}
	return matched, changed
}
