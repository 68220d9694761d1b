package docrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

type cityRepository struct {
	base
}

func NewCityRepository(store repository.RecordStore, timeout time.Duration) repository.CityRepository {
	return &cityRepository{base{store: store, timeout: timeout}}
}

func toCity(rec repository.Record) (*domain.City, error) {
	city, err := decode[domain.City](rec)
	if err != nil {
		return nil, err
	}
	city.ID = rec.ID
	city.Version = rec.Version
	return city, nil
}

func (r *cityRepository) FindAll(ctx context.Context) ([]domain.City, error) {
	var cities []domain.City
	err := r.call(ctx, "CityRepository.FindAll", func(ctx context.Context) error {
		recs, err := r.store.List(ctx, repository.CollectionCities)
		if err != nil {
			return err
		}
		cities = make([]domain.City, 0, len(recs))
		for _, rec := range recs {
			c, err := toCity(rec)
			if err != nil {
				return err
			}
			cities = append(cities, *c)
		}
		return nil
	})
	return cities, err
}

func (r *cityRepository) FindByID(ctx context.Context, id string) (*domain.City, error) {
	var city *domain.City
	err := r.call(ctx, "CityRepository.FindByID", func(ctx context.Context) error {
		rec, err := r.store.Get(ctx, repository.CollectionCities, id)
		if err != nil {
			return err
		}
		city, err = toCity(rec)
		return err
	})
	return city, err
}

func (r *cityRepository) Create(ctx context.Context, city *domain.City) (*domain.City, error) {
	if city.ID == "" {
		city.ID = uuid.NewString()
	}
	if city.ParkingStations == nil {
		city.ParkingStations = []domain.Station{}
	}
	var created *domain.City
	err := r.call(ctx, "CityRepository.Create", func(ctx context.Context) error {
		body, err := encodeCity(city)
		if err != nil {
			return err
		}
		rec, err := r.store.Create(ctx, repository.CollectionCities, repository.Record{ID: city.ID, Body: body})
		if err != nil {
			return err
		}
		out := *city
		out.Version = rec.Version
		created = &out
		return nil
	})
	return created, err
}

func (r *cityRepository) Replace(ctx context.Context, city *domain.City) (*domain.City, error) {
	var replaced *domain.City
	err := r.call(ctx, "CityRepository.Replace", func(ctx context.Context) error {
		body, err := encodeCity(city)
		if err != nil {
			return err
		}
		rec, err := r.store.Replace(ctx, repository.CollectionCities, city.ID, city.Version, body)
		if err != nil {
			return err
		}
		out := *city
		out.Version = rec.Version
		replaced = &out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("city %s: %w", city.ID, err)
	}
	return replaced, nil
}

func (r *cityRepository) Delete(ctx context.Context, id string) error {
	return r.call(ctx, "CityRepository.Delete", func(ctx context.Context) error {
		return r.store.Delete(ctx, repository.CollectionCities, id)
	})
}
