package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

// Authorizer decides what an Actor may touch. Managers are scoped to the
// city and station named in their manager record.
type Authorizer struct {
	managers repository.ManagerRepository
}

func NewAuthorizer(managers repository.ManagerRepository) *Authorizer {
	return &Authorizer{managers: managers}
}

func (a *Authorizer) RequireAdmin(actor domain.Actor) error {
	if actor.IsPrivileged() {
		return nil
	}
	return fmt.Errorf("%w: %s %q needs admin", ErrForbidden, actor.Role, actor.Username)
}

// ManagedStation returns the manager record for actor.
func (a *Authorizer) ManagedStation(ctx context.Context, actor domain.Actor) (*domain.Manager, error) {
	if actor.Role != domain.ActorManager {
		return nil, fmt.Errorf("%w: %q is not a manager", ErrForbidden, actor.Username)
	}
	m, err := a.managers.FindByUsername(ctx, actor.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: no manager record for %q", ErrForbidden, actor.Username)
		}
		return nil, err
	}
	return m, nil
}

// StationScope checks that actor may work on station and returns the city
// the actor is confined to there. An empty city means any city.
func (a *Authorizer) StationScope(ctx context.Context, actor domain.Actor, station string) (string, error) {
	if actor.IsPrivileged() {
		return "", nil
	}
	m, err := a.ManagedStation(ctx, actor)
	if err != nil {
		return "", err
	}
	if !domain.SameName(m.ParkingStationName, station) {
		return "", fmt.Errorf("%w: %q manages %q, not %q", ErrForbidden, actor.Username, m.ParkingStationName, station)
	}
	return strings.TrimSpace(m.City), nil
}

// RequireStation allows admins anywhere and managers on their own station
// in their own city. city is a city name, not an id.
func (a *Authorizer) RequireStation(ctx context.Context, actor domain.Actor, city, station string) error {
	scope, err := a.StationScope(ctx, actor, station)
	if err != nil {
		return err
	}
	if scope != "" && !domain.SameName(scope, city) {
		return fmt.Errorf("%w: %q manages %q in %q, not in %q", ErrForbidden, actor.Username, station, scope, city)
	}
	return nil
}

// RequireBookingAccess allows the booking's owner, its station's manager and admins.
func (a *Authorizer) RequireBookingAccess(ctx context.Context, actor domain.Actor, b *domain.Booking) error {
	if actor.Role == domain.ActorUser {
		if b.BookedBy == actor.Username {
			return nil
		}
		return fmt.Errorf("%w: booking %s belongs to another user", ErrForbidden, b.ID)
	}
	return a.RequireStation(ctx, actor, b.City, b.ParkingStation)
}

// RequireUser allows a user to read their own data; staff may read anyone's.
func (a *Authorizer) RequireUser(actor domain.Actor, username string) error {
	if actor.Role == domain.ActorUser && actor.Username != username {
		return fmt.Errorf("%w: %q cannot read %q", ErrForbidden, actor.Username, username)
	}
	return nil
}
