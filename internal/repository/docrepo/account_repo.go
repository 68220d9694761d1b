package docrepo

import (
	"context"
	"time"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

type managerRepository struct {
	base
}

func NewManagerRepository(store repository.RecordStore, timeout time.Duration) repository.ManagerRepository {
	return &managerRepository{base{store: store, timeout: timeout}}
}

func (r *managerRepository) FindByUsername(ctx context.Context, username string) (*domain.Manager, error) {
	var manager *domain.Manager
	err := r.call(ctx, "ManagerRepository.FindByUsername", func(ctx context.Context) error {
		recs, err := r.store.Find(ctx, repository.CollectionManagers, "username", username)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return repository.ErrNotFound
		}
		manager, err = decode[domain.Manager](recs[0])
		if err == nil {
			manager.ID = recs[0].ID
		}
		return err
	})
	return manager, err
}

type userRepository struct {
	base
}

func NewUserRepository(store repository.RecordStore, timeout time.Duration) repository.UserRepository {
	return &userRepository{base{store: store, timeout: timeout}}
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.UserProfile, error) {
	var user *domain.UserProfile
	err := r.call(ctx, "UserRepository.FindByUsername", func(ctx context.Context) error {
		recs, err := r.store.Find(ctx, repository.CollectionUsers, "username", username)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return repository.ErrNotFound
		}
		user, err = decode[domain.UserProfile](recs[0])
		if err == nil {
			user.ID = recs[0].ID
		}
		return err
	})
	return user, err
}
