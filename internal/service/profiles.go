package service

import (
	"context"
	"errors"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/repository"
	"fmt"
)

// ErrRoleNotAllowed is returned when the caller's role may not perform an operation at all.
var ErrRoleNotAllowed = errors.New("operation not allowed for this role")

func trainerProfile(ctx context.Context, profiles repository.ProfileRepository, actor domain.Actor) (*domain.Trainer, error) {
	if actor.Role != domain.RoleTrainer {
		return nil, ErrRoleNotAllowed
	}
	trainer, err := profiles.GetTrainerByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get trainer profile: %w", err)
	}
	return trainer, nil
}

func clientProfile(ctx context.Context, profiles repository.ProfileRepository, actor domain.Actor) (*domain.Client, error) {
	if actor.Role != domain.RoleClient {
		return nil, ErrRoleNotAllowed
	}
	client, err := profiles.GetClientByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get client profile: %w", err)
	}
	return client, nil
}
