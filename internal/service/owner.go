// owner.go — сервис владельцев медиа-активов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// CreateOwnerParams — параметры регистрации владельца.
type CreateOwnerParams struct {
	Username    string
	DisplayName string
}

// OwnerService — сервис владельцев активов.
type OwnerService struct {
	ownerRepo repository.OwnerRepository
	logger    *slog.Logger
}

// NewOwnerService создаёт сервис владельцев.
func NewOwnerService(ownerRepo repository.OwnerRepository, logger *slog.Logger) *OwnerService {
	return &OwnerService{
		ownerRepo: ownerRepo,
		logger:    logger.With(slog.String("component", "owner_service")),
	}
}

// Create регистрирует владельца. UUID назначается сервисом.
// Дублирующийся username — repository.ErrConflict.
func (s *OwnerService) Create(ctx context.Context, params CreateOwnerParams) (*model.Owner, error) {
	if params.Username == "" {
		return nil, fmt.Errorf("%w: username обязателен", ErrValidation)
	}

	owner := &model.Owner{
		OwnerID:     uuid.New().String(),
		Username:    params.Username,
		DisplayName: params.DisplayName,
	}

	if err := s.ownerRepo.Create(ctx, owner); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("регистрация владельца: %w", err)
	}

	s.logger.Info("Владелец зарегистрирован",
		slog.String("owner_id", owner.OwnerID),
		slog.String("username", owner.Username),
	)
	return owner, nil
}

// GetByID возвращает владельца по UUID.
func (s *OwnerService) GetByID(ctx context.Context, ownerID string) (*model.Owner, error) {
	owner, err := s.ownerRepo.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение владельца: %w", err)
	}
	return owner, nil
}
