package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// OwnerRepository — интерфейс доступа к владельцам активов.
type OwnerRepository interface {
	// Create регистрирует владельца. Дублирующийся username — ErrConflict.
	Create(ctx context.Context, o *model.Owner) error
	// GetByID возвращает владельца по UUID.
	GetByID(ctx context.Context, ownerID string) (*model.Owner, error)
}

// ownerRepo — реализация OwnerRepository через pgx.
type ownerRepo struct {
	db DBTX
}

// NewOwnerRepository создаёт репозиторий владельцев.
func NewOwnerRepository(db DBTX) OwnerRepository {
	return &ownerRepo{db: db}
}

func (r *ownerRepo) Create(ctx context.Context, o *model.Owner) error {
	query := `
		INSERT INTO owners (owner_id, username, display_name)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, o.OwnerID, o.Username, o.DisplayName).Scan(&o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: владелец с таким username уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации владельца: %w", err)
	}
	return nil
}

func (r *ownerRepo) GetByID(ctx context.Context, ownerID string) (*model.Owner, error) {
	query := `SELECT owner_id, username, display_name, created_at FROM owners WHERE owner_id = $1`

	o := &model.Owner{}
	err := r.db.QueryRow(ctx, query, ownerID).Scan(&o.OwnerID, &o.Username, &o.DisplayName, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения владельца: %w", err)
	}
	return o, nil
}
