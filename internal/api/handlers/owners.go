// owners.go — обработчики владельцев активов.
// POST /api/v1/owners            — регистрация владельца
// GET  /api/v1/owners/{owner_id} — владелец по UUID
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/service"
)

// createOwnerRequest — тело запроса регистрации владельца.
type createOwnerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// HandleCreateOwner — реализация POST /api/v1/owners.
// Дублирующийся username — 409.
func (h *APIHandler) HandleCreateOwner(w http.ResponseWriter, r *http.Request) {
	var req createOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	owner, err := h.ownerSvc.Create(r.Context(), service.CreateOwnerParams{
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, validationMessage(err))
		case errors.Is(err, repository.ErrConflict):
			apierrors.Conflict(w, "Владелец с таким username уже зарегистрирован")
		default:
			h.logger.Error("Ошибка регистрации владельца",
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при регистрации владельца")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ownerResponse{
		OwnerID:     owner.OwnerID,
		Username:    owner.Username,
		DisplayName: owner.DisplayName,
		CreatedAt:   owner.CreatedAt,
	})
}

// HandleGetOwner — реализация GET /api/v1/owners/{owner_id}.
func (h *APIHandler) HandleGetOwner(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner_id")

	owner, err := h.ownerSvc.GetByID(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Владелец не найден")
			return
		}
		h.logger.Error("Ошибка получения владельца",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении владельца")
		return
	}

	writeJSON(w, http.StatusOK, ownerResponse{
		OwnerID:     owner.OwnerID,
		Username:    owner.Username,
		DisplayName: owner.DisplayName,
		CreatedAt:   owner.CreatedAt,
	})
}
