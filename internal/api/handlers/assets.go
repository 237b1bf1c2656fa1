// assets.go — обработчики реестра медиа-активов.
// GET    /api/v1/assets/{asset_id}                 — метаданные актива (+expand)
// POST   /api/v1/assets                            — регистрация нового актива
// POST   /api/v1/assets/{asset_id}/technical-metadata — создание техметаданных
// POST   /api/v1/assets/{asset_id}/archive         — архивация
// POST   /api/v1/assets/{asset_id}/restore         — восстановление из архива
// POST   /api/v1/assets/{asset_id}/orphan          — пометка orphaned
// POST   /api/v1/assets/{asset_id}/pending-delete  — пометка на удаление
// DELETE /api/v1/assets/{asset_id}                 — окончательное удаление
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/domain/lifecycle"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/service"
)

// uploadRequest — тело запроса регистрации актива.
type uploadRequest struct {
	OwnerID           *string          `json:"owner_id,omitempty"`
	FileName          string           `json:"file_name"`
	Title             string           `json:"title,omitempty"`
	Size              int64            `json:"size"`
	Checksum          string           `json:"checksum"`
	Tags              []string         `json:"tags,omitempty"`
	TechnicalMetadata *techMetaRequest `json:"technical_metadata,omitempty"`
}

// techMetaRequest — опциональные техметаданные при регистрации.
type techMetaRequest struct {
	Container  string `json:"container"`
	VideoCodec string `json:"video_codec,omitempty"`
	AudioCodec string `json:"audio_codec,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	BitrateBps int64  `json:"bitrate_bps,omitempty"`
}

// HandleGetAsset — реализация GET /api/v1/assets/{asset_id}.
// Развёртывание связей — query-параметр expand (список через запятую).
func (h *APIHandler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	var expand []string
	if raw := r.URL.Query().Get("expand"); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				expand = append(expand, e)
			}
		}
	}

	asset, err := h.assetSvc.GetByID(r.Context(), assetID, expand)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Актив не найден")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, validationMessage(err))
		default:
			h.logger.Error("Ошибка получения актива",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при получении актива")
		}
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset))
}

// HandleUploadAsset — реализация POST /api/v1/assets.
// Дубликат контента — 409 с ID существующего актива.
func (h *APIHandler) HandleUploadAsset(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	params := service.UploadParams{
		OwnerID:  req.OwnerID,
		FileName: req.FileName,
		Title:    req.Title,
		Size:     req.Size,
		Checksum: req.Checksum,
		Tags:     req.Tags,
	}
	if req.TechnicalMetadata != nil {
		params.TechnicalMetadata = &model.TechnicalMetadata{
			Container:  req.TechnicalMetadata.Container,
			VideoCodec: req.TechnicalMetadata.VideoCodec,
			AudioCodec: req.TechnicalMetadata.AudioCodec,
			Width:      req.TechnicalMetadata.Width,
			Height:     req.TechnicalMetadata.Height,
			DurationMs: req.TechnicalMetadata.DurationMs,
			BitrateBps: req.TechnicalMetadata.BitrateBps,
		}
	}

	asset, err := h.assetSvc.Upload(r.Context(), params)
	if err != nil {
		var dup *repository.DuplicateContentError
		switch {
		case errors.As(err, &dup):
			apierrors.DuplicateContent(w, "Актив с таким содержимым уже зарегистрирован", dup.ExistingID)
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, validationMessage(err))
		default:
			h.logger.Error("Ошибка регистрации актива",
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при регистрации актива")
		}
		return
	}

	writeJSON(w, http.StatusCreated, assetToResponse(asset))
}

// HandleSetTechnicalMetadata — реализация
// POST /api/v1/assets/{asset_id}/technical-metadata.
// Метаданные неизменяемы: повторное создание — 409.
func (h *APIHandler) HandleSetTechnicalMetadata(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	var req techMetaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	tm, err := h.assetSvc.SetTechnicalMetadata(r.Context(), assetID, &model.TechnicalMetadata{
		Container:  req.Container,
		VideoCodec: req.VideoCodec,
		AudioCodec: req.AudioCodec,
		Width:      req.Width,
		Height:     req.Height,
		DurationMs: req.DurationMs,
		BitrateBps: req.BitrateBps,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Актив не найден")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, validationMessage(err))
		case errors.Is(err, repository.ErrConflict):
			apierrors.Conflict(w, "Техметаданные актива уже созданы")
		default:
			h.logger.Error("Ошибка создания техметаданных",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при создании техметаданных")
		}
		return
	}

	writeJSON(w, http.StatusCreated, techMetaResponse{
		Container:  tm.Container,
		VideoCodec: tm.VideoCodec,
		AudioCodec: tm.AudioCodec,
		Width:      tm.Width,
		Height:     tm.Height,
		DurationMs: tm.DurationMs,
		BitrateBps: tm.BitrateBps,
	})
}

// HandleArchiveAsset — реализация POST /api/v1/assets/{asset_id}/archive.
func (h *APIHandler) HandleArchiveAsset(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.assetSvc.Archive)
}

// HandleRestoreAsset — реализация POST /api/v1/assets/{asset_id}/restore.
func (h *APIHandler) HandleRestoreAsset(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.assetSvc.Restore)
}

// HandleOrphanAsset — реализация POST /api/v1/assets/{asset_id}/orphan.
func (h *APIHandler) HandleOrphanAsset(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.assetSvc.MarkOrphaned)
}

// HandlePendingDeleteAsset — реализация POST /api/v1/assets/{asset_id}/pending-delete.
func (h *APIHandler) HandlePendingDeleteAsset(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.assetSvc.MarkPendingDelete)
}

// handleTransition — общий каркас обработчиков переходов жизненного цикла.
// Недопустимый переход — 409 с кодом из TransitionError.
func (h *APIHandler) handleTransition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, assetID string) (*model.MediaAsset, error),
) {
	assetID := chi.URLParam(r, "asset_id")

	asset, err := fn(r.Context(), assetID)
	if err != nil {
		var te *lifecycle.TransitionError
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Актив не найден")
		case errors.As(err, &te):
			apierrors.WriteError(w, http.StatusConflict, te.Code, te.Message)
		default:
			h.logger.Error("Ошибка перехода жизненного цикла",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при смене статуса актива")
		}
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(asset))
}

// HandlePurgeAsset — реализация DELETE /api/v1/assets/{asset_id}.
// Допустим только из pending_delete (иначе 409).
func (h *APIHandler) HandlePurgeAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	err := h.assetSvc.Purge(r.Context(), assetID)
	if err != nil {
		var te *lifecycle.TransitionError
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Актив не найден")
		case errors.As(err, &te):
			apierrors.WriteError(w, http.StatusConflict, te.Code, te.Message)
		default:
			h.logger.Error("Ошибка удаления актива",
				slog.String("asset_id", assetID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при удалении актива")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
