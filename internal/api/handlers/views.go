// views.go — обработчики учёта просмотров.
// POST   /api/v1/assets/{asset_id}/views — регистрация просмотра
// DELETE /api/v1/views/{event_id}        — откат события просмотра
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/service"
)

// recordViewRequest — тело запроса регистрации просмотра (опционально).
type recordViewRequest struct {
	ViewerID *string `json:"viewer_id,omitempty"`
}

// viewEventResponse — сериализация события просмотра.
type viewEventResponse struct {
	EventID  string    `json:"event_id"`
	AssetID  string    `json:"asset_id"`
	ViewerID *string   `json:"viewer_id,omitempty"`
	ViewedAt time.Time `json:"viewed_at"`
}

// HandleRecordView — реализация POST /api/v1/assets/{asset_id}/views.
// Тело запроса опционально (анонимный просмотр без тела).
func (h *APIHandler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	var req recordViewRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
			return
		}
	}

	ev, err := h.viewSvc.RecordView(r.Context(), assetID, req.ViewerID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Актив не найден")
			return
		}
		h.logger.Error("Ошибка регистрации просмотра",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при регистрации просмотра")
		return
	}

	// 202: событие принято и закоммичено, агрегат обновится в выдаче
	// после инвалидации кэша.
	writeJSON(w, http.StatusAccepted, viewEventResponse{
		EventID:  ev.EventID,
		AssetID:  ev.AssetID,
		ViewerID: ev.ViewerID,
		ViewedAt: ev.ViewedAt,
	})
}

// HandleRemoveView — реализация DELETE /api/v1/views/{event_id}.
func (h *APIHandler) HandleRemoveView(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")

	if err := h.viewSvc.RemoveView(r.Context(), eventID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Событие просмотра не найдено")
			return
		}
		h.logger.Error("Ошибка отката просмотра",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при откате просмотра")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
