// handler.go — основной обработчик API Media Module.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/service"
)

// APIHandler — основной обработчик API Media Module.
type APIHandler struct {
	health   *HealthHandler
	assetSvc *service.AssetService
	ownerSvc *service.OwnerService
	viewSvc  *service.ViewService
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	assetSvc *service.AssetService,
	ownerSvc *service.OwnerService,
	viewSvc *service.ViewService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		assetSvc: assetSvc,
		ownerSvc: ownerSvc,
		viewSvc:  viewSvc,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// --- API-представление актива ---

// assetResponse — сериализация медиа-актива.
type assetResponse struct {
	AssetID      string            `json:"asset_id"`
	OwnerID      *string           `json:"owner_id,omitempty"`
	FileName     string            `json:"file_name"`
	Title        string            `json:"title,omitempty"`
	Size         int64             `json:"size"`
	Checksum     string            `json:"checksum"`
	Tags         []string          `json:"tags"`
	Status       string            `json:"status"`
	Visible      bool              `json:"visible"`
	UploadedAt   time.Time         `json:"uploaded_at"`
	LastViewedAt *time.Time        `json:"last_viewed_at,omitempty"`
	ViewCount    int64             `json:"view_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Owner        *ownerResponse    `json:"owner,omitempty"`
	TechMetadata *techMetaResponse `json:"technical_metadata,omitempty"`
}

// ownerResponse — сериализация владельца (expand=owner).
type ownerResponse struct {
	OwnerID     string    `json:"owner_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// techMetaResponse — сериализация техметаданных (expand=technical_metadata).
type techMetaResponse struct {
	Container  string `json:"container"`
	VideoCodec string `json:"video_codec,omitempty"`
	AudioCodec string `json:"audio_codec,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	BitrateBps int64  `json:"bitrate_bps,omitempty"`
}

// assetToResponse конвертирует domain-модель в API-представление.
func assetToResponse(a *model.MediaAsset) assetResponse {
	resp := assetResponse{
		AssetID:      a.AssetID,
		OwnerID:      a.OwnerID,
		FileName:     a.FileName,
		Title:        a.Title,
		Size:         a.Size,
		Checksum:     a.Checksum,
		Tags:         a.Tags,
		Status:       string(a.Status),
		Visible:      a.Visible,
		UploadedAt:   a.UploadedAt,
		LastViewedAt: a.LastViewedAt,
		ViewCount:    a.ViewCount,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if a.Owner != nil {
		resp.Owner = &ownerResponse{
			OwnerID:     a.Owner.OwnerID,
			Username:    a.Owner.Username,
			DisplayName: a.Owner.DisplayName,
			CreatedAt:   a.Owner.CreatedAt,
		}
	}
	if a.TechnicalMetadata != nil {
		resp.TechMetadata = &techMetaResponse{
			Container:  a.TechnicalMetadata.Container,
			VideoCodec: a.TechnicalMetadata.VideoCodec,
			AudioCodec: a.TechnicalMetadata.AudioCodec,
			Width:      a.TechnicalMetadata.Width,
			Height:     a.TechnicalMetadata.Height,
			DurationMs: a.TechnicalMetadata.DurationMs,
			BitrateBps: a.TechnicalMetadata.BitrateBps,
		}
	}
	return resp
}

// assetsToResponses конвертирует список активов.
func assetsToResponses(assets []*model.MediaAsset) []assetResponse {
	items := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		items = append(items, assetToResponse(a))
	}
	return items
}
