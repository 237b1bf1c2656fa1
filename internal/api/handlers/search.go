// search.go — обработчик POST /api/v1/search.
// Десериализация searchRequest, построение AssetQuery, вызов service,
// сериализация страницы результатов.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/service"
)

// searchRequest — тело запроса поиска активов.
// Все фильтры опциональны, nil = фильтр не применяется.
type searchRequest struct {
	Name           *string    `json:"name,omitempty"`
	Title          *string    `json:"title,omitempty"`
	MinSize        *int64     `json:"min_size,omitempty"`
	MaxSize        *int64     `json:"max_size,omitempty"`
	UploadedAfter  *time.Time `json:"uploaded_after,omitempty"`
	UploadedBefore *time.Time `json:"uploaded_before,omitempty"`
	Status         *string    `json:"status,omitempty"`
	OwnerID        *string    `json:"owner_id,omitempty"`
	Visible        *bool      `json:"visible,omitempty"`
	Tags           *[]string  `json:"tags,omitempty"`
	SortBy         *string    `json:"sort_by,omitempty"`
	SortOrder      *string    `json:"sort_order,omitempty"`
	Page           *int       `json:"page,omitempty"`
	PageSize       *int       `json:"page_size,omitempty"`
	Expand         []string   `json:"expand,omitempty"`
}

// searchResponse — страница результатов поиска.
type searchResponse struct {
	Items    []assetResponse `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasMore  bool            `json:"has_more"`
}

// HandleSearch — реализация POST /api/v1/search.
func (h *APIHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	q := repository.AssetQuery{
		NameContains:   req.Name,
		TitleContains:  req.Title,
		MinSize:        req.MinSize,
		MaxSize:        req.MaxSize,
		UploadedAfter:  req.UploadedAfter,
		UploadedBefore: req.UploadedBefore,
		Status:         req.Status,
		OwnerID:        req.OwnerID,
		Visible:        req.Visible,
		Tags:           req.Tags,
		Expand:         req.Expand,
	}
	if req.SortBy != nil {
		q.SortBy = *req.SortBy
	}
	if req.SortOrder != nil {
		q.SortOrder = *req.SortOrder
	}
	if req.Page != nil {
		q.Page = *req.Page
	}
	if req.PageSize != nil {
		q.PageSize = *req.PageSize
	}

	result, err := h.assetSvc.Find(r.Context(), q)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, validationMessage(err))
			return
		}
		h.logger.Error("Ошибка поиска активов",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при поиске активов")
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:    assetsToResponses(result.Items),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		HasMore:  result.HasMore,
	})
}

// validationMessage срезает префикс сентинели ErrValidation для ответа API.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := service.ErrValidation.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return msg
}
