// asset.go — сервис реестра медиа-активов.
// Координирует repository, LRU cache, конечный автомат жизненного цикла
// и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/domain/lifecycle"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запрошенная запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrValidation — некорректная спецификация запроса или входные данные.
	ErrValidation = errors.New("ошибка валидации")
)

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_search_total",
		Help: "Общее количество поисковых запросов к реестру активов.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_search_duration_seconds",
		Help:    "Длительность поисковых запросов к реестру активов.",
		Buckets: prometheus.DefBuckets,
	})
)

// FindResult — страница результатов поиска с пагинацией.
type FindResult struct {
	// Items — найденные активы
	Items []*model.MediaAsset
	// Total — общее количество совпадений
	Total int
	// Page — номер текущей страницы (1-based)
	Page int
	// PageSize — размер страницы
	PageSize int
	// HasMore — есть ли ещё результаты
	HasMore bool
}

// UploadParams — параметры регистрации нового актива.
type UploadParams struct {
	OwnerID  *string
	FileName string
	Title    string
	Size     int64
	Checksum string
	Tags     []string
	// TechnicalMetadata — опциональные техметаданные, создаются вместе с активом.
	TechnicalMetadata *model.TechnicalMetadata
}

// AssetService — сервис реестра медиа-активов.
type AssetService struct {
	assetRepo repository.AssetRepository
	cache     *CacheService
	logger    *slog.Logger
}

// NewAssetService создаёт сервис реестра активов.
func NewAssetService(
	assetRepo repository.AssetRepository,
	cache *CacheService,
	logger *slog.Logger,
) *AssetService {
	return &AssetService{
		assetRepo: assetRepo,
		cache:     cache,
		logger:    logger.With(slog.String("component", "asset_service")),
	}
}

// Find выполняет поиск активов по спецификации запроса.
// Спецификация валидируется до обращения к хранилищу; ошибки валидации
// оборачиваются в ErrValidation. Обновляет Prometheus-метрики
// (search_total, search_duration_seconds).
func (s *AssetService) Find(ctx context.Context, q repository.AssetQuery) (*FindResult, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = repository.DefaultPageSize
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	start := time.Now()
	searchTotal.Inc()

	items, total, err := s.assetRepo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("поиск активов: %w", err)
	}

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.Int("total", total),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)

	return &FindResult{
		Items:    items,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		HasMore:  q.Offset()+len(items) < total,
	}, nil
}

// GetByID возвращает актив по UUID.
// Без развёртываний — сначала проверяет LRU-кэш, при промахе — запрос
// к PostgreSQL, результат кэшируется. Запрос с expand идёт мимо кэша:
// в кэше лежат только базовые записи без связей.
func (s *AssetService) GetByID(ctx context.Context, assetID string, expand []string) (*model.MediaAsset, error) {
	if err := repository.ValidateExpand(expand); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if len(expand) == 0 {
		if asset, ok := s.cache.Get(assetID); ok {
			s.logger.Debug("Кэш hit для актива", slog.String("asset_id", assetID))
			return asset, nil
		}
	}

	asset, err := s.assetRepo.GetByID(ctx, assetID, expand)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение актива: %w", err)
	}

	if len(expand) == 0 {
		s.cache.Set(assetID, asset)
	}

	return asset, nil
}

// Upload регистрирует новый актив в реестре.
// UUID и момент загрузки назначаются сервисом. Дубликат контента
// (*repository.DuplicateContentError) пробрасывается вызывающему коду
// как есть — в нём ID существующего актива.
func (s *AssetService) Upload(ctx context.Context, params UploadParams) (*model.MediaAsset, error) {
	if params.FileName == "" {
		return nil, fmt.Errorf("%w: имя файла обязательно", ErrValidation)
	}
	if params.Size < 0 {
		return nil, fmt.Errorf("%w: размер не может быть отрицательным", ErrValidation)
	}
	if len(params.Checksum) != 64 {
		return nil, fmt.Errorf("%w: контрольная сумма должна быть SHA-256 в hex (64 символа)", ErrValidation)
	}

	now := time.Now().UTC()
	asset := &model.MediaAsset{
		AssetID:    uuid.New().String(),
		OwnerID:    params.OwnerID,
		FileName:   params.FileName,
		Title:      params.Title,
		Size:       params.Size,
		Checksum:   params.Checksum,
		Tags:       params.Tags,
		Status:     model.StatusActive,
		Visible:    true,
		UploadedAt: now,
	}
	if asset.Tags == nil {
		asset.Tags = []string{}
	}

	if err := s.assetRepo.Insert(ctx, asset); err != nil {
		var dup *repository.DuplicateContentError
		if errors.As(err, &dup) {
			s.logger.Info("Отклонена загрузка дубликата",
				slog.String("existing_asset_id", dup.ExistingID),
				slog.String("checksum", dup.Checksum),
			)
			return nil, err
		}
		// Ссылка на несуществующего владельца — ошибка входных данных,
		// а не сбой хранилища.
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: owner_id: владелец не зарегистрирован", ErrValidation)
		}
		return nil, fmt.Errorf("регистрация актива: %w", err)
	}

	if params.TechnicalMetadata != nil {
		tm := *params.TechnicalMetadata
		tm.AssetID = asset.AssetID
		if err := s.assetRepo.SetTechnicalMetadata(ctx, &tm); err != nil {
			return nil, fmt.Errorf("создание техметаданных: %w", err)
		}
		asset.TechnicalMetadata = &tm
	}

	s.logger.Info("Актив зарегистрирован",
		slog.String("asset_id", asset.AssetID),
		slog.String("file_name", asset.FileName),
		slog.Int64("size", asset.Size),
	)
	return asset, nil
}

// SetTechnicalMetadata создаёт технические метаданные существующего актива.
// Повторное создание — repository.ErrConflict (метаданные неизменяемы),
// отсутствующий актив — ErrNotFound.
func (s *AssetService) SetTechnicalMetadata(ctx context.Context, assetID string, tm *model.TechnicalMetadata) (*model.TechnicalMetadata, error) {
	if tm.Container == "" {
		return nil, fmt.Errorf("%w: container обязателен", ErrValidation)
	}

	tm.AssetID = assetID
	if err := s.assetRepo.SetTechnicalMetadata(ctx, tm); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("создание техметаданных: %w", err)
	}

	s.cache.Delete(assetID)

	s.logger.Info("Техметаданные созданы",
		slog.String("asset_id", assetID),
		slog.String("container", tm.Container),
	)
	return tm, nil
}

// Archive переводит актив в archived (актив скрывается из выдачи).
func (s *AssetService) Archive(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	return s.applyTransition(ctx, assetID, lifecycle.Archive, "archive")
}

// Restore возвращает архивный актив в active и восстанавливает видимость.
func (s *AssetService) Restore(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	return s.applyTransition(ctx, assetID, lifecycle.Restore, "restore")
}

// MarkOrphaned переводит актив в orphaned: владелец очищается, актив
// сохраняется, но скрывается из выдачи.
func (s *AssetService) MarkOrphaned(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	return s.applyTransition(ctx, assetID, lifecycle.MarkOrphaned, "orphan")
}

// MarkPendingDelete помечает актив на удаление.
func (s *AssetService) MarkPendingDelete(ctx context.Context, assetID string) (*model.MediaAsset, error) {
	return s.applyTransition(ctx, assetID, lifecycle.MarkPendingDelete, "pending_delete")
}

// applyTransition — общий каркас перехода жизненного цикла:
// чтение записи мимо кэша, чистый переход в памяти, сохранение,
// инвалидация кэша.
func (s *AssetService) applyTransition(
	ctx context.Context,
	assetID string,
	fn func(*model.MediaAsset) error,
	name string,
) (*model.MediaAsset, error) {
	// Переходы всегда читают свежую запись из хранилища, не из кэша.
	asset, err := s.assetRepo.GetByID(ctx, assetID, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение актива для перехода: %w", err)
	}

	prevStatus := asset.Status
	if err := fn(asset); err != nil {
		// *lifecycle.TransitionError пробрасывается как есть.
		return nil, err
	}

	// Переход в текущий статус — no-op автомата: запись не меняется,
	// сохранение пропускается, чтобы не трогать updated_at.
	if asset.Status == prevStatus {
		s.logger.Debug("Переход жизненного цикла без изменений",
			slog.String("asset_id", assetID),
			slog.String("transition", name),
			slog.String("status", string(asset.Status)),
		)
		return asset, nil
	}

	if err := s.assetRepo.UpdateState(ctx, asset); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("сохранение состояния актива: %w", err)
	}

	s.cache.Delete(assetID)

	s.logger.Info("Переход жизненного цикла выполнен",
		slog.String("asset_id", assetID),
		slog.String("transition", name),
		slog.String("status", string(asset.Status)),
	)
	return asset, nil
}

// Purge выполняет окончательное удаление актива: переход
// pending_delete → deleted и физическое удаление записи.
// Техметаданные и события просмотров удаляются каскадно.
func (s *AssetService) Purge(ctx context.Context, assetID string) error {
	asset, err := s.assetRepo.GetByID(ctx, assetID, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение актива для удаления: %w", err)
	}

	// Автомат допускает deleted только из pending_delete.
	if err := lifecycle.Delete(asset); err != nil {
		return err
	}

	if err := s.assetRepo.HardDelete(ctx, assetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("физическое удаление актива: %w", err)
	}

	s.cache.Delete(assetID)

	s.logger.Info("Актив окончательно удалён", slog.String("asset_id", assetID))
	return nil
}
