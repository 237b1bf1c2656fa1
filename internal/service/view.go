// view.go — сервис учёта просмотров.
// Каждое событие просмотра и обновление кэшированного счётчика актива —
// одна транзакционная единица работы через TxRunner.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// Prometheus-метрики счётчика просмотров.
var (
	viewEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_view_events_total",
		Help: "Общее количество записанных событий просмотра.",
	})
	viewCounterInconsistencyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_view_counter_inconsistency_total",
		Help: "Зафиксированные расхождения кэшированного счётчика просмотров.",
	}, []string{"reason"})
)

// ViewService — сервис учёта просмотров активов.
type ViewService struct {
	txRunner *repository.TxRunner
	cache    *CacheService
	logger   *slog.Logger
}

// NewViewService создаёт сервис учёта просмотров.
func NewViewService(
	txRunner *repository.TxRunner,
	cache *CacheService,
	logger *slog.Logger,
) *ViewService {
	return &ViewService{
		txRunner: txRunner,
		cache:    cache,
		logger:   logger.With(slog.String("component", "view_service")),
	}
}

// RecordView регистрирует просмотр актива: событие и инкремент
// кэшированного счётчика коммитятся одной транзакцией.
// viewerID может быть nil (анонимный просмотр).
func (s *ViewService) RecordView(ctx context.Context, assetID string, viewerID *string) (*model.ViewEvent, error) {
	ev := &model.ViewEvent{
		EventID:  uuid.New().String(),
		AssetID:  assetID,
		ViewerID: viewerID,
		ViewedAt: time.Now().UTC(),
	}

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		return repository.NewViewEventRepository(tx).Append(ctx, ev)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("запись просмотра: %w", err)
	}

	viewEventsTotal.Inc()
	// Кэшированная запись несёт устаревший view_count — инвалидируем.
	s.cache.Delete(assetID)

	return ev, nil
}

// RemoveView откатывает событие просмотра: событие удаляется, счётчик
// актива декрементируется с полом в ноль. Расхождение счётчика
// (underflow, missing_asset) не прерывает операцию — оно логируется
// и учитывается в метриках для последующего reconciliation.
func (s *ViewService) RemoveView(ctx context.Context, eventID string) error {
	var (
		assetID       string
		inconsistency *repository.CounterInconsistency
	)

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		var err error
		assetID, inconsistency, err = repository.NewViewEventRepository(tx).Remove(ctx, eventID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("откат просмотра: %w", err)
	}

	if inconsistency != nil {
		viewCounterInconsistencyTotal.WithLabelValues(inconsistency.Reason).Inc()
		s.logger.Warn("Расхождение счётчика просмотров",
			slog.String("asset_id", inconsistency.AssetID),
			slog.String("reason", inconsistency.Reason),
		)
	}

	s.cache.Delete(assetID)
	return nil
}
