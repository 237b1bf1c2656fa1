// view_event.go — репозиторий событий просмотра и механизм консистентности
// кэшированного счётчика view_count.
//
// Счётчик на активе обновляется атомарным инкрементом/декрементом той же
// колонки в той же транзакции, что и запись события — никогда не
// пересчитывается сканом таблицы событий при чтении. Конкурентные записи
// по одному активу сериализуются блокировкой строки на UPDATE.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// CounterInconsistency — зафиксированное расхождение кэшированного счётчика.
// Не прерывает транзакцию: событие само по себе корректно, расхождение
// логируется и помечается для reconciliation.
type CounterInconsistency struct {
	// AssetID — актив с расхождением счётчика.
	AssetID string
	// Reason — причина: underflow (декремент нуля) или missing_asset.
	Reason string
}

func (c *CounterInconsistency) String() string {
	return fmt.Sprintf("счётчик просмотров актива %s: %s", c.AssetID, c.Reason)
}

// ViewEventRepository — интерфейс записи событий просмотра.
// Репозиторий создаётся поверх pgx.Tx: вставка события и обновление
// счётчика — одна единица работы, либо коммитится целиком, либо никак.
type ViewEventRepository interface {
	// Append записывает событие просмотра и инкрементирует кэшированный
	// счётчик актива (+ обновляет last_viewed_at).
	// Для отсутствующего или удалённого актива — ErrNotFound.
	Append(ctx context.Context, ev *model.ViewEvent) error
	// Remove удаляет событие просмотра и декрементирует счётчик актива
	// (с полом в ноль). Возвращает ID затронутого актива и ненулевую
	// CounterInconsistency при декременте нулевого счётчика или отсутствии
	// актива — вызывающий код логирует расхождение, транзакция при этом
	// коммитится.
	Remove(ctx context.Context, eventID string) (string, *CounterInconsistency, error)
	// CountByAsset возвращает фактическое число событий актива.
	// Только для reconciliation и тестов — путь чтения пользуется
	// кэшированным view_count.
	CountByAsset(ctx context.Context, assetID string) (int64, error)
}

// viewEventRepo — реализация ViewEventRepository через pgx.
type viewEventRepo struct {
	db DBTX
}

// NewViewEventRepository создаёт репозиторий событий просмотра.
// db — как правило pgx.Tx из TxRunner.RunInTx.
func NewViewEventRepository(db DBTX) ViewEventRepository {
	return &viewEventRepo{db: db}
}

// Append записывает событие и атомарно инкрементирует счётчик.
func (r *viewEventRepo) Append(ctx context.Context, ev *model.ViewEvent) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO view_events (event_id, asset_id, viewer_id, viewed_at)
		 VALUES ($1, $2, $3, $4)`,
		ev.EventID, ev.AssetID, ev.ViewerID, ev.ViewedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка записи события просмотра: %w", err)
	}

	// Атомарный инкремент той же колонки — не read-modify-write в коде
	// приложения, конкурентные просмотры не теряют обновлений.
	tag, err := r.db.Exec(ctx,
		`UPDATE media_assets
		 SET view_count = view_count + 1, last_viewed_at = $2
		 WHERE asset_id = $1 AND status <> 'deleted'`,
		ev.AssetID, ev.ViewedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка инкремента счётчика просмотров: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Актив логически удалён — событие не фиксируем, транзакция откатится.
		return ErrNotFound
	}
	return nil
}

// Remove удаляет событие и атомарно декрементирует счётчик с полом в ноль.
// Прежнее значение счётчика захватывается в том же UPDATE (FOR UPDATE
// сериализует конкурентные декременты), чтобы отличить штатный декремент
// от underflow.
func (r *viewEventRepo) Remove(ctx context.Context, eventID string) (string, *CounterInconsistency, error) {
	var assetID string
	err := r.db.QueryRow(ctx,
		`DELETE FROM view_events WHERE event_id = $1 RETURNING asset_id`,
		eventID,
	).Scan(&assetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("ошибка удаления события просмотра: %w", err)
	}

	var oldCount int64
	err = r.db.QueryRow(ctx,
		`UPDATE media_assets m
		 SET view_count = GREATEST(m.view_count - 1, 0)
		 FROM (SELECT asset_id, view_count FROM media_assets WHERE asset_id = $1 FOR UPDATE) prev
		 WHERE m.asset_id = prev.asset_id
		 RETURNING prev.view_count`,
		assetID,
	).Scan(&oldCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Актива уже нет, а событие было — расхождение для reconciliation.
			return assetID, &CounterInconsistency{AssetID: assetID, Reason: "missing_asset"}, nil
		}
		return assetID, nil, fmt.Errorf("ошибка декремента счётчика просмотров: %w", err)
	}
	if oldCount == 0 {
		// Декремент нулевого счётчика: пол в ноль применён, расхождение помечаем.
		return assetID, &CounterInconsistency{AssetID: assetID, Reason: "underflow"}, nil
	}
	return assetID, nil, nil
}

// CountByAsset возвращает фактическое количество событий просмотра актива.
func (r *viewEventRepo) CountByAsset(ctx context.Context, assetID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM view_events WHERE asset_id = $1`,
		assetID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта событий просмотра: %w", err)
	}
	return n, nil
}
