package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/mediastore/internal/config"
	"github.com/bigkaa/mediastore/internal/database"
	"github.com/bigkaa/mediastore/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("mediastore_test"),
		postgres.WithUsername("mediastore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("MM_DB_HOST", host)
	os.Setenv("MM_DB_PORT", port.Port())
	os.Setenv("MM_DB_NAME", "mediastore_test")
	os.Setenv("MM_DB_USER", "mediastore")
	os.Setenv("MM_DB_PASSWORD", "test-password")
	os.Setenv("MM_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// testAsset создаёт актив с уникальной контрольной суммой для вставки.
func testAsset(fileName string, uploadedAt time.Time) *model.MediaAsset {
	// Два UUID без дефисов — ровно 64 hex-символа.
	checksum := strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	return &model.MediaAsset{
		AssetID:    uuid.New().String(),
		FileName:   fileName,
		Title:      "Тестовый актив",
		Size:       1024,
		Checksum:   checksum,
		Tags:       []string{"test"},
		Status:     model.StatusActive,
		Visible:    true,
		UploadedAt: uploadedAt,
	}
}

// --- Тесты AssetRepository ---

func TestAssetInsertAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	assetRepo := NewAssetRepository(pool)
	ownerRepo := NewOwnerRepository(pool)

	owner := &model.Owner{
		OwnerID:     uuid.New().String(),
		Username:    "uploader-1",
		DisplayName: "Загрузчик",
	}
	if err := ownerRepo.Create(ctx, owner); err != nil {
		t.Fatalf("Create(owner) ошибка: %v", err)
	}

	a := testAsset("movie.mp4", time.Now().UTC())
	a.OwnerID = &owner.OwnerID

	if err := assetRepo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}
	if a.ViewCount != 0 {
		t.Errorf("ViewCount = %d, хотели 0", a.ViewCount)
	}

	tm := &model.TechnicalMetadata{
		AssetID:    a.AssetID,
		Container:  "mp4",
		VideoCodec: "h264",
		Width:      1920,
		Height:     1080,
		DurationMs: 60000,
	}
	if err := assetRepo.SetTechnicalMetadata(ctx, tm); err != nil {
		t.Fatalf("SetTechnicalMetadata() ошибка: %v", err)
	}

	// GetByID без развёртываний — связи не приложены
	got, err := assetRepo.GetByID(ctx, a.AssetID, nil)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.FileName != "movie.mp4" {
		t.Errorf("FileName = %q, хотели %q", got.FileName, "movie.mp4")
	}
	if got.Owner != nil || got.TechnicalMetadata != nil {
		t.Error("связи приложены без запроса expand")
	}

	// GetByID с обоими развёртываниями
	got, err = assetRepo.GetByID(ctx, a.AssetID, []string{ExpandOwner, ExpandTechnicalMetadata})
	if err != nil {
		t.Fatalf("GetByID(expand) ошибка: %v", err)
	}
	if got.Owner == nil || got.Owner.Username != "uploader-1" {
		t.Errorf("Owner = %+v, хотели username=uploader-1", got.Owner)
	}
	if got.TechnicalMetadata == nil || got.TechnicalMetadata.Container != "mp4" {
		t.Errorf("TechnicalMetadata = %+v, хотели container=mp4", got.TechnicalMetadata)
	}
}

func TestAssetInsert_Duplicate(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	a1 := testAsset("orig.mp4", time.Now().UTC())
	if err := repo.Insert(ctx, a1); err != nil {
		t.Fatalf("Insert(a1) ошибка: %v", err)
	}

	// Повторная вставка той же контрольной суммы — DuplicateContentError
	a2 := testAsset("copy.mp4", time.Now().UTC())
	a2.Checksum = a1.Checksum
	err := repo.Insert(ctx, a2)

	var dup *DuplicateContentError
	if !errors.As(err, &dup) {
		t.Fatalf("Insert(a2) = %v, хотели *DuplicateContentError", err)
	}
	if dup.ExistingID != a1.AssetID {
		t.Errorf("ExistingID = %q, хотели %q", dup.ExistingID, a1.AssetID)
	}

	// После логического удаления контрольная сумма освобождается
	// (частичный уникальный индекс WHERE status <> 'deleted').
	if _, err := pool.Exec(ctx,
		`UPDATE media_assets SET status = 'deleted' WHERE asset_id = $1`, a1.AssetID,
	); err != nil {
		t.Fatalf("пометка deleted ошибка: %v", err)
	}
	if err := repo.Insert(ctx, a2); err != nil {
		t.Fatalf("Insert(a2) после удаления a1 ошибка: %v", err)
	}
}

func TestAssetInsert_UnknownOwner(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	// Ссылка на незарегистрированного владельца — нарушение FK,
	// маппится в ErrNotFound, а не в сырую ошибку драйвера.
	a := testAsset("nobody.mp4", time.Now().UTC())
	unknownOwner := uuid.New().String()
	a.OwnerID = &unknownOwner

	err := repo.Insert(ctx, a)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Insert() = %v, хотели ErrNotFound", err)
	}
}

func TestAssetInsert_DuplicateRace(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	// Конкурентные вставки одной контрольной суммы: гонка проходит
	// pre-check, корректность гарантирует частичный уникальный индекс.
	checksum := strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			a := testAsset("race.mp4", time.Now().UTC())
			a.Checksum = checksum
			results <- repo.Insert(ctx, a)
		}(i)
	}

	var succeeded, duplicates int
	for i := 0; i < workers; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		default:
			var dup *DuplicateContentError
			if errors.As(err, &dup) || errors.Is(err, ErrConflict) {
				duplicates++
			} else {
				t.Errorf("неожиданная ошибка гонки: %v", err)
			}
		}
	}

	if succeeded != 1 {
		t.Errorf("успешных вставок %d, хотели ровно 1", succeeded)
	}
	if duplicates != workers-1 {
		t.Errorf("отклонённых дублей %d, хотели %d", duplicates, workers-1)
	}
}

func TestAssetFind_Pagination(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// T1 < T2 < T3
	for i, name := range []string{"first.mp4", "second.mp4", "third.mp4"} {
		a := testAsset(name, base.Add(time.Duration(i)*time.Hour))
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("Insert(%s) ошибка: %v", name, err)
		}
	}

	// Страница 1: сортировка по умолчанию uploaded_at DESC → [third, second]
	q := AssetQuery{Page: 1, PageSize: 2}
	items, total, err := repo.Find(ctx, q)
	if err != nil {
		t.Fatalf("Find(page=1) ошибка: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, хотели 3", total)
	}
	if len(items) != 2 {
		t.Fatalf("page=1: %d записей, хотели 2", len(items))
	}
	if items[0].FileName != "third.mp4" || items[1].FileName != "second.mp4" {
		t.Errorf("page=1: [%s %s], хотели [third.mp4 second.mp4]",
			items[0].FileName, items[1].FileName)
	}

	// Страница 2 → [first]
	q.Page = 2
	items, total, err = repo.Find(ctx, q)
	if err != nil {
		t.Fatalf("Find(page=2) ошибка: %v", err)
	}
	if total != 3 || len(items) != 1 || items[0].FileName != "first.mp4" {
		t.Errorf("page=2: total=%d, items=%d, хотели total=3, [first.mp4]", total, len(items))
	}

	// Страница за последней — пустая выдача, корректный total
	q.Page = 5
	items, total, err = repo.Find(ctx, q)
	if err != nil {
		t.Fatalf("Find(page=5) ошибка: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("page=5: items=%d, хотели 0", len(items))
	}
	if total != 3 {
		t.Errorf("page=5: total=%d, хотели 3", total)
	}
}

func TestAssetFind_Filters(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	now := time.Now().UTC()
	a1 := testAsset("holiday-video.mp4", now)
	a1.Tags = []string{"video", "holiday"}
	a1.Size = 5000
	a2 := testAsset("report.pdf", now)
	a2.Tags = []string{"doc"}
	a2.Size = 100
	for _, a := range []*model.MediaAsset{a1, a2} {
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	// Подстрока имени (case-insensitive)
	name := "HOLIDAY"
	items, total, err := repo.Find(ctx, AssetQuery{NameContains: &name, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find(name) ошибка: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].AssetID != a1.AssetID {
		t.Errorf("Find(name): total=%d, хотели 1 совпадение a1", total)
	}

	// Все указанные теги
	tags := []string{"video", "holiday"}
	items, total, err = repo.Find(ctx, AssetQuery{Tags: &tags, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find(tags) ошибка: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("Find(tags): total=%d, хотели 1", total)
	}

	// Диапазон размера
	minSize := int64(1000)
	items, _, err = repo.Find(ctx, AssetQuery{MinSize: &minSize, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find(min_size) ошибка: %v", err)
	}
	if len(items) != 1 || items[0].AssetID != a1.AssetID {
		t.Errorf("Find(min_size): %d совпадений, хотели только a1", len(items))
	}
}

func TestAssetFind_ExcludesDeleted(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	a := testAsset("gone.mp4", time.Now().UTC())
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`UPDATE media_assets SET status = 'deleted' WHERE asset_id = $1`, a.AssetID,
	); err != nil {
		t.Fatalf("пометка deleted ошибка: %v", err)
	}

	_, total, err := repo.Find(ctx, AssetQuery{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find() ошибка: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, удалённые активы не должны попадать в выдачу", total)
	}

	if _, err := repo.GetByID(ctx, a.AssetID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(deleted) = %v, хотели ErrNotFound", err)
	}
}

func TestAssetUpdateState(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	a := testAsset("archive-me.mp4", time.Now().UTC())
	if err := repo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	a.Status = model.StatusArchived
	a.Visible = false
	if err := repo.UpdateState(ctx, a); err != nil {
		t.Fatalf("UpdateState() ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, a.AssetID, nil)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusArchived {
		t.Errorf("Status = %q, хотели archived", got.Status)
	}
	if got.Visible {
		t.Error("Visible = true, хотели false")
	}
}

// --- Тесты ViewEventRepository ---

// appendView записывает просмотр в транзакции, как это делает сервисный слой.
func appendView(t *testing.T, runner *TxRunner, assetID string) string {
	t.Helper()
	ev := &model.ViewEvent{
		EventID:  uuid.New().String(),
		AssetID:  assetID,
		ViewedAt: time.Now().UTC(),
	}
	err := runner.RunInTx(context.Background(), func(tx pgx.Tx) error {
		return NewViewEventRepository(tx).Append(context.Background(), ev)
	})
	if err != nil {
		t.Fatalf("Append() ошибка: %v", err)
	}
	return ev.EventID
}

// removeView откатывает просмотр в транзакции.
func removeView(t *testing.T, runner *TxRunner, eventID string) *CounterInconsistency {
	t.Helper()
	var inc *CounterInconsistency
	err := runner.RunInTx(context.Background(), func(tx pgx.Tx) error {
		var err error
		_, inc, err = NewViewEventRepository(tx).Remove(context.Background(), eventID)
		return err
	})
	if err != nil {
		t.Fatalf("Remove() ошибка: %v", err)
	}
	return inc
}

func TestViewCounter_AppendRemove(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	assetRepo := NewAssetRepository(pool)
	runner := NewTxRunner(pool)

	a := testAsset("watched.mp4", time.Now().UTC())
	if err := assetRepo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	// 5 просмотров, 2 отката → счётчик 3
	eventIDs := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		eventIDs = append(eventIDs, appendView(t, runner, a.AssetID))
	}
	for _, id := range eventIDs[:2] {
		if inc := removeView(t, runner, id); inc != nil {
			t.Errorf("Remove() вернул расхождение %v для штатного отката", inc)
		}
	}

	got, err := assetRepo.GetByID(ctx, a.AssetID, nil)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.ViewCount != 3 {
		t.Errorf("ViewCount = %d, хотели 3", got.ViewCount)
	}
	if got.LastViewedAt == nil {
		t.Error("LastViewedAt не установлен после просмотров")
	}

	// Фактическое число событий совпадает со счётчиком
	n, err := NewViewEventRepository(pool).CountByAsset(ctx, a.AssetID)
	if err != nil {
		t.Fatalf("CountByAsset() ошибка: %v", err)
	}
	if n != 3 {
		t.Errorf("CountByAsset = %d, хотели 3", n)
	}
}

func TestViewCounter_Underflow(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	assetRepo := NewAssetRepository(pool)
	runner := NewTxRunner(pool)

	a := testAsset("under.mp4", time.Now().UTC())
	if err := assetRepo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	eventID := appendView(t, runner, a.AssetID)

	// Обнуляем счётчик вручную — моделируем ранее возникшее расхождение.
	if _, err := pool.Exec(ctx,
		`UPDATE media_assets SET view_count = 0 WHERE asset_id = $1`, a.AssetID,
	); err != nil {
		t.Fatalf("обнуление счётчика ошибка: %v", err)
	}

	inc := removeView(t, runner, eventID)
	if inc == nil || inc.Reason != "underflow" {
		t.Fatalf("Remove() = %v, хотели расхождение underflow", inc)
	}

	// Пол в ноль: счётчик не ушёл в минус, событие удалено.
	got, err := assetRepo.GetByID(ctx, a.AssetID, nil)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.ViewCount != 0 {
		t.Errorf("ViewCount = %d, хотели 0 (пол в ноль)", got.ViewCount)
	}
	n, _ := NewViewEventRepository(pool).CountByAsset(ctx, a.AssetID)
	if n != 0 {
		t.Errorf("CountByAsset = %d, хотели 0", n)
	}
}

func TestViewCounter_RemoveUnknownEvent(t *testing.T) {
	pool := setupTestDB(t)
	runner := NewTxRunner(pool)

	err := runner.RunInTx(context.Background(), func(tx pgx.Tx) error {
		_, _, err := NewViewEventRepository(tx).Remove(context.Background(), uuid.New().String())
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(unknown) = %v, хотели ErrNotFound", err)
	}
}

func TestViewCounter_AppendToUnknownAsset(t *testing.T) {
	pool := setupTestDB(t)
	runner := NewTxRunner(pool)

	ev := &model.ViewEvent{
		EventID:  uuid.New().String(),
		AssetID:  uuid.New().String(),
		ViewedAt: time.Now().UTC(),
	}
	err := runner.RunInTx(context.Background(), func(tx pgx.Tx) error {
		return NewViewEventRepository(tx).Append(context.Background(), ev)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Append(unknown asset) = %v, хотели ErrNotFound", err)
	}
}

func TestAssetHardDelete_Cascade(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	assetRepo := NewAssetRepository(pool)
	runner := NewTxRunner(pool)

	a := testAsset("purge-me.mp4", time.Now().UTC())
	if err := assetRepo.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if err := assetRepo.SetTechnicalMetadata(ctx, &model.TechnicalMetadata{
		AssetID: a.AssetID, Container: "mp4",
	}); err != nil {
		t.Fatalf("SetTechnicalMetadata() ошибка: %v", err)
	}
	appendView(t, runner, a.AssetID)

	if err := assetRepo.HardDelete(ctx, a.AssetID); err != nil {
		t.Fatalf("HardDelete() ошибка: %v", err)
	}

	// Каскад удалил техметаданные и события
	var n int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM technical_metadata WHERE asset_id = $1`, a.AssetID,
	).Scan(&n); err != nil {
		t.Fatalf("подсчёт техметаданных ошибка: %v", err)
	}
	if n != 0 {
		t.Errorf("technical_metadata: %d записей, хотели 0 (каскад)", n)
	}
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM view_events WHERE asset_id = $1`, a.AssetID,
	).Scan(&n); err != nil {
		t.Fatalf("подсчёт событий ошибка: %v", err)
	}
	if n != 0 {
		t.Errorf("view_events: %d записей, хотели 0 (каскад)", n)
	}
}
