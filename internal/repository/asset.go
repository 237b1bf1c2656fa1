package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// assetColumns — список колонок таблицы media_assets для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const assetColumns = `a.asset_id, a.owner_id, a.file_name, a.title, a.size, a.checksum,
	a.tags, a.status, a.visible, a.uploaded_at, a.last_viewed_at, a.view_count,
	a.created_at, a.updated_at`

// ownerColumns — колонки владельца, добавляются при expand=owner.
const ownerColumns = `, o.username, o.display_name, o.created_at`

// technicalMetadataColumns — колонки техметаданных, добавляются при expand=technical_metadata.
const technicalMetadataColumns = `, tm.container, tm.video_codec, tm.audio_codec,
	tm.width, tm.height, tm.duration_ms, tm.bitrate_bps, tm.created_at`

// AssetRepository — интерфейс доступа к реестру медиа-активов.
type AssetRepository interface {
	// GetByID возвращает актив по UUID с запрошенными развёртываниями.
	// Логически удалённые активы не возвращаются.
	GetByID(ctx context.Context, assetID string, expand []string) (*model.MediaAsset, error)
	// Find выполняет поиск активов по спецификации запроса.
	// Возвращает: страницу активов, общее количество совпадений до оконной
	// выборки, ошибку. Фильтрация, сортировка, окно и развёртывания
	// выполняются одним SQL-запросом.
	Find(ctx context.Context, q AssetQuery) ([]*model.MediaAsset, int, error)
	// Insert регистрирует новый актив.
	// При совпадении контрольной суммы с неудалённым активом возвращает
	// *DuplicateContentError с ID существующей записи.
	Insert(ctx context.Context, a *model.MediaAsset) error
	// UpdateState сохраняет результат перехода жизненного цикла:
	// статус, видимость, владельца, название и теги.
	// Колонку view_count не трогает — ею владеет счётчик просмотров.
	UpdateState(ctx context.Context, a *model.MediaAsset) error
	// HardDelete физически удаляет актив.
	// Техметаданные и события просмотров удаляются каскадно (FK).
	HardDelete(ctx context.Context, assetID string) error
	// SetTechnicalMetadata создаёт техметаданные актива (не более одного раза).
	SetTechnicalMetadata(ctx context.Context, tm *model.TechnicalMetadata) error
}

// assetRepo — реализация AssetRepository через pgx.
type assetRepo struct {
	db DBTX
}

// NewAssetRepository создаёт репозиторий медиа-активов.
func NewAssetRepository(db DBTX) AssetRepository {
	return &assetRepo{db: db}
}

// expandScan — временные nullable-поля для развёрнутых связей.
// LEFT JOIN возвращает NULL-колонки, когда связанной записи нет.
type expandScan struct {
	ownerUsername    *string
	ownerDisplayName *string
	ownerCreatedAt   *time.Time

	tmContainer  *string
	tmVideoCodec *string
	tmAudioCodec *string
	tmWidth      *int
	tmHeight     *int
	tmDurationMs *int64
	tmBitrateBps *int64
	tmCreatedAt  *time.Time
}

// selectClause возвращает список колонок и JOIN-часть запроса
// для запрошенных развёртываний. Кэшированный счётчик view_count
// читается из самой записи актива — коллекция view_events для
// чтения никогда не джойнится.
func selectClause(expand map[string]bool) (columns, joins string) {
	columns = assetColumns
	if expand[ExpandOwner] {
		columns += ownerColumns
		joins += " LEFT JOIN owners o ON o.owner_id = a.owner_id"
	}
	if expand[ExpandTechnicalMetadata] {
		columns += technicalMetadataColumns
		joins += " LEFT JOIN technical_metadata tm ON tm.asset_id = a.asset_id"
	}
	return columns, joins
}

// scanDest собирает список приёмников Scan для актива, развёртываний
// и (опционально) оконного COUNT(*).
func scanDest(a *model.MediaAsset, ex *expandScan, expand map[string]bool, total *int) []any {
	dest := []any{
		&a.AssetID, &a.OwnerID, &a.FileName, &a.Title, &a.Size, &a.Checksum,
		&a.Tags, &a.Status, &a.Visible, &a.UploadedAt, &a.LastViewedAt, &a.ViewCount,
		&a.CreatedAt, &a.UpdatedAt,
	}
	if expand[ExpandOwner] {
		dest = append(dest, &ex.ownerUsername, &ex.ownerDisplayName, &ex.ownerCreatedAt)
	}
	if expand[ExpandTechnicalMetadata] {
		dest = append(dest,
			&ex.tmContainer, &ex.tmVideoCodec, &ex.tmAudioCodec,
			&ex.tmWidth, &ex.tmHeight, &ex.tmDurationMs, &ex.tmBitrateBps, &ex.tmCreatedAt,
		)
	}
	if total != nil {
		dest = append(dest, total)
	}
	return dest
}

// attach прикладывает развёрнутые связи к активу после Scan.
func (ex *expandScan) attach(a *model.MediaAsset) {
	if a.OwnerID != nil && ex.ownerUsername != nil {
		a.Owner = &model.Owner{
			OwnerID:     *a.OwnerID,
			Username:    *ex.ownerUsername,
			DisplayName: derefString(ex.ownerDisplayName),
			CreatedAt:   derefTime(ex.ownerCreatedAt),
		}
	}
	if ex.tmContainer != nil {
		a.TechnicalMetadata = &model.TechnicalMetadata{
			AssetID:    a.AssetID,
			Container:  *ex.tmContainer,
			VideoCodec: derefString(ex.tmVideoCodec),
			AudioCodec: derefString(ex.tmAudioCodec),
			Width:      derefInt(ex.tmWidth),
			Height:     derefInt(ex.tmHeight),
			DurationMs: derefInt64(ex.tmDurationMs),
			BitrateBps: derefInt64(ex.tmBitrateBps),
			CreatedAt:  derefTime(ex.tmCreatedAt),
		}
	}
}

// GetByID возвращает актив по UUID или ErrNotFound.
func (r *assetRepo) GetByID(ctx context.Context, assetID string, expand []string) (*model.MediaAsset, error) {
	set := make(map[string]bool, len(expand))
	for _, e := range expand {
		set[e] = true
	}
	columns, joins := selectClause(set)

	query := fmt.Sprintf(
		`SELECT %s FROM media_assets a%s WHERE a.asset_id = $1 AND a.status <> 'deleted'`,
		columns, joins,
	)

	a := &model.MediaAsset{}
	ex := &expandScan{}
	err := r.db.QueryRow(ctx, query, assetID).Scan(scanDest(a, ex, set, nil)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения актива: %w", err)
	}
	ex.attach(a)
	return a, nil
}

// Find выполняет поиск активов с фильтрами, сортировкой, пагинацией
// и развёртываниями одним запросом. Общее количество совпадений берётся
// из оконной функции COUNT(*) OVER() в том же SELECT, поэтому счётчик и
// строки окна читаются из одного снимка данных (без read-skew).
func (r *assetRepo) Find(ctx context.Context, q AssetQuery) ([]*model.MediaAsset, int, error) {
	set := q.expandSet()
	columns, joins := selectClause(set)

	where, args := buildAssetWhere(q, 1)
	argNum := len(args) + 1

	orderBy := buildAssetOrderBy(q.SortBy, q.SortOrder)

	dataQuery := fmt.Sprintf(
		`SELECT %s, COUNT(*) OVER() AS total_count FROM media_assets a%s %s %s LIMIT $%d OFFSET $%d`,
		columns, joins, where, orderBy, argNum, argNum+1,
	)
	args = append(args, q.PageSize, q.Offset())

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска активов: %w", err)
	}
	defer rows.Close()

	var result []*model.MediaAsset
	var total int
	for rows.Next() {
		a := &model.MediaAsset{}
		ex := &expandScan{}
		if err := rows.Scan(scanDest(a, ex, set, &total)...); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования актива: %w", err)
		}
		ex.attach(a)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	// Окно за последней страницей возвращает ноль строк — оконного
	// COUNT(*) в этом случае нет. Добираем количество отдельным запросом:
	// строк в окне нет, поэтому расхождения между счётчиком и выдачей
	// возникнуть не может.
	if len(result) == 0 && q.Offset() > 0 {
		countWhere, countArgs := buildAssetWhere(q, 1)
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM media_assets a %s`, countWhere)
		if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("ошибка подсчёта активов: %w", err)
		}
	}

	return result, total, nil
}

// Insert регистрирует новый актив в реестре.
//
// Защита от дублей двухуровневая: предварительная проверка контрольной
// суммы даёт дружелюбную ошибку с ID существующего актива, а частичный
// уникальный индекс по checksum (WHERE status <> 'deleted') — гарантия
// корректности при гонке конкурентных вставок. Нарушение индекса
// маппится в ту же DuplicateContentError.
func (r *assetRepo) Insert(ctx context.Context, a *model.MediaAsset) error {
	// Предварительная проверка — оптимизация для дружелюбной ошибки,
	// источник истины — уникальный индекс.
	if existingID, err := r.findByChecksum(ctx, a.Checksum); err != nil {
		return err
	} else if existingID != "" {
		return &DuplicateContentError{ExistingID: existingID, Checksum: a.Checksum}
	}

	query := `
		INSERT INTO media_assets (asset_id, owner_id, file_name, title, size, checksum,
			tags, status, visible, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING view_count, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.AssetID, a.OwnerID, a.FileName, a.Title, a.Size, a.Checksum,
		a.Tags, a.Status, a.Visible, a.UploadedAt,
	).Scan(&a.ViewCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Конкурентная вставка дубля прошла pre-check — индекс сработал.
			existingID, lookupErr := r.findByChecksum(ctx, a.Checksum)
			if lookupErr == nil && existingID != "" {
				return &DuplicateContentError{ExistingID: existingID, Checksum: a.Checksum}
			}
			return fmt.Errorf("%w: актив с такой контрольной суммой уже зарегистрирован", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			// Единственный FK при вставке — owner_id → owners.
			return fmt.Errorf("владелец %q не зарегистрирован: %w", derefString(a.OwnerID), ErrNotFound)
		}
		return fmt.Errorf("ошибка регистрации актива: %w", err)
	}
	return nil
}

// findByChecksum возвращает ID неудалённого актива с указанной контрольной
// суммой или пустую строку.
func (r *assetRepo) findByChecksum(ctx context.Context, checksum string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT asset_id FROM media_assets WHERE checksum = $1 AND status <> 'deleted'`,
		checksum,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("ошибка проверки контрольной суммы: %w", err)
	}
	return id, nil
}

// UpdateState сохраняет новое состояние актива после перехода жизненного цикла.
// Неизменяемые колонки (file_name, size, checksum, uploaded_at) и колонка
// view_count (владение у счётчика просмотров) из обновления исключены.
func (r *assetRepo) UpdateState(ctx context.Context, a *model.MediaAsset) error {
	query := `
		UPDATE media_assets
		SET owner_id = $2, title = $3, tags = $4, status = $5, visible = $6,
			updated_at = now()
		WHERE asset_id = $1`

	tag, err := r.db.Exec(ctx, query,
		a.AssetID, a.OwnerID, a.Title, a.Tags, a.Status, a.Visible,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения состояния актива: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HardDelete физически удаляет актив. Каскад по FK удаляет
// technical_metadata и view_events.
func (r *assetRepo) HardDelete(ctx context.Context, assetID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM media_assets WHERE asset_id = $1`, assetID)
	if err != nil {
		return fmt.Errorf("ошибка физического удаления актива: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTechnicalMetadata создаёт техметаданные актива.
// Повторное создание — ErrConflict (PK = asset_id), отсутствующий актив — ErrNotFound.
func (r *assetRepo) SetTechnicalMetadata(ctx context.Context, tm *model.TechnicalMetadata) error {
	query := `
		INSERT INTO technical_metadata (asset_id, container, video_codec, audio_codec,
			width, height, duration_ms, bitrate_bps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		tm.AssetID, tm.Container, tm.VideoCodec, tm.AudioCodec,
		tm.Width, tm.Height, tm.DurationMs, tm.BitrateBps,
	).Scan(&tm.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: техметаданные актива уже созданы", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка создания техметаданных: %w", err)
	}
	return nil
}

// --- Вспомогательные функции разыменования nullable-колонок ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
