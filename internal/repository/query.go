// query.go — спецификация запроса к реестру активов и её компиляция в SQL.
// AssetQuery — неизменяемый value object: фильтры, сортировка, страница,
// флаги развёртывания связей. Валидация выполняется до компиляции,
// до хранилища некорректная спецификация не доходит.
package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Ограничения пагинации.
const (
	// DefaultPageSize — размер страницы по умолчанию.
	DefaultPageSize = 100
	// MaxPageSize — максимально допустимый размер страницы.
	MaxPageSize = 1000
)

// Флаги развёртывания связанных записей.
const (
	// ExpandOwner — приложить владельца актива.
	ExpandOwner = "owner"
	// ExpandTechnicalMetadata — приложить технические метаданные.
	ExpandTechnicalMetadata = "technical_metadata"
)

// expandVocabulary — полный словарь допустимых флагов развёртывания.
var expandVocabulary = map[string]bool{
	ExpandOwner:             true,
	ExpandTechnicalMetadata: true,
}

// ValidateExpand проверяет флаги развёртывания по словарю.
// Единственная точка проверки словаря — используется и валидацией
// спецификации поиска, и точечным получением актива.
func ValidateExpand(expand []string) error {
	for _, e := range expand {
		if !expandVocabulary[e] {
			return fmt.Errorf("нераспознанный флаг развёртывания %q, допустимые: %s",
				e, strings.Join(expandNames(), ", "))
		}
	}
	return nil
}

// sortColumns — whitelist полей сортировки (ключ API → колонка таблицы).
// Предотвращает SQL-инъекции — только разрешённые значения.
var sortColumns = map[string]string{
	"uploaded_at": "uploaded_at",
	"name":        "file_name",
	"title":       "title",
	"size":        "size",
}

// defaultSortColumn — сортировка по умолчанию (uploaded_at DESC).
const defaultSortColumn = "uploaded_at"

// AssetQuery — параметры поиска медиа-активов.
// Все поля-фильтры — указатели, nil = фильтр не применяется.
// Фильтры комбинируются конъюнктивно (AND).
type AssetQuery struct {
	// NameContains — подстрока имени файла (case-insensitive)
	NameContains *string
	// TitleContains — подстрока названия (case-insensitive)
	TitleContains *string
	// MinSize — минимальный размер актива (байт)
	MinSize *int64
	// MaxSize — максимальный размер актива (байт)
	MaxSize *int64
	// UploadedAfter — активы, загруженные после указанной даты
	UploadedAfter *time.Time
	// UploadedBefore — активы, загруженные до указанной даты
	UploadedBefore *time.Time
	// Status — фильтр по статусу жизненного цикла.
	// Удалённые активы исключаются из выдачи всегда, независимо от фильтра.
	Status *string
	// OwnerID — фильтр по владельцу (exact match)
	OwnerID *string
	// Visible — фильтр по флагу видимости
	Visible *bool
	// Tags — актив должен содержать все указанные теги
	Tags *[]string
	// SortBy — ключ сортировки: uploaded_at, name, title, size
	SortBy string
	// SortOrder — направление: asc, desc
	SortOrder string
	// Page — номер страницы (1-based)
	Page int
	// PageSize — размер страницы [1, MaxPageSize]
	PageSize int
	// Expand — флаги развёртывания связей (owner, technical_metadata)
	Expand []string
}

// Validate проверяет корректность спецификации запроса.
// Некорректные границы страниц, диапазоны и нераспознанные флаги
// развёртывания отклоняются здесь — до компиляции в SQL.
func (q *AssetQuery) Validate() error {
	if q.Page < 1 {
		return fmt.Errorf("page должен быть >= 1, получен %d", q.Page)
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return fmt.Errorf("page_size должен быть в диапазоне [1, %d], получен %d", MaxPageSize, q.PageSize)
	}

	if q.SortBy != "" {
		if _, ok := sortColumns[q.SortBy]; !ok {
			return fmt.Errorf("недопустимый ключ сортировки %q, допустимые: %s",
				q.SortBy, strings.Join(sortKeys(), ", "))
		}
	}
	if q.SortOrder != "" && !strings.EqualFold(q.SortOrder, "asc") && !strings.EqualFold(q.SortOrder, "desc") {
		return fmt.Errorf("недопустимое направление сортировки %q, допустимые: asc, desc", q.SortOrder)
	}

	// Нераспознанные флаги развёртывания — ошибка, не тихий no-op.
	if err := ValidateExpand(q.Expand); err != nil {
		return err
	}

	// Вырожденные диапазоны отклоняются на границе валидации.
	if q.MinSize != nil && *q.MinSize < 0 {
		return errors.New("min_size не может быть отрицательным")
	}
	if q.MaxSize != nil && *q.MaxSize < 0 {
		return errors.New("max_size не может быть отрицательным")
	}
	if q.MinSize != nil && q.MaxSize != nil && *q.MinSize > *q.MaxSize {
		return errors.New("min_size не может быть больше max_size")
	}
	if q.UploadedAfter != nil && q.UploadedBefore != nil && q.UploadedAfter.After(*q.UploadedBefore) {
		return errors.New("uploaded_after не может быть позже uploaded_before")
	}

	if q.Status != nil {
		switch *q.Status {
		case "active", "orphaned", "archived", "pending_delete":
			// Удалённые активы недоступны через поиск.
		default:
			return fmt.Errorf("недопустимый фильтр статуса %q, допустимые: active, orphaned, archived, pending_delete", *q.Status)
		}
	}

	return nil
}

// Offset возвращает смещение окна для (page, page_size).
// Полуинтервал [(page-1)*page_size, page*page_size).
func (q *AssetQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// expandSet возвращает флаги развёртывания в виде множества.
func (q *AssetQuery) expandSet() map[string]bool {
	set := make(map[string]bool, len(q.Expand))
	for _, e := range q.Expand {
		set[e] = true
	}
	return set
}

// buildAssetWhere строит WHERE-условие и аргументы для поиска активов.
// startArg — номер первого $-параметра (для корректной нумерации).
// Удалённые активы исключаются безусловно.
//
//nolint:cyclop // сложность обусловлена количеством фильтров
func buildAssetWhere(q AssetQuery, startArg int) (whereClause string, args []any) {
	// Удалённые записи никогда не попадают в выдачу.
	conditions := []string{"a.status <> 'deleted'"}
	argNum := startArg

	// Подстрока имени файла (case-insensitive)
	if q.NameContains != nil && *q.NameContains != "" {
		conditions = append(conditions, fmt.Sprintf("a.file_name ILIKE $%d", argNum))
		args = append(args, "%"+*q.NameContains+"%")
		argNum++
	}

	// Подстрока названия (case-insensitive)
	if q.TitleContains != nil && *q.TitleContains != "" {
		conditions = append(conditions, fmt.Sprintf("a.title ILIKE $%d", argNum))
		args = append(args, "%"+*q.TitleContains+"%")
		argNum++
	}

	// Диапазон размера
	if q.MinSize != nil {
		conditions = append(conditions, fmt.Sprintf("a.size >= $%d", argNum))
		args = append(args, *q.MinSize)
		argNum++
	}
	if q.MaxSize != nil {
		conditions = append(conditions, fmt.Sprintf("a.size <= $%d", argNum))
		args = append(args, *q.MaxSize)
		argNum++
	}

	// Диапазон времени загрузки
	if q.UploadedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("a.uploaded_at >= $%d", argNum))
		args = append(args, *q.UploadedAfter)
		argNum++
	}
	if q.UploadedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("a.uploaded_at <= $%d", argNum))
		args = append(args, *q.UploadedBefore)
		argNum++
	}

	// Фильтр по статусу (exact match)
	if q.Status != nil && *q.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", argNum))
		args = append(args, *q.Status)
		argNum++
	}

	// Фильтр по владельцу
	if q.OwnerID != nil && *q.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("a.owner_id = $%d", argNum))
		args = append(args, *q.OwnerID)
		argNum++
	}

	// Фильтр по видимости
	if q.Visible != nil {
		conditions = append(conditions, fmt.Sprintf("a.visible = $%d", argNum))
		args = append(args, *q.Visible)
		argNum++
	}

	// Фильтр по тегам (актив должен содержать все указанные теги — оператор @>)
	if q.Tags != nil && len(*q.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("a.tags @> $%d", argNum))
		args = append(args, *q.Tags)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// buildAssetOrderBy строит ORDER BY с безопасным whitelist полей.
// Вторичный ключ asset_id обеспечивает детерминированный порядок
// при равных значениях первичного ключа сортировки — без него окна
// пагинации нестабильны при одинаковых uploaded_at.
func buildAssetOrderBy(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = defaultSortColumn
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY a.%s %s, a.asset_id %s", column, direction, direction)
}

// sortKeys возвращает отсортированный список допустимых ключей сортировки.
func sortKeys() []string {
	keys := make([]string, 0, len(sortColumns))
	for k := range sortColumns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// expandNames возвращает отсортированный словарь флагов развёртывания.
func expandNames() []string {
	names := make([]string, 0, len(expandVocabulary))
	for n := range expandVocabulary {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
