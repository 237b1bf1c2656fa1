// Пакет model — доменные модели Media Module.
// MediaAsset — маппинг таблицы media_assets (реестр медиа-активов).
package model

import "time"

// AssetStatus — статус жизненного цикла медиа-актива.
type AssetStatus string

const (
	// StatusActive — актив доступен для чтения и выдачи.
	StatusActive AssetStatus = "active"
	// StatusOrphaned — владелец удалён, актив сохранён, но скрыт.
	StatusOrphaned AssetStatus = "orphaned"
	// StatusArchived — актив в архиве, скрыт из выдачи.
	StatusArchived AssetStatus = "archived"
	// StatusPendingDelete — актив помечен на удаление, ожидает очистки.
	StatusPendingDelete AssetStatus = "pending_delete"
	// StatusDeleted — терминальный статус, запись логически удалена.
	StatusDeleted AssetStatus = "deleted"
)

// MediaAsset — запись медиа-актива в реестре media_assets.
type MediaAsset struct {
	// AssetID — UUID актива
	AssetID string
	// OwnerID — UUID владельца (nil для orphaned-активов)
	OwnerID *string
	// FileName — оригинальное имя загруженного файла
	FileName string
	// Title — отображаемое название актива
	Title string
	// Size — размер файла в байтах
	Size int64
	// Checksum — SHA-256 контрольная сумма содержимого.
	// Уникальна среди всех неудалённых активов (защита от дублей).
	Checksum string
	// Tags — теги актива (массив строк)
	Tags []string
	// Status — статус жизненного цикла: active, orphaned, archived, pending_delete, deleted
	Status AssetStatus
	// Visible — флаг видимости в публичной выдаче
	Visible bool
	// UploadedAt — время загрузки
	UploadedAt time.Time
	// LastViewedAt — время последнего просмотра (nil, если просмотров не было)
	LastViewedAt *time.Time
	// ViewCount — кэшированный счётчик просмотров.
	// Поддерживается атомарными инкрементами при записи событий просмотра,
	// общий путь обновления эту колонку не трогает.
	ViewCount int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time

	// Owner — развёрнутый владелец (заполняется при expand=owner)
	Owner *Owner
	// TechnicalMetadata — развёрнутые технические метаданные
	// (заполняются при expand=technical_metadata)
	TechnicalMetadata *TechnicalMetadata
}

// Owner — владелец медиа-актива (таблица owners).
type Owner struct {
	// OwnerID — UUID владельца
	OwnerID string
	// Username — уникальное имя пользователя
	Username string
	// DisplayName — отображаемое имя
	DisplayName string
	// CreatedAt — время регистрации
	CreatedAt time.Time
}

// TechnicalMetadata — технические метаданные медиа-актива (таблица technical_metadata).
// Создаются не более одного раза на актив, удаляются каскадно вместе с ним.
type TechnicalMetadata struct {
	// AssetID — UUID актива-владельца (PK, 1:0..1)
	AssetID string
	// Container — формат контейнера (mp4, mkv, webm)
	Container string
	// VideoCodec — видеокодек (h264, vp9, av1)
	VideoCodec string
	// AudioCodec — аудиокодек (aac, opus)
	AudioCodec string
	// Width — ширина кадра в пикселях
	Width int
	// Height — высота кадра в пикселях
	Height int
	// DurationMs — длительность в миллисекундах
	DurationMs int64
	// BitrateBps — битрейт в битах в секунду
	BitrateBps int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// ViewEvent — событие просмотра медиа-актива (таблица view_events).
// Append-only факт: после создания не обновляется, может быть удалён
// (удаление декрементирует кэшированный счётчик актива).
type ViewEvent struct {
	// EventID — UUID события
	EventID string
	// AssetID — UUID просмотренного актива
	AssetID string
	// ViewerID — UUID зрителя (nil для анонимного просмотра)
	ViewerID *string
	// ViewedAt — время просмотра
	ViewedAt time.Time
}
