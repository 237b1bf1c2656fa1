// Пакет service — бизнес-логика Media Module.
// CacheService — LRU-кэш метаданных медиа-активов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных активов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных активов.",
	})
)

// CacheService — LRU-кэш метаданных активов с автоматическим TTL.
// Каждый экземпляр модуля имеет собственный in-memory кэш (per-instance, stateless архитектура).
// Кэшируются только базовые записи без связанных сущностей: запрос с expand
// всегда идёт мимо кэша, чтобы не отдавать устаревшие связи.
type CacheService struct {
	cache *expirable.LRU[string, *model.MediaAsset]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.MediaAsset](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает MediaAsset из кэша по assetID.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(assetID string) (*model.MediaAsset, bool) {
	val, ok := c.cache.Get(assetID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(assetID string, asset *model.MediaAsset) {
	c.cache.Add(assetID, asset)
}

// Delete удаляет запись из кэша.
// Вызывается при любой мутации актива: смена статуса, удаление, учёт просмотров.
func (c *CacheService) Delete(assetID string) {
	c.cache.Remove(assetID)
}
