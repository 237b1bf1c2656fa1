package service

import (
	"testing"
	"time"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// TestCacheService_GetSet проверяет базовые операции Get/Set.
func TestCacheService_GetSet(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	asset := &model.MediaAsset{
		AssetID:  "test-uuid-1",
		FileName: "clip.mp4",
		Size:     1024,
		Status:   model.StatusActive,
	}

	// Cache miss
	_, ok := cache.Get("test-uuid-1")
	if ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	// Set + cache hit
	cache.Set("test-uuid-1", asset)
	got, ok := cache.Get("test-uuid-1")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.AssetID != "test-uuid-1" {
		t.Errorf("AssetID = %q, ожидался %q", got.AssetID, "test-uuid-1")
	}
	if got.FileName != "clip.mp4" {
		t.Errorf("FileName = %q, ожидался %q", got.FileName, "clip.mp4")
	}
}

// TestCacheService_Delete проверяет удаление из кэша (инвалидация).
func TestCacheService_Delete(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	cache.Set("delete-me", &model.MediaAsset{AssetID: "delete-me", Status: model.StatusActive})

	// Проверяем что запись есть
	if _, ok := cache.Get("delete-me"); !ok {
		t.Fatal("ожидался cache hit перед удалением")
	}

	cache.Delete("delete-me")

	// Проверяем что записи больше нет
	if _, ok := cache.Get("delete-me"); ok {
		t.Fatal("ожидался cache miss после Delete")
	}
}

// TestCacheService_TTLExpiration проверяет автоматическое истечение TTL.
func TestCacheService_TTLExpiration(t *testing.T) {
	// Короткий TTL = 50ms для теста
	cache := NewCacheService(100, 50*time.Millisecond)

	cache.Set("ttl-test", &model.MediaAsset{AssetID: "ttl-test", Status: model.StatusActive})

	// Сразу после Set — должен быть hit
	if _, ok := cache.Get("ttl-test"); !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	// Ждём истечения TTL
	time.Sleep(100 * time.Millisecond)

	// После истечения TTL — должен быть miss
	if _, ok := cache.Get("ttl-test"); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestCacheService_Eviction проверяет вытеснение при превышении maxSize.
func TestCacheService_Eviction(t *testing.T) {
	// Кэш на 2 записи
	cache := NewCacheService(2, 5*time.Minute)

	cache.Set("a1", &model.MediaAsset{AssetID: "a1", Status: model.StatusActive})
	cache.Set("a2", &model.MediaAsset{AssetID: "a2", Status: model.StatusActive})

	// Обе записи в кэше
	if _, ok := cache.Get("a1"); !ok {
		t.Fatal("ожидался cache hit для a1")
	}
	if _, ok := cache.Get("a2"); !ok {
		t.Fatal("ожидался cache hit для a2")
	}

	// Добавляем третью — старейшая запись вытесняется
	cache.Set("a3", &model.MediaAsset{AssetID: "a3", Status: model.StatusActive})

	if _, ok := cache.Get("a3"); !ok {
		t.Fatal("ожидался cache hit для a3")
	}
}

// TestCacheService_Update проверяет обновление записи в кэше.
func TestCacheService_Update(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	cache.Set("update-test", &model.MediaAsset{AssetID: "update-test", ViewCount: 1})
	cache.Set("update-test", &model.MediaAsset{AssetID: "update-test", ViewCount: 2})

	got, ok := cache.Get("update-test")
	if !ok {
		t.Fatal("ожидался cache hit после обновления")
	}
	if got.ViewCount != 2 {
		t.Errorf("ViewCount = %d, ожидался 2", got.ViewCount)
	}
}
