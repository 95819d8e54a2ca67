package cache

import (
	"context"
	"time"

	"github.com/athebyme/mms-connector/pkg/interfaces"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache реализация CachePort в памяти процесса.
// Используется в single-instance развертываниях и в тестах вместо Redis.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache создает новый in-memory кэш
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) interfaces.CachePort {
	return &MemoryCache{
		cache: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get получает значение из кэша по ключу
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	val, found := m.cache.Get(key)
	if !found {
		return nil, interfaces.ErrCacheMiss
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	return data, nil
}

// Set сохраняет значение в кэше
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	m.cache.Set(key, value, expiration)
	return nil
}

// Delete удаляет значение из кэша
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Lock пытается получить блокировку. Add атомарен в рамках процесса:
// повторный вызов с тем же ключом до истечения срока вернет ошибку.
func (m *MemoryCache) Lock(_ context.Context, key string, expiration time.Duration) (bool, error) {
	if err := m.cache.Add(key, []byte("1"), expiration); err != nil {
		return false, nil
	}
	return true, nil
}

// Unlock освобождает блокировку
func (m *MemoryCache) Unlock(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Close освобождает ресурсы кэша
func (m *MemoryCache) Close() error {
	m.cache.Flush()
	return nil
}
