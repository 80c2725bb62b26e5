// CacheService — LRU-кэш записей реплеев с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/replaystore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш реплеев.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша реплеев.",
	})
)

// CacheService — LRU-кэш записей с автоматическим TTL.
// Хранит и отдаёт копии, поэтому изменение полученной записи не затрагивает кэш.
type CacheService struct {
	cache *expirable.LRU[string, *model.Replay]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.Replay](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает копию записи из кэша.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) Get(id string) (*model.Replay, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		cp := *val
		return &cp, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(id string, rp *model.Replay) {
	cp := *rp
	c.cache.Add(id, &cp)
}

// Delete удаляет запись из кэша.
// Безопасен для nil-получателя: сервисы могут работать без кэша.
func (c *CacheService) Delete(id string) {
	if c == nil {
		return
	}
	c.cache.Remove(id)
}

// Len возвращает количество записей в кэше.
func (c *CacheService) Len() int {
	return c.cache.Len()
}
