// claim_cache.go — LRU-кэш заявок по протоколу с TTL.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Nicolas1xx/Rivilog-LOG/internal/domain/model"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_claim_cache_hits_total",
		Help: "Общее количество попаданий в кэш заявок.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rv_claim_cache_misses_total",
		Help: "Общее количество промахов кэша заявок.",
	})
)

// ClaimCache — кэш заявок, ключ — протокол.
// Заявки неизменяемы после создания, поэтому инвалидация нужна только при удалении.
type ClaimCache struct {
	cache *expirable.LRU[string, *model.Claim]
}

// NewClaimCache создаёт кэш на maxSize записей с временем жизни ttl.
func NewClaimCache(maxSize int, ttl time.Duration) *ClaimCache {
	return &ClaimCache{cache: expirable.NewLRU[string, *model.Claim](maxSize, nil, ttl)}
}

// Get возвращает заявку из кэша.
func (c *ClaimCache) Get(protocol string) (*model.Claim, bool) {
	val, ok := c.cache.Get(protocol)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет заявку. Заявки без протокола не кэшируются.
func (c *ClaimCache) Set(claim *model.Claim) {
	if claim.Protocol == "" {
		return
	}
	c.cache.Add(claim.Protocol, claim)
}

// Delete удаляет заявку из кэша.
func (c *ClaimCache) Delete(protocol string) {
	c.cache.Remove(protocol)
}
