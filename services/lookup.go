package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"product-wizard-service/models"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCodeNotFound = errors.New("code not found in registry")
	ErrStaleLookup  = errors.New("lookup superseded by a newer request")
	ErrEmptyCode    = errors.New("identifier code is empty")
)

// Registry answers code lookups against the shared product registry.
type Registry interface {
	LookupByCode(ctx context.Context, code string) (*models.Candidate, error)
}

// LookupAdapter tags every lookup with a monotonic request id so callers can
// discard answers that were overtaken by a newer request.
type LookupAdapter struct {
	registry Registry
	latest   atomic.Uint64
}

func NewLookupAdapter(registry Registry) *LookupAdapter {
	return &LookupAdapter{registry: registry}
}

// Issue reserves the next request id and marks it as the latest.
func (a *LookupAdapter) Issue() uint64 {
	return a.latest.Add(1)
}

// IsLatest reports whether id is still the most recent request.
func (a *LookupAdapter) IsLatest(id uint64) bool {
	return a.latest.Load() == id
}

// Invalidate makes every outstanding request stale.
func (a *LookupAdapter) Invalidate() {
	a.latest.Add(1)
}

// Resolve issues a fresh id and resolves code.
func (a *LookupAdapter) Resolve(ctx context.Context, code string) (models.LookupResult, error) {
	return a.ResolveWithID(ctx, a.Issue(), code)
}

// ResolveWithID resolves code under an id obtained from Issue. A registry
// miss is a normal result with Found false; only transport failures and
// cancellation are returned as errors.
func (a *LookupAdapter) ResolveWithID(ctx context.Context, id uint64, code string) (models.LookupResult, error) {
	res := models.LookupResult{RequestID: id, Code: code}
	code = strings.TrimSpace(code)
	if code == "" {
		return res, ErrEmptyCode
	}

	type answer struct {
		c   *models.Candidate
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		c, err := a.registry.LookupByCode(ctx, code)
		ch <- answer{c, err}
	}()

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case ans := <-ch:
		switch {
		case errors.Is(ans.err, ErrCodeNotFound):
			return res, nil
		case ans.err != nil:
			return res, fmt.Errorf("registry lookup: %w", ans.err)
		}
		res.Found = true
		res.Candidate = ans.c
		return res, nil
	}
}

type prefixRule struct {
	prefix   string
	category string
	price    string
	label    string
}

var registryPrefixes = []prefixRule{
	{prefix: "978", category: "Books", price: "19.99", label: "Book"},
	{prefix: "8001", category: "Food", price: "4.99", label: "Grocery item"},
}

// PrefixRegistry knows a code iff it starts with one of the registered
// prefixes. The candidate is derived from the code alone, so repeated
// lookups of the same code agree.
type PrefixRegistry struct {
	mediaBaseURL string
}

func NewPrefixRegistry(mediaBaseURL string) *PrefixRegistry {
	if mediaBaseURL == "" {
		mediaBaseURL = "https://registry.example.com/media"
	}
	return &PrefixRegistry{mediaBaseURL: strings.TrimRight(mediaBaseURL, "/")}
}

func (r *PrefixRegistry) LookupByCode(ctx context.Context, code string) (*models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, rule := range registryPrefixes {
		if !strings.HasPrefix(code, rule.prefix) {
			continue
		}
		return &models.Candidate{
			IdentifierCode: code,
			Name:           fmt.Sprintf("%s %s", rule.label, code),
			Description:    fmt.Sprintf("Registry record for %s", code),
			Category:       rule.category,
			Price:          decimal.RequireFromString(rule.price),
			Media:          []string{fmt.Sprintf("%s/%s.jpg", r.mediaBaseURL, code)},
			Keywords:       []string{strings.ToLower(rule.category), rule.prefix},
		}, nil
	}
	return nil, ErrCodeNotFound
}

const (
	RegistryCachePrefix  = "registry:code:"
	registryMissMarker   = "__not_found__"
	DefaultRegistryTTL   = 10 * time.Minute
	registryCacheTimeout = 2 * time.Second
)

// RegistryCache is the part of the Redis client the cache uses.
type RegistryCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedRegistry is a read-through Redis cache in front of another
// Registry. Misses are cached too. Redis failures fall through to the
// wrapped registry.
type CachedRegistry struct {
	next   Registry
	redis  RegistryCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRegistry(next Registry, client RegistryCache, ttl time.Duration, logger *zap.Logger) *CachedRegistry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	return &CachedRegistry{next: next, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedRegistry) LookupByCode(ctx context.Context, code string) (*models.Candidate, error) {
	key := RegistryCachePrefix + code

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == registryMissMarker {
			return nil, ErrCodeNotFound
		}
		var cand models.Candidate
		if jerr := json.Unmarshal([]byte(cached), &cand); jerr == nil {
			return &cand, nil
		}
		c.logger.Warn("Discarding unreadable registry cache entry", zap.String("code", code))
	case err != redis.Nil:
		c.logger.Warn("Registry cache read failed", zap.String("code", code), zap.Error(err))
	}

	cand, err := c.next.LookupByCode(ctx, code)
	switch {
	case errors.Is(err, ErrCodeNotFound):
		c.store(key, registryMissMarker)
		return nil, err
	case err != nil:
		return nil, err
	}

	body, jerr := json.Marshal(cand)
	if jerr != nil {
		c.logger.Warn("Failed to marshal candidate for cache", zap.String("code", code), zap.Error(jerr))
		return cand, nil
	}
	c.store(key, string(body))
	return cand, nil
}

func (c *CachedRegistry) store(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), registryCacheTimeout)
	defer cancel()
	if err := c.redis.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache registry lookup", zap.String("key", key), zap.Error(err))
	}
}
