package services_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"product-wizard-service/models"
	"product-wizard-service/services"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Fake registries ---

type fakeRegistry struct {
	calls atomic.Int32
	fn    func(ctx context.Context, code string) (*models.Candidate, error)
}

func (f *fakeRegistry) LookupByCode(ctx context.Context, code string) (*models.Candidate, error) {
	f.calls.Add(1)
	return f.fn(ctx, code)
}

// blockingRegistry waits until release is closed or ctx ends.
type blockingRegistry struct {
	release chan struct{}
	next    services.Registry
}

func (b *blockingRegistry) LookupByCode(ctx context.Context, code string) (*models.Candidate, error) {
	select {
	case <-b.release:
		return b.next.LookupByCode(ctx, code)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       "localhost:0",
		MaxRetries: -1,
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("redis disabled in tests")
		},
	})
}

func TestPrefixRegistry_KnownPrefixes(t *testing.T) {
	r := services.NewPrefixRegistry("")

	book, err := r.LookupByCode(context.Background(), "9781234567897")
	require.NoError(t, err)
	assert.Equal(t, "Books", book.Category)
	assert.Equal(t, "Book 9781234567897", book.Name)
	assert.True(t, book.Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, []string{"https://registry.example.com/media/9781234567897.jpg"}, book.Media)
	assert.Equal(t, []string{"books", "978"}, book.Keywords)

	food, err := r.LookupByCode(context.Background(), "80012345")
	require.NoError(t, err)
	assert.Equal(t, "Food", food.Category)
	assert.True(t, food.Price.Equal(decimal.RequireFromString("4.99")))
}

func TestPrefixRegistry_UnknownCode(t *testing.T) {
	r := services.NewPrefixRegistry("https://media.test/")

	c, err := r.LookupByCode(context.Background(), "12345")
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	assert.Nil(t, c)

	c, err = r.LookupByCode(context.Background(), "800")
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	assert.Nil(t, c)
}

func TestPrefixRegistry_IsDeterministic(t *testing.T) {
	r := services.NewPrefixRegistry("https://media.test/")
	a, err := r.LookupByCode(context.Background(), "978000")
	require.NoError(t, err)
	b, err := r.LookupByCode(context.Background(), "978000")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "https://media.test/978000.jpg", a.Media[0])
}

func TestLookupAdapter_FoundAndNotFound(t *testing.T) {
	a := services.NewLookupAdapter(services.NewPrefixRegistry(""))

	res, err := a.Resolve(context.Background(), "978111")
	require.NoError(t, err)
	assert.True(t, res.Found)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, "978111", res.Candidate.IdentifierCode)

	res, err = a.Resolve(context.Background(), "555")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Nil(t, res.Candidate)
	assert.Equal(t, "555", res.Code)
}

func TestLookupAdapter_RequestIDsAreMonotonic(t *testing.T) {
	a := services.NewLookupAdapter(services.NewPrefixRegistry(""))

	first, err := a.Resolve(context.Background(), "978")
	require.NoError(t, err)
	second, err := a.Resolve(context.Background(), "978")
	require.NoError(t, err)

	assert.Greater(t, second.RequestID, first.RequestID)
	assert.False(t, a.IsLatest(first.RequestID))
	assert.True(t, a.IsLatest(second.RequestID))

	a.Invalidate()
	assert.False(t, a.IsLatest(second.RequestID))
}

func TestLookupAdapter_EmptyCode(t *testing.T) {
	a := services.NewLookupAdapter(services.NewPrefixRegistry(""))
	_, err := a.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, services.ErrEmptyCode)
}

func TestLookupAdapter_RegistryFailureIsWrapped(t *testing.T) {
	boom := errors.New("registry down")
	a := services.NewLookupAdapter(&fakeRegistry{fn: func(context.Context, string) (*models.Candidate, error) {
		return nil, boom
	}})

	res, err := a.Resolve(context.Background(), "978")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Found)
}

func TestLookupAdapter_HonoursCancellation(t *testing.T) {
	reg := &blockingRegistry{release: make(chan struct{}), next: services.NewPrefixRegistry("")}
	defer close(reg.release)
	a := services.NewLookupAdapter(reg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Resolve(ctx, "978")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedRegistry_FallsThroughWhenRedisIsDown(t *testing.T) {
	next := &fakeRegistry{fn: services.NewPrefixRegistry("").LookupByCode}
	c := services.NewCachedRegistry(next, newTestRedisClient(), time.Minute, zap.NewNop())

	cand, err := c.LookupByCode(context.Background(), "97842")
	require.NoError(t, err)
	assert.Equal(t, "Books", cand.Category)

	_, err = c.LookupByCode(context.Background(), "42")
	assert.ErrorIs(t, err, services.ErrCodeNotFound)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedRegistry_PropagatesRegistryErrors(t *testing.T) {
	boom := errors.New("upstream timeout")
	next := &fakeRegistry{fn: func(context.Context, string) (*models.Candidate, error) { return nil, boom }}
	c := services.NewCachedRegistry(next, newTestRedisClient(), 0, zap.NewNop())

	_, err := c.LookupByCode(context.Background(), "978")
	assert.ErrorIs(t, err, boom)
}

// memoryCache is an in-memory RegistryCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value.(string)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestCachedRegistry_ServesHitsFromCache(t *testing.T) {
	cache := newMemoryCache()
	next := &fakeRegistry{fn: services.NewPrefixRegistry("").LookupByCode}
	c := services.NewCachedRegistry(next, cache, time.Minute, zap.NewNop())

	first, err := c.LookupByCode(context.Background(), "97842")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cache.ttls[services.RegistryCachePrefix+"97842"])

	second, err := c.LookupByCode(context.Background(), "97842")
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Category, second.Category)
	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedRegistry_PreloadedHitSkipsRegistry(t *testing.T) {
	cache := newMemoryCache()
	cache.entries[services.RegistryCachePrefix+"555"] = `{"identifier_code":"555","name":"Desk Lamp","category":"Home","price":"19.99"}`
	next := &fakeRegistry{fn: services.NewPrefixRegistry("").LookupByCode}
	c := services.NewCachedRegistry(next, cache, 0, zap.NewNop())

	cand, err := c.LookupByCode(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", cand.Name)
	assert.True(t, decimal.RequireFromString("19.99").Equal(cand.Price))
	assert.Equal(t, int32(0), next.calls.Load())
}

func TestCachedRegistry_CachesMisses(t *testing.T) {
	cache := newMemoryCache()
	next := &fakeRegistry{fn: services.NewPrefixRegistry("").LookupByCode}
	c := services.NewCachedRegistry(next, cache, time.Minute, zap.NewNop())

	_, err := c.LookupByCode(context.Background(), "42")
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	_, err = c.LookupByCode(context.Background(), "42")
	assert.ErrorIs(t, err, services.ErrCodeNotFound)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedRegistry_UnreadableEntryFallsThrough(t *testing.T) {
	cache := newMemoryCache()
	cache.entries[services.RegistryCachePrefix+"97842"] = "{not json"
	next := &fakeRegistry{fn: services.NewPrefixRegistry("").LookupByCode}
	c := services.NewCachedRegistry(next, cache, time.Minute, zap.NewNop())

	cand, err := c.LookupByCode(context.Background(), "97842")
	require.NoError(t, err)
	assert.Equal(t, "Books", cand.Category)
	assert.Equal(t, int32(1), next.calls.Load())
	assert.NotEqual(t, "{not json", cache.entries[services.RegistryCachePrefix+"97842"])
}
