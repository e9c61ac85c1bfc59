package services_test

import (
	"context"
	"sync"
	"time"

	"product-wizard-service/models"
	"product-wizard-service/services"
)

// --- Mock creator ---

type fakeCreator struct {
	mu       sync.Mutex
	calls    int
	products []*models.Product
	err      error
	// gate, when set, blocks CreateEntity until it is closed.
	gate    chan struct{}
	started chan struct{}
	ctxErr  error
}

func (f *fakeCreator) CreateEntity(ctx context.Context, p *models.Product) (*models.CreatedEntity, error) {
	f.mu.Lock()
	f.calls++
	f.products = append(f.products, p)
	gate, started, err := f.gate, f.started, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.ctxErr = ctx.Err()
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &models.CreatedEntity{ID: p.ID.String(), CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}, nil
}

func (f *fakeCreator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCreator) Last() *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.products) == 0 {
		return nil
	}
	return f.products[len(f.products)-1]
}

func (f *fakeCreator) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// --- Mock contributor ---

type contribution struct {
	code string
	by   string
}

type fakeContributor struct {
	mu    sync.Mutex
	calls []contribution
	err   error
}

func (f *fakeContributor) Contribute(_ context.Context, p *models.Product, by string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, contribution{code: p.IdentifierCode, by: by})
	return f.err
}

func (f *fakeContributor) Calls() []contribution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contribution(nil), f.calls...)
}

// --- Mock metrics ---

type fakeMetrics struct {
	mu      sync.Mutex
	counts  map[string]int
	dims    []map[string]string
	latency []time.Duration
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: make(map[string]int)}
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, dims map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name]++
	f.dims = append(f.dims, dims)
	return nil
}

func (f *fakeMetrics) RecordLatency(_ context.Context, _ string, d time.Duration, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = append(f.latency, d)
	return nil
}

func (f *fakeMetrics) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

// --- Event recorder ---

type eventRecorder struct {
	mu     sync.Mutex
	events []services.Event
}

func recordEvents(bus *services.EventBus) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(func(e services.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *eventRecorder) Types() []services.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]services.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *eventRecorder) Has(t services.EventType) bool {
	for _, got := range r.Types() {
		if got == t {
			return true
		}
	}
	return false
}

func (r *eventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
