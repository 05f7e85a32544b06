package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"PricePortal/internal/domain/models"
	"PricePortal/internal/domain/service"
)

type fakeFetcher struct {
	mu        sync.Mutex
	series    models.PriceSeries
	histErr   error
	rate      float64
	rateErr   error
	histCalls int
	lastStart time.Time
	lastEnd   time.Time
	symbol    string
}

func (f *fakeFetcher) FetchHistory(_ context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histCalls++
	f.symbol, f.lastStart, f.lastEnd = symbol, start, end
	return f.series, f.histErr
}

func (f *fakeFetcher) FetchConversionRate(context.Context) (float64, error) {
	return f.rate, f.rateErr
}

type fakeEngine struct {
	mu     sync.Mutex
	out    float64
	err    error
	window []float64
}

func (e *fakeEngine) Predict(_ context.Context, window []float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window = append([]float64(nil), window...)
	return e.out, e.err
}

func (e *fakeEngine) Name() string { return "fake" }

type fakeMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	events      map[string]int
	fxFallbacks int
	modelLoaded bool
	training    []string
	errors      map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{predictions: map[string]int{}, events: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordPrediction(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[outcome]++
}

func (m *fakeMetrics) RecordFXFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fxFallbacks++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordEvent(stage, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[stage+"/"+status]++
}

func (m *fakeMetrics) SetModelLoaded(loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelLoaded = loaded
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) RecordTraining(status string, _, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.training = append(m.training, status)
}

func (m *fakeMetrics) RecordCacheLookup(string, bool) {}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.PredictionEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *models.PredictionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemStore() *memStore { return &memStore{files: map[string][]byte{}} }

func (s *memStore) Save(_ context.Context, path string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.files[path] = b
	return nil
}

func (s *memStore) Load(_ context.Context, path string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	if !ok {
		return fmt.Errorf("artifact %s: not found", path)
	}
	return json.Unmarshal(b, v)
}

type fakeTrainer struct {
	set    *service.TrainingSet
	result *service.TrainingResult
	err    error
}

func (t *fakeTrainer) Fit(_ context.Context, set *service.TrainingSet) (*service.TrainingResult, error) {
	t.set = set
	return t.result, t.err
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[string]*models.User{}} }

func (r *fakeUsers) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[u.Username]; ok {
		return models.ErrUserExists
	}
	r.users[u.Username] = u
	return nil
}

func (r *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[username]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUsers) Init(context.Context) error { return nil }

func (r *fakeUsers) Health(context.Context) error { return nil }

type fakeArchive struct {
	stored []*models.PredictionEvent
	err    error
}

func (a *fakeArchive) Init(context.Context) error { return nil }

func (a *fakeArchive) StoreBatch(_ context.Context, events []*models.PredictionEvent) error {
	if a.err != nil {
		return a.err
	}
	a.stored = append(a.stored, events...)
	return nil
}

func (a *fakeArchive) Health(context.Context) error { return nil }

func (a *fakeArchive) Close() error { return nil }

// flatSeries returns n daily bars starting 2023-01-02 with the given closes;
// missing closes repeat the last one.
func flatSeries(n int, closes ...float64) models.PriceSeries {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	s := make(models.PriceSeries, n)
	c := 100.0
	for i := 0; i < n; i++ {
		if i < len(closes) {
			c = closes[i]
		}
		s[i] = models.PriceBar{Date: day.AddDate(0, 0, i), Close: c}
	}
	return s
}
