package printing_test

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/erp/labelprint/internal/application/printing"
	domain "github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/domain/shared"
	infra "github.com/erp/labelprint/internal/infrastructure/printing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Register(ctx context.Context, req *domain.RegistrationRequest) (*domain.ConfirmedBatch, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConfirmedBatch), args.Error(1)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(ctx context.Context, doc *domain.Document, dest string) error {
	args := m.Called(ctx, doc, dest)
	return args.Error(0)
}

type MockInteractiveSink struct {
	mock.Mock
}

func (m *MockInteractiveSink) Present(ctx context.Context, doc *domain.Document, dest string) error {
	args := m.Called(ctx, doc, dest)
	return args.Error(0)
}

type fakeRenderer struct {
	mu       sync.Mutex
	requests []*infra.SheetRequest
	err      error
}

func (r *fakeRenderer) Render(ctx context.Context, req *infra.SheetRequest) (*infra.Sheets, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	g := domain.StandardSheet()
	pages := g.PageCount(req.StartPosition, len(req.Labels))
	sheets := &infra.Sheets{LabelCount: len(req.Labels), DPI: 10, Geometry: g}
	for i := 0; i < pages; i++ {
		sheets.Pages = append(sheets.Pages, image.NewGray(image.Rect(0, 0, 85, 110)))
	}
	return sheets, nil
}

func (r *fakeRenderer) last() *infra.SheetRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	return r.requests[len(r.requests)-1]
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(ctx context.Context, req *infra.EncodeRequest) (*domain.Document, error) {
	return &domain.Document{
		JobID:       req.JobID,
		Title:       req.Title,
		ContentType: domain.ContentTypePDF,
		Data:        []byte("%PDF-fake"),
		PageCount:   req.Sheets.PageCount(),
		LabelCount:  req.Sheets.LabelCount,
		CreatedAt:   req.CreatedAt,
	}, nil
}

func (fakeEncoder) Close() error { return nil }

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type statusRecorder struct {
	mu      sync.Mutex
	updates []domain.StatusUpdate
}

func (r *statusRecorder) Observe(u domain.StatusUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *statusRecorder) States() []domain.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]domain.JobState, len(r.updates))
	for i, u := range r.updates {
		states[i] = u.State
	}
	return states
}

func (r *statusRecorder) Last() domain.StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}

type memoryHistory struct {
	mu      sync.Mutex
	records []domain.JobRecord
}

func (h *memoryHistory) Save(ctx context.Context, rec *domain.JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *rec)
	return nil
}

func (h *memoryHistory) FindByID(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.records {
		if h.records[i].ID == id {
			rec := h.records[i]
			return &rec, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (h *memoryHistory) FindRecent(ctx context.Context, storeID string, limit int) ([]domain.JobRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.JobRecord(nil), h.records...), nil
}

// =============================================================================
// Fixtures
// =============================================================================

func testConfig() *domain.PrintJobConfig {
	return &domain.PrintJobConfig{
		StoreID:          "store-1",
		StoreName:        "Flora",
		LocationID:       "loc-1",
		LocationName:     "Downtown",
		DefaultTierLabel: "1g",
		TrackingBaseURL:  "https://track.example.com/q",
	}
}

func testItems(quantities ...int) []domain.PrintItem {
	items := make([]domain.PrintItem, len(quantities))
	for i, q := range quantities {
		items[i] = domain.PrintItem{
			Product:  domain.ItemSnapshot{ID: uuid.NewString(), Name: "Item"},
			Quantity: q,
		}
	}
	return items
}

func confirmedBatch(n int) *domain.ConfirmedBatch {
	labels := make([]domain.LabelPayload, n)
	for i := range labels {
		labels[i] = domain.LabelPayload{
			SaleCode: domain.NewSaleCode(domain.SaleCodeSaleUnit, uuid.New()),
			Item:     domain.ItemSnapshot{ID: "prod", Name: "Item"},
		}
	}
	return &domain.ConfirmedBatch{
		Labels:            labels,
		Config:            domain.BatchConfig{StoreID: "store-1"},
		SealedDate:        time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		QRCodesRegistered: n,
	}
}

type harness struct {
	orch        *printing.Orchestrator
	registrar   *MockRegistrar
	sink        *MockSink
	interactive *MockInteractiveSink
	renderer    *fakeRenderer
	sleeper     *recordingSleeper
	settings    *printing.SettingsStore
	reprints    *printing.ReprintStore
	history     *memoryHistory
	status      *statusRecorder
}

func newHarness(t *testing.T, mutate ...func(*printing.Dependencies)) *harness {
	t.Helper()
	h := &harness{
		registrar:   new(MockRegistrar),
		sink:        new(MockSink),
		interactive: new(MockInteractiveSink),
		renderer:    &fakeRenderer{},
		sleeper:     &recordingSleeper{},
		settings:    printing.NewSettingsStore(domain.PrinterSettings{Destination: "tcp://10.0.0.5", AutoPrint: true}),
		reprints:    printing.NewReprintStore(time.Hour),
		history:     &memoryHistory{},
		status:      &statusRecorder{},
	}
	t.Cleanup(func() { h.reprints.Close() })

	deps := printing.Dependencies{
		Registrar:   h.registrar,
		Renderer:    h.renderer,
		Encoder:     fakeEncoder{},
		Sink:        h.sink,
		Interactive: h.interactive,
		Settings:    h.settings,
		Reprints:    h.reprints,
		History:     h.history,
		Observers:   []printing.StatusObserver{h.status.Observe},
		Defaults:    *testConfig(),
		Sleep:       h.sleeper.Sleep,
		Logger:      zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&deps)
	}
	orch, err := printing.NewOrchestrator(deps)
	require.NoError(t, err)
	h.orch = orch
	return h
}
