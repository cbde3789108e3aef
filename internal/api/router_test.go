package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathanmorav/unified-dashboard/internal/config"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/customer"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	journeydomain "github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
	recondomain "github.com/jonathanmorav/unified-dashboard/internal/domain/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/domain/transfer"
	"github.com/jonathanmorav/unified-dashboard/internal/journey"
	"github.com/jonathanmorav/unified-dashboard/internal/reconciliation"
	"github.com/jonathanmorav/unified-dashboard/internal/webhook"
	"github.com/jonathanmorav/unified-dashboard/pkg/snowflake"
	"github.com/jonathanmorav/unified-dashboard/pkg/testhelper"
)

const (
	testWebhookSecret = "test-webhook-secret"
	testAdminToken    = "test-admin-token"
)

// In-memory repositories for router tests.

type memEventRepo struct {
	mu       sync.Mutex
	byID     map[int64]*event.Event
	byDwolla map[string]*event.Event
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{byID: make(map[int64]*event.Event), byDwolla: make(map[string]*event.Event)}
}

func (m *memEventRepo) Insert(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byDwolla[evt.DwollaEventID]; ok {
		return event.ErrDuplicate
	}
	m.byID[evt.ID] = evt
	m.byDwolla[evt.DwollaEventID] = evt
	return nil
}

func (m *memEventRepo) FindByDwollaID(ctx context.Context, id string) (*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := m.byDwolla[id]; ok {
		return evt, nil
	}
	return nil, event.ErrNotFound
}

func (m *memEventRepo) FindByID(ctx context.Context, id int64) (*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := m.byID[id]; ok {
		return evt, nil
	}
	return nil, event.ErrNotFound
}

func (m *memEventRepo) MarkProcessing(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := m.byID[id]; ok {
		evt.State = event.StateProcessing
	}
	return nil
}

func (m *memEventRepo) MarkCompleted(ctx context.Context, id int64, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := m.byID[id]; ok {
		evt.State = event.StateCompleted
		evt.ProcessingDurationMS = duration.Milliseconds()
	}
	return nil
}

func (m *memEventRepo) MarkFailed(ctx context.Context, id int64, attempts int, lastError string, nextAttempt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := m.byID[id]; ok {
		evt.State = event.StateFailed
		evt.Attempts = attempts
		evt.LastError = lastError
		evt.NextAttemptAt = &nextAttempt
	}
	return nil
}

func (m *memEventRepo) MarkQuarantined(ctx context.Context, id int64, attempts int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if evt, ok := m.byID[id]; ok {
		evt.State = event.StateQuarantined
		evt.Attempts = attempts
		evt.LastError = lastError
	}
	return nil
}

func (m *memEventRepo) ClaimRetryBatch(ctx context.Context, limit, maxAttempts int) ([]*event.Event, error) {
	return nil, nil
}

func (m *memEventRepo) CountByState(ctx context.Context) (map[event.State]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[event.State]int64)
	for _, evt := range m.byID {
		counts[evt.State]++
	}
	return counts, nil
}

func (m *memEventRepo) List(ctx context.Context, state event.State, limit int) ([]*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, evt := range m.byID {
		if state != "" && evt.State != state {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}

func (m *memEventRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memTransferRepo struct {
	mu       sync.Mutex
	byDwolla map[string]*transfer.Transfer
}

func newMemTransferRepo() *memTransferRepo {
	return &memTransferRepo{byDwolla: make(map[string]*transfer.Transfer)}
}

func (m *memTransferRepo) FindByDwollaID(ctx context.Context, id string) (*transfer.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byDwolla[id], nil
}

func (m *memTransferRepo) Save(ctx context.Context, t *transfer.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDwolla[t.DwollaTransferID] = t
	return nil
}

func (m *memTransferRepo) ListCreatedBetween(ctx context.Context, start, end time.Time) ([]*transfer.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*transfer.Transfer
	for _, t := range m.byDwolla {
		if !t.CreatedAt.Before(start) && !t.CreatedAt.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memCustomerRepo struct {
	mu       sync.Mutex
	byDwolla map[string]*customer.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{byDwolla: make(map[string]*customer.Customer)}
}

func (m *memCustomerRepo) FindByDwollaID(ctx context.Context, id string) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byDwolla[id], nil
}

func (m *memCustomerRepo) Save(ctx context.Context, c *customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDwolla[c.DwollaCustomerID] = c
	return nil
}

type memJourneyRepo struct {
	mu        sync.Mutex
	instances map[string]*journeydomain.Instance
	steps     []*journeydomain.Step
}

func newMemJourneyRepo() *memJourneyRepo {
	return &memJourneyRepo{instances: make(map[string]*journeydomain.Instance)}
}

func jkey(inst *journeydomain.Instance) string {
	return inst.DefinitionName + "|" + inst.ResourceType + "|" + inst.ResourceID
}

func (m *memJourneyRepo) FindOrCreate(ctx context.Context, inst *journeydomain.Instance) (*journeydomain.Instance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.instances[jkey(inst)]; ok {
		return existing, false, nil
	}
	m.instances[jkey(inst)] = inst
	return inst, true, nil
}

func (m *memJourneyRepo) Save(ctx context.Context, inst *journeydomain.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[jkey(inst)] = inst
	return nil
}

func (m *memJourneyRepo) FindByID(ctx context.Context, id int64) (*journeydomain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return nil, journeydomain.ErrNotFound
}

func (m *memJourneyRepo) AppendStep(ctx context.Context, step *journeydomain.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
	return nil
}

func (m *memJourneyRepo) ListSteps(ctx context.Context, instanceID int64) ([]*journeydomain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*journeydomain.Step
	for _, s := range m.steps {
		if s.InstanceID == instanceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memJourneyRepo) ListStuckCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*journeydomain.Instance, error) {
	return nil, nil
}

func (m *memJourneyRepo) ListByStatus(ctx context.Context, statuses []journeydomain.Status, limit int) ([]*journeydomain.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*journeydomain.Instance
	for _, inst := range m.instances {
		for _, status := range statuses {
			if inst.Status == status {
				out = append(out, inst)
				break
			}
		}
	}
	return out, nil
}

type memReconRepo struct {
	mu            sync.Mutex
	runs          map[string]*recondomain.Run
	discrepancies map[int64]*recondomain.Discrepancy
}

func newMemReconRepo() *memReconRepo {
	return &memReconRepo{
		runs:          make(map[string]*recondomain.Run),
		discrepancies: make(map[int64]*recondomain.Discrepancy),
	}
}

func (m *memReconRepo) CreateRun(ctx context.Context, run *recondomain.Run) error {
	return m.SaveRun(ctx, run)
}

func (m *memReconRepo) SaveRun(ctx context.Context, run *recondomain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *memReconRepo) FindRun(ctx context.Context, id string) (*recondomain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, recondomain.ErrRunNotFound
}

func (m *memReconRepo) ListRunsSince(ctx context.Context, since time.Time, limit int) ([]*recondomain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*recondomain.Run
	for _, run := range m.runs {
		if !run.StartedAt.Before(since) {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *memReconRepo) FindOpenDiscrepancy(ctx context.Context, resourceType, resourceID, checkName string) (*recondomain.Discrepancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.discrepancies {
		if !d.Resolved && d.ResourceType == resourceType && d.ResourceID == resourceID && d.CheckName == checkName {
			return d, nil
		}
	}
	return nil, nil
}

func (m *memReconRepo) SaveDiscrepancy(ctx context.Context, d *recondomain.Discrepancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discrepancies[d.ID] = d
	return nil
}

func (m *memReconRepo) FindDiscrepancy(ctx context.Context, id int64) (*recondomain.Discrepancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.discrepancies[id]; ok {
		return d, nil
	}
	return nil, recondomain.ErrDiscrepancyNotFound
}

func (m *memReconRepo) ListByRun(ctx context.Context, runID string) ([]*recondomain.Discrepancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*recondomain.Discrepancy
	for _, d := range m.discrepancies {
		if d.RunID == runID {
			out = append(out, d)
		}
	}
	return out, nil
}

// Test fixture

type routerFixture struct {
	router    *Router
	events    *memEventRepo
	transfers *memTransferRepo
	customers *memCustomerRepo
	journeys  *memJourneyRepo
	recon     *memReconRepo
	source    *testhelper.MockTransferSource
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	ids, err := snowflake.NewNode()
	require.NoError(t, err)

	cfg := &config.Config{
		Port:              "8080",
		AdminAPIToken:     testAdminToken,
		WebhookSecret:     testWebhookSecret,
		MaxEventAttempts:  3,
		RetryBaseDelay:    time.Millisecond,
		QueuePollInterval: time.Minute,
		QueueBatchSize:    10,
		ReconBatchSize:    10,
	}

	f := &routerFixture{
		events:    newMemEventRepo(),
		transfers: newMemTransferRepo(),
		customers: newMemCustomerRepo(),
		journeys:  newMemJourneyRepo(),
		recon:     newMemReconRepo(),
		source:    testhelper.NewMockTransferSource(),
	}

	logger := zap.NewNop()
	journeyEngine := journey.NewEngine(f.journeys, ids, logger)
	dispatcher := webhook.NewDispatcher(cfg, f.events, f.transfers, f.customers, journeyEngine, logger)
	queue := webhook.NewQueueProcessor(cfg, f.events, dispatcher, logger)
	reconEngine := reconciliation.NewEngine(cfg, f.recon, f.transfers, f.source, ids, logger)
	reporter := reconciliation.NewReporter(f.recon)

	f.router = NewRouter(cfg, f.events, f.journeys, dispatcher, queue, reconEngine, reporter, ids, logger)
	t.Cleanup(queue.Stop)
	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) adminRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Admin-Token", testAdminToken)
	return req
}
