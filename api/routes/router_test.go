package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	"github.com/angelmondragon/groupbuy-settlement/internal/settlement"
	"github.com/angelmondragon/groupbuy-settlement/pkg/config"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubDealStore struct {
	mu      sync.Mutex
	deals   map[uuid.UUID]groupbuy.Deal
	pledges map[uuid.UUID][]groupbuy.Pledge
}

func newStubDealStore() *stubDealStore {
	return &stubDealStore{
		deals:   map[uuid.UUID]groupbuy.Deal{},
		pledges: map[uuid.UUID][]groupbuy.Pledge{},
	}
}

func (s *stubDealStore) GetDeal(_ context.Context, id uuid.UUID) (*groupbuy.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal, ok := s.deals[id]
	if !ok {
		return nil, groupbuy.ErrDealNotFound
	}
	return &deal, nil
}

func (s *stubDealStore) ListPledges(_ context.Context, dealID uuid.UUID) ([]groupbuy.Pledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]groupbuy.Pledge(nil), s.pledges[dealID]...), nil
}

func (s *stubDealStore) CreateDeal(_ context.Context, deal groupbuy.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[deal.ID] = deal
	return nil
}

func (s *stubDealStore) CreatePledge(_ context.Context, pledge groupbuy.Pledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deal, ok := s.deals[pledge.DealID]
	if !ok {
		return groupbuy.ErrDealNotFound
	}
	if !deal.IsActive() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "deal is no longer accepting pledges")
	}
	for _, existing := range s.pledges[pledge.DealID] {
		if existing.BuyerID == pledge.BuyerID {
			return pkgerrors.New(pkgerrors.CodeConflict, "buyer already pledged to this deal")
		}
	}
	s.pledges[pledge.DealID] = append(s.pledges[pledge.DealID], pledge)
	return nil
}

type memoryReplayStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryReplayStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryReplayStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryReplayStore) IdempotencyKey(scope, key string) string {
	return "test:" + scope + ":" + key
}

type stubSettler struct {
	report *settlement.Report
	err    error
	calls  []string
}

func (s *stubSettler) Settle(_ context.Context, dealID uuid.UUID) (*settlement.Report, error) {
	s.calls = append(s.calls, "settle:"+dealID.String())
	return s.report, s.err
}

func (s *stubSettler) ResumeSettlement(_ context.Context, dealID uuid.UUID) (*settlement.Report, error) {
	s.calls = append(s.calls, "resume:"+dealID.String())
	return s.report, s.err
}

type testEnv struct {
	handler http.Handler
	store   *stubDealStore
	settler *stubSettler
}

func newTestEnv(t *testing.T, dbErr error) *testEnv {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_test_total", Help: "test"}))

	store := newStubDealStore()
	settler := &stubSettler{}
	return &testEnv{
		handler: NewRouter(cfg, logg, stubPinger{err: dbErr}, stubPinger{}, reg, &memoryReplayStore{data: map[string]string{}}, store, settler),
		store:   store,
		settler: settler,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithKey(t, method, path, body, "")
}

func (e *testEnv) doWithKey(t *testing.T, method, path, body, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func seedDeal(store *stubDealStore, status enums.DealStatus) groupbuy.Deal {
	deal := groupbuy.Deal{
		ID:                 uuid.New(),
		ProductRef:         uuid.New(),
		SellerRef:          uuid.New(),
		UnitPriceCents:     1000,
		DiscountPercentage: decimal.NewFromInt(10),
		MinQuantity:        5,
		ExpiresAt:          time.Now().Add(time.Hour).UTC(),
		Currency:           enums.CurrencyUSD,
		Status:             status,
	}
	_ = store.CreateDeal(context.Background(), deal)
	return deal
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Groupbuy-Env") != "test" {
		t.Fatalf("live: status=%d env=%q", rec.Code, rec.Header().Get("X-Groupbuy-Env"))
	}
	rec = env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHealthReadyReportsDependencyDown(t *testing.T) {
	env := newTestEnv(t, errors.New("connection refused"))

	rec := env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body.Error == nil || body.Error.Code != string(pkgerrors.CodeDependency) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if !strings.Contains(string(body.Error.Details), `"db":"down"`) {
		t.Fatalf("expected db check in details, got %s", body.Error.Details)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "groupbuy_test_total") {
		t.Fatalf("expected registered metric in output, got %s", rec.Body.String())
	}
}

func TestSettleReturnsReport(t *testing.T) {
	env := newTestEnv(t, nil)
	dealID := uuid.New()
	env.settler.report = &settlement.Report{
		DealID:      dealID,
		Disposition: enums.SettlementDispositionNotDue,
		Results:     []settlement.Result{},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/deals/"+dealID.String()+"/settle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var report settlement.Report
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.DealID != dealID || report.Disposition != enums.SettlementDispositionNotDue {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(env.settler.calls) != 1 || env.settler.calls[0] != "settle:"+dealID.String() {
		t.Fatalf("unexpected calls %v", env.settler.calls)
	}
}

func TestResumeRoutesToResume(t *testing.T) {
	env := newTestEnv(t, nil)
	dealID := uuid.New()
	env.settler.report = &settlement.Report{DealID: dealID, Disposition: enums.SettlementDispositionResumed}

	rec := env.do(t, http.MethodPost, "/api/v1/deals/"+dealID.String()+"/settlement/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(env.settler.calls) != 1 || env.settler.calls[0] != "resume:"+dealID.String() {
		t.Fatalf("unexpected calls %v", env.settler.calls)
	}
}

func TestSettleStoreUnavailableIs503(t *testing.T) {
	env := newTestEnv(t, nil)
	env.settler.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "deal store unavailable")

	rec := env.do(t, http.MethodPost, "/api/v1/deals/"+uuid.NewString()+"/settle", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After on retryable error")
	}
}

func TestSettleRejectsInvalidDealID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/deals/not-a-uuid/settle", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(env.settler.calls) != 0 {
		t.Fatalf("settler must not be called, got %v", env.settler.calls)
	}
}

func TestCreateDealAndPledgeFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{
		"product_ref":"` + uuid.NewString() + `",
		"seller_ref":"` + uuid.NewString() + `",
		"unit_price_cents":1999,
		"discount_percentage":"12.5",
		"min_quantity":3,
		"expires_at":"` + time.Now().Add(24*time.Hour).UTC().Format(time.RFC3339) + `"
	}`

	rec := env.do(t, http.MethodPost, "/api/v1/deals", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create deal: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID       uuid.UUID        `json:"id"`
		Status   enums.DealStatus `json:"status"`
		Currency enums.Currency   `json:"currency"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &created); err != nil {
		t.Fatalf("decode deal: %v", err)
	}
	if created.Status != enums.DealStatusActive || created.Currency != enums.CurrencyUSD {
		t.Fatalf("unexpected defaults %+v", created)
	}

	buyer := uuid.NewString()
	pledgePath := "/api/v1/deals/" + created.ID.String() + "/pledges"
	rec = env.do(t, http.MethodPost, pledgePath, `{"buyer_id":"`+buyer+`","quantity":2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pledge: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, pledgePath, `{"buyer_id":"`+buyer+`","quantity":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate pledge: expected 409, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/deals/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get deal: expected 200, got %d", rec.Code)
	}
	var fetched struct {
		PledgedQuantity int `json:"pledged_quantity"`
		PledgeCount     int `json:"pledge_count"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &fetched); err != nil {
		t.Fatalf("decode deal: %v", err)
	}
	if fetched.PledgedQuantity != 2 || fetched.PledgeCount != 1 {
		t.Fatalf("unexpected totals %+v", fetched)
	}
}

func TestCreateDealValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := map[string]string{
		"missing refs":   `{"unit_price_cents":100,"discount_percentage":"5","min_quantity":1,"expires_at":"2030-01-01T00:00:00Z"}`,
		"discount > 100": `{"product_ref":"` + uuid.NewString() + `","seller_ref":"` + uuid.NewString() + `","unit_price_cents":100,"discount_percentage":"150","min_quantity":1,"expires_at":"2030-01-01T00:00:00Z"}`,
		"bad currency":   `{"product_ref":"` + uuid.NewString() + `","seller_ref":"` + uuid.NewString() + `","unit_price_cents":100,"discount_percentage":"5","min_quantity":1,"expires_at":"2030-01-01T00:00:00Z","currency":"XXX"}`,
	}
	for name, body := range cases {
		rec := env.do(t, http.MethodPost, "/api/v1/deals", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestPledgeOnSettledDealIs422(t *testing.T) {
	env := newTestEnv(t, nil)
	deal := seedDeal(env.store, enums.DealStatusCompleted)

	rec := env.do(t, http.MethodPost, "/api/v1/deals/"+deal.ID.String()+"/pledges", `{"buyer_id":"`+uuid.NewString()+`","quantity":1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestGetUnknownDealIs404(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/deals/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPledgeReplayWithIdempotencyKey(t *testing.T) {
	env := newTestEnv(t, nil)
	deal := seedDeal(env.store, enums.DealStatusActive)
	path := "/api/v1/deals/" + deal.ID.String() + "/pledges"
	body := `{"buyer_id":"` + uuid.NewString() + `","quantity":2}`

	first := env.doWithKey(t, http.MethodPost, path, body, "pledge-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", first.Code, first.Body.String())
	}
	again := env.doWithKey(t, http.MethodPost, path, body, "pledge-1")
	if again.Code != http.StatusCreated || again.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replayed 201, got %d replay=%q", again.Code, again.Header().Get("Idempotent-Replay"))
	}
	if again.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs: %s vs %s", again.Body.String(), first.Body.String())
	}
	if pledges, _ := env.store.ListPledges(context.Background(), deal.ID); len(pledges) != 1 {
		t.Fatalf("expected one stored pledge, got %d", len(pledges))
	}

	rec := env.doWithKey(t, http.MethodPost, path, `{"buyer_id":"`+uuid.NewString()+`","quantity":1}`, "pledge-1")
	if rec.Code != http.StatusConflict || decodeEnvelope(t, rec).Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected idempotency conflict, got %d body=%s", rec.Code, rec.Body.String())
	}

	// Without a key the duplicate reaches the store.
	rec = env.do(t, http.MethodPost, path, body)
	if rec.Code != http.StatusConflict || decodeEnvelope(t, rec).Error.Code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected store conflict, got %d body=%s", rec.Code, rec.Body.String())
	}
}
