package settlement

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})
}

type fakeStore struct {
	mu       sync.Mutex
	deals    map[uuid.UUID]groupbuy.Deal
	pledges  map[uuid.UUID][]groupbuy.Pledge
	getErr   error
	listErr  error
	casErr   error
	casCalls int
	swaps    int

	// onSwap runs with the store locked right after a successful swap.
	onSwap func(f *fakeStore, id uuid.UUID)
	// listFailOn makes the n-th ListPledges call (1-based) fail with listErr.
	listFailOn int
	listCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deals:   map[uuid.UUID]groupbuy.Deal{},
		pledges: map[uuid.UUID][]groupbuy.Pledge{},
	}
}

func (f *fakeStore) GetDeal(_ context.Context, id uuid.UUID) (*groupbuy.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	deal, ok := f.deals[id]
	if !ok {
		return nil, groupbuy.ErrDealNotFound
	}
	return &deal, nil
}

func (f *fakeStore) ListPledges(_ context.Context, dealID uuid.UUID) ([]groupbuy.Pledge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil && (f.listFailOn == 0 || f.listFailOn == f.listCalls) {
		return nil, f.listErr
	}
	return append([]groupbuy.Pledge(nil), f.pledges[dealID]...), nil
}

func (f *fakeStore) CompareAndSwapStatus(_ context.Context, id uuid.UUID, expected, next enums.DealStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casCalls++
	if f.casErr != nil {
		return false, f.casErr
	}
	deal, ok := f.deals[id]
	if !ok || deal.Status != expected {
		return false, nil
	}
	deal.Status = next
	f.deals[id] = deal
	f.swaps++
	if f.onSwap != nil {
		f.onSwap(f, id)
	}
	return true, nil
}

func (f *fakeStore) status(id uuid.UUID) enums.DealStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deals[id].Status
}

func (f *fakeStore) casCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.casCalls
}

// fakeOrders is idempotent on the request key, like the real issuer.
type fakeOrders struct {
	mu       sync.Mutex
	byKey    map[string]string
	requests []OrderRequest
	failures map[uuid.UUID]error
	block    map[uuid.UUID]bool
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		byKey:    map[string]string{},
		failures: map[uuid.UUID]error{},
		block:    map[uuid.UUID]bool{},
	}
}

func (f *fakeOrders) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, current) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.failures[req.BuyerID]
	block := f.block[req.BuyerID]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ref, ok := f.byKey[req.IdempotencyKey]; ok {
		return ref, nil
	}
	ref := fmt.Sprintf("order-%d", len(f.byKey)+1)
	f.byKey[req.IdempotencyKey] = ref
	return ref, nil
}

func (f *fakeOrders) setFailure(buyerID uuid.UUID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, buyerID)
		return
	}
	f.failures[buyerID] = err
}

func (f *fakeOrders) callsFor(buyerID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req.BuyerID == buyerID {
			n++
		}
	}
	return n
}

func (f *fakeOrders) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeOrders) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byKey)
}

type fakePayments struct {
	mu       sync.Mutex
	byKey    map[string]string
	requests []PaymentRequest
	failures map[uuid.UUID]error
}

func newFakePayments() *fakePayments {
	return &fakePayments{byKey: map[string]string{}, failures: map[uuid.UUID]error{}}
}

func (f *fakePayments) Authorize(_ context.Context, req PaymentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.failures[req.BuyerID]; err != nil {
		return "", err
	}
	if ref, ok := f.byKey[req.IdempotencyKey]; ok {
		return ref, nil
	}
	ref := fmt.Sprintf("payment-%d", len(f.byKey)+1)
	f.byKey[req.IdempotencyKey] = ref
	return ref, nil
}

func (f *fakePayments) setFailure(buyerID uuid.UUID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, buyerID)
		return
	}
	f.failures[buyerID] = err
}

func (f *fakePayments) callsFor(buyerID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req.BuyerID == buyerID {
			n++
		}
	}
	return n
}

func (f *fakePayments) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakePayments) amountFor(buyerID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req.BuyerID == buyerID {
			return req.AmountCents
		}
	}
	return -1
}

type memLedger struct {
	mu      sync.Mutex
	results map[uuid.UUID]map[uuid.UUID]Result
	err     error

	afterList func()
}

func newMemLedger() *memLedger {
	return &memLedger{results: map[uuid.UUID]map[uuid.UUID]Result{}}
}

func (l *memLedger) ListResults(_ context.Context, dealID uuid.UUID) ([]Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]Result, 0, len(l.results[dealID]))
	for _, res := range l.results[dealID] {
		out = append(out, res)
	}
	if l.afterList != nil {
		l.afterList()
	}
	return out, nil
}

func (l *memLedger) RecordResult(_ context.Context, dealID uuid.UUID, res Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.results[dealID] == nil {
		l.results[dealID] = map[uuid.UUID]Result{}
	}
	l.results[dealID][res.BuyerID] = res
	return nil
}

// fakeClaimer grants leases exclusively per deal unless grantAll is set.
type fakeClaimer struct {
	mu       sync.Mutex
	held     map[uuid.UUID]bool
	grantAll bool
	err      error
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{held: map[uuid.UUID]bool{}}
}

func (c *fakeClaimer) Claim(_ context.Context, dealID uuid.UUID) (Lease, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	if c.grantAll {
		return fakeLease{}, true, nil
	}
	if c.held[dealID] {
		return nil, false, nil
	}
	c.held[dealID] = true
	return &heldLease{claimer: c, dealID: dealID}, true, nil
}

func (c *fakeClaimer) isHeld(dealID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held[dealID]
}

type fakeLease struct{}

func (fakeLease) Release(context.Context) error { return nil }

type heldLease struct {
	claimer *fakeClaimer
	dealID  uuid.UUID
}

func (l *heldLease) Release(context.Context) error {
	l.claimer.mu.Lock()
	defer l.claimer.mu.Unlock()
	delete(l.claimer.held, l.dealID)
	return nil
}

type fakeRecorder struct {
	mu           sync.Mutex
	attempts     []string
	participants []string
}

func (r *fakeRecorder) ObserveAttempt(operation, disposition string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, operation+":"+disposition)
}

func (r *fakeRecorder) ObserveParticipant(outcome, failureKind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append(r.participants, outcome+":"+failureKind)
}
