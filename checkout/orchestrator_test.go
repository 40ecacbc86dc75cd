package checkout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/checkout"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/scanner"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scanResult struct {
	payload string
	err     error
}

// fakeScanner replays results in order; a nil entry blocks until ctx ends.
type fakeScanner struct {
	mu      sync.Mutex
	results []*scanResult
	calls   int
	closes  atomic.Int32
	started chan struct{}
}

func (f *fakeScanner) next(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	var r *scanResult
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}
	started := f.started
	f.mu.Unlock()

	if r == nil {
		if started != nil {
			close(started)
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.payload, r.err
}

func (f *fakeScanner) Open(ctx context.Context) (string, error)  { return f.next(ctx) }
func (f *fakeScanner) Retry(ctx context.Context) (string, error) { return f.next(ctx) }
func (f *fakeScanner) Close() error {
	f.closes.Add(1)
	return nil
}

type recorder struct {
	mu      sync.Mutex
	notices []checkout.Notice
	orders  []models.Order
	hookErr error
}

func (r *recorder) notice(n checkout.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) success(_ context.Context, o models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return r.hookErr
}

func (r *recorder) kinds() []checkout.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []checkout.NoticeKind
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

func cart() []models.OrderItem {
	return []models.OrderItem{
		{Name: "Thali", Price: decimal.NewFromInt(120), Quantity: 2},
		{Name: "Lassi", Price: decimal.NewFromInt(50), Quantity: 1},
	}
}

const upiPayload = "upi://pay?pa=shop1@okbank&pn=Shop%201&am=290.00&cu=INR"

var instantSettle = checkout.SettlerFunc(func(context.Context, checkout.Session) error { return nil })

func newOrchestrator(t *testing.T, sc checkout.Scanner, settler checkout.Settler) (*checkout.Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	deps := checkout.Deps{
		Settler:        settler,
		OnNotice:       rec.notice,
		OnSuccess:      rec.success,
		NewOrderNumber: func() string { return "HB-1001" },
		Now:            func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) },
	}
	if sc != nil {
		deps.Scanner = sc
	}
	o, err := checkout.New(cart(), checkout.Details{ShopID: "shop-1", TableNumber: "4", CustomerName: "Riya"}, deps)
	require.NoError(t, err)
	return o, rec
}

func toPayment(t *testing.T, o *checkout.Orchestrator) {
	t.Helper()
	require.NoError(t, o.ProceedToPayment())
}

func TestSelectMethod_InSummaryIsInvalidTransition(t *testing.T) {
	o, rec := newOrchestrator(t, nil, instantSettle)

	err := o.SelectMethod(context.Background(), checkout.MethodCash)

	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, checkout.StepSummary, o.Session().Step)
	assert.Empty(t, rec.orders)
}

func TestCashCheckout_CompletesOnlyThroughSettling(t *testing.T) {
	var stepDuringSettle checkout.Step
	settler := checkout.SettlerFunc(func(_ context.Context, s checkout.Session) error {
		stepDuringSettle = s.Step
		return nil
	})
	o, rec := newOrchestrator(t, nil, settler)
	toPayment(t, o)

	require.NoError(t, o.SelectMethod(context.Background(), checkout.MethodCash))

	assert.Equal(t, checkout.StepSettling, stepDuringSettle)
	s := o.Session()
	assert.Equal(t, checkout.StepComplete, s.Step)
	assert.Equal(t, checkout.MethodCash, s.ChosenMethod)
	require.Len(t, rec.orders, 1)
	order := rec.orders[0]
	assert.Equal(t, "HB-1001", order.OrderNumber)
	assert.Equal(t, "shop-1", order.ShopID)
	assert.Equal(t, "290.00", order.Total.StringFixed(2))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NoError(t, order.Validate())
	assert.Equal(t, []checkout.NoticeKind{checkout.NoticeSettling, checkout.NoticePaymentSuccess}, rec.kinds())
}

func TestBack_OnlyFromPaymentSelection(t *testing.T) {
	o, _ := newOrchestrator(t, nil, instantSettle)

	assert.True(t, errors.Is(o.Back(), apperrors.ErrInvalidTransition))
	toPayment(t, o)
	require.NoError(t, o.Back())
	assert.Equal(t, checkout.StepSummary, o.Session().Step)
	toPayment(t, o)
	assert.Equal(t, checkout.StepPaymentSelection, o.Session().Step)
}

func TestComplete_IsTerminal(t *testing.T) {
	o, _ := newOrchestrator(t, nil, instantSettle)
	toPayment(t, o)
	require.NoError(t, o.SelectMethod(context.Background(), checkout.MethodCard))

	assert.True(t, errors.Is(o.ProceedToPayment(), apperrors.ErrInvalidTransition))
	assert.True(t, errors.Is(o.Back(), apperrors.ErrInvalidTransition))
	assert.True(t, errors.Is(o.SelectMethod(context.Background(), checkout.MethodCash), apperrors.ErrInvalidTransition))
	assert.Equal(t, checkout.StepComplete, o.Session().Step)
}

func TestUPI_ScanPayloadThenComplete(t *testing.T) {
	sc := &fakeScanner{results: []*scanResult{{payload: "upi://pay?pa=shop1@okbank&am=290.00"}}}
	o, rec := newOrchestrator(t, sc, instantSettle)
	toPayment(t, o)

	require.NoError(t, o.SelectMethod(context.Background(), checkout.MethodUPI))

	s := o.Session()
	assert.Equal(t, checkout.StepComplete, s.Step)
	assert.Equal(t, "upi://pay?pa=shop1@okbank&am=290.00", s.ScanPayload)
	assert.False(t, s.AwaitingScan)
	assert.Len(t, rec.orders, 1)
}

func TestUPI_DecodeFailureStaysAtScanUntilRetry(t *testing.T) {
	sc := &fakeScanner{results: []*scanResult{
		{err: apperrors.ErrNoCodeDetected},
		{payload: "upi://pay?pa=shop1@okbank"},
	}}
	o, rec := newOrchestrator(t, sc, instantSettle)
	toPayment(t, o)

	err := o.SelectMethod(context.Background(), checkout.MethodUPI)
	assert.Equal(t, apperrors.KindDecodeFailure, apperrors.KindOf(err))
	s := o.Session()
	assert.Equal(t, checkout.StepSettling, s.Step)
	assert.True(t, s.AwaitingScan)
	assert.Empty(t, rec.orders)
	assert.Contains(t, rec.kinds(), checkout.NoticeScanFailed)

	require.NoError(t, o.RetryScan(context.Background()))
	assert.Equal(t, checkout.StepComplete, o.Session().Step)
	assert.Len(t, rec.orders, 1)
}

func TestUPI_LaunchErrorNoAutomaticRetry(t *testing.T) {
	sc := &fakeScanner{results: []*scanResult{{err: apperrors.Wrap(apperrors.ErrLaunch, errors.New("camera busy"))}}}
	o, _ := newOrchestrator(t, sc, instantSettle)
	toPayment(t, o)

	err := o.SelectMethod(context.Background(), checkout.MethodUPI)

	assert.True(t, errors.Is(err, apperrors.ErrLaunch))
	assert.Equal(t, 1, sc.calls)
	assert.True(t, o.Session().AwaitingScan)
}

func TestUPI_RequiresScanner(t *testing.T) {
	o, _ := newOrchestrator(t, nil, instantSettle)
	toPayment(t, o)

	err := o.SelectMethod(context.Background(), checkout.MethodUPI)
	assert.Equal(t, apperrors.KindConfigurationMissing, apperrors.KindOf(err))
	assert.Equal(t, checkout.StepPaymentSelection, o.Session().Step)
}

func TestRetryScan_OnlyWhileAwaiting(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeScanner{}, instantSettle)
	assert.True(t, errors.Is(o.RetryScan(context.Background()), apperrors.ErrInvalidTransition))
}

func TestRetryScan_InFlightThenClose(t *testing.T) {
	sc := &fakeScanner{results: []*scanResult{nil}, started: make(chan struct{})}
	o, rec := newOrchestrator(t, sc, instantSettle)
	toPayment(t, o)

	errc := make(chan error, 1)
	go func() { errc <- o.SelectMethod(context.Background(), checkout.MethodUPI) }()
	<-sc.started

	assert.ErrorIs(t, o.RetryScan(context.Background()), scanner.ErrScanInFlight)

	require.NoError(t, o.Close())
	assert.ErrorIs(t, <-errc, checkout.ErrSessionClosed)
	assert.Equal(t, int32(1), sc.closes.Load())
	assert.Empty(t, rec.orders)
}

func TestClose_DuringSettlementPersistsNothing(t *testing.T) {
	entered := make(chan struct{})
	settler := checkout.SettlerFunc(func(ctx context.Context, _ checkout.Session) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})
	o, rec := newOrchestrator(t, nil, settler)
	toPayment(t, o)

	errc := make(chan error, 1)
	go func() { errc <- o.SelectMethod(context.Background(), checkout.MethodCash) }()
	<-entered

	require.NoError(t, o.Close())
	assert.ErrorIs(t, <-errc, checkout.ErrSessionClosed)
	assert.Equal(t, checkout.StepSettling, o.Session().Step)
	assert.Nil(t, o.Session().Order)
	assert.Empty(t, rec.orders)
}

func TestClose_IdempotentInAnyState(t *testing.T) {
	sc := &fakeScanner{}
	o, _ := newOrchestrator(t, sc, instantSettle)

	assert.NoError(t, o.Close())
	assert.NoError(t, o.Close())
	assert.Equal(t, int32(1), sc.closes.Load())
	assert.ErrorIs(t, o.ProceedToPayment(), checkout.ErrSessionClosed)
}

func TestOnSuccessError_StillComplete(t *testing.T) {
	o, rec := newOrchestrator(t, nil, instantSettle)
	rec.hookErr = errors.New("sns unavailable")
	toPayment(t, o)

	err := o.SelectMethod(context.Background(), checkout.MethodCash)

	assert.ErrorContains(t, err, "sns unavailable")
	assert.Equal(t, checkout.StepComplete, o.Session().Step)
}

func TestSettlementError_StaysSettlingUntilRetry(t *testing.T) {
	var calls atomic.Int32
	o, rec := newOrchestrator(t, nil, checkout.SettlerFunc(func(context.Context, checkout.Session) error {
		if calls.Add(1) == 1 {
			return errors.New("terminal declined")
		}
		return nil
	}))
	toPayment(t, o)

	assert.ErrorContains(t, o.SelectMethod(context.Background(), checkout.MethodCard), "terminal declined")
	assert.Equal(t, checkout.StepSettling, o.Session().Step)
	assert.Empty(t, rec.orders)

	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(o.RetryScan(context.Background())))
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(o.Back()))

	require.NoError(t, o.RetrySettlement(context.Background()))
	s := o.Session()
	assert.Equal(t, checkout.StepComplete, s.Step)
	assert.Equal(t, checkout.MethodCard, s.ChosenMethod)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, rec.orders, 1)
}

func TestRetrySettlement_AfterFailedScanSettlementKeepsPayload(t *testing.T) {
	var calls atomic.Int32
	sc := &fakeScanner{results: []*scanResult{{payload: upiPayload}}}
	o, rec := newOrchestrator(t, sc, checkout.SettlerFunc(func(context.Context, checkout.Session) error {
		if calls.Add(1) == 1 {
			return errors.New("gateway hiccup")
		}
		return nil
	}))
	toPayment(t, o)

	require.Error(t, o.SelectMethod(context.Background(), checkout.MethodUPI))
	require.NoError(t, o.RetrySettlement(context.Background()))

	assert.Equal(t, 1, sc.calls, "the code is not scanned again")
	assert.Equal(t, upiPayload, o.Session().ScanPayload)
	require.Len(t, rec.orders, 1)
}

func TestRetrySettlement_RejectedOutsideFailedSettlement(t *testing.T) {
	o, _ := newOrchestrator(t, &fakeScanner{results: []*scanResult{{err: apperrors.ErrNoCodeDetected}}}, instantSettle)

	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(o.RetrySettlement(context.Background())))

	toPayment(t, o)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(o.RetrySettlement(context.Background())))

	require.Error(t, o.SelectMethod(context.Background(), checkout.MethodUPI))
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(o.RetrySettlement(context.Background())),
		"awaiting a scan")

	o2, _ := newOrchestrator(t, nil, instantSettle)
	toPayment(t, o2)
	require.NoError(t, o2.SelectMethod(context.Background(), checkout.MethodCash))
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(o2.RetrySettlement(context.Background())))

	require.NoError(t, o2.Close())
	assert.ErrorIs(t, o2.RetrySettlement(context.Background()), checkout.ErrSessionClosed)
}

func TestSettle_ReleasesContextAfterSettler(t *testing.T) {
	var settleCtx context.Context
	o, _ := newOrchestrator(t, nil, checkout.SettlerFunc(func(ctx context.Context, _ checkout.Session) error {
		settleCtx = ctx
		return nil
	}))
	toPayment(t, o)

	require.NoError(t, o.SelectMethod(context.Background(), checkout.MethodCash))
	require.NotNil(t, settleCtx)
	assert.ErrorIs(t, settleCtx.Err(), context.Canceled)
}

// engineStub is a scanner.Engine that always decodes the UPI payload.
type engineStub struct {
	scans atomic.Int32
}

func (e *engineStub) Initialize(context.Context, scanner.InitOptions) error { return nil }

func (e *engineStub) CreateScanner(context.Context, scanner.ScanConfig) (scanner.ResultSet, error) {
	e.scans.Add(1)
	return scanner.ResultSet{Items: []scanner.ResultItem{{Barcode: &scanner.Barcode{Text: upiPayload}}}}, nil
}

func TestUPI_ManualStartScannerWaitsForExplicitScan(t *testing.T) {
	cfg := scanner.DefaultScanConfig()
	cfg.LicenseKey = "LIC-TEST"
	cfg.EnginePath = "/opt/scan-engine/bin/engine"
	cfg.AutoStart = false
	engine := &engineStub{}
	adapter, err := scanner.NewAdapter(scanner.NewEngineHandle(engine, cfg.InitOptions()), cfg, zap.NewNop())
	require.NoError(t, err)

	o, rec := newOrchestrator(t, adapter, instantSettle)
	toPayment(t, o)

	require.NoError(t, o.SelectMethod(context.Background(), checkout.MethodUPI))
	s := o.Session()
	assert.Equal(t, checkout.StepSettling, s.Step)
	assert.True(t, s.AwaitingScan)
	assert.Empty(t, s.ScanPayload)
	assert.Nil(t, s.Order)
	assert.Equal(t, int32(0), engine.scans.Load())
	assert.Empty(t, rec.orders)
	assert.Contains(t, rec.kinds(), checkout.NoticeScanReady)

	require.NoError(t, o.RetryScan(context.Background()))
	s = o.Session()
	assert.Equal(t, checkout.StepComplete, s.Step)
	assert.Equal(t, upiPayload, s.ScanPayload)
	assert.Equal(t, int32(1), engine.scans.Load())
	require.Len(t, rec.orders, 1)
}

func TestNew_RejectsNegativeItems(t *testing.T) {
	_, err := checkout.New([]models.OrderItem{{Price: decimal.NewFromInt(-5), Quantity: 1}}, checkout.Details{}, checkout.Deps{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestProceedToPayment_EmptyCart(t *testing.T) {
	o, err := checkout.New(nil, checkout.Details{}, checkout.Deps{})
	require.NoError(t, err)
	assert.True(t, errors.Is(o.ProceedToPayment(), apperrors.ErrInvalidInput))
}

func TestSession_CartIsCopied(t *testing.T) {
	items := cart()
	o, err := checkout.New(items, checkout.Details{}, checkout.Deps{})
	require.NoError(t, err)

	items[0].Quantity = 99
	assert.Equal(t, 2, o.Session().Cart[0].Quantity)
}

func TestTimerSettler(t *testing.T) {
	start := time.Now()
	require.NoError(t, checkout.TimerSettler{Window: 20 * time.Millisecond}.Settle(context.Background(), checkout.Session{}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, checkout.TimerSettler{Window: time.Hour}.Settle(ctx, checkout.Session{}), context.Canceled)
}

func TestNewOrderNumber(t *testing.T) {
	n := checkout.NewOrderNumber()
	assert.Regexp(t, `^HB-[0-9A-F]{10}$`, n)
	assert.NotEqual(t, n, checkout.NewOrderNumber())
}
