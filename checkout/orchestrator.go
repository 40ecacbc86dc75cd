package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/scanner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("checkout session is closed")

// Scanner is the slice of scanner.Adapter the flow needs.
type Scanner interface {
	Open(ctx context.Context) (string, error)
	Retry(ctx context.Context) (string, error)
	Close() error
}

type Deps struct {
	// Scanner is required only for methods that need a scan.
	Scanner Scanner
	Settler Settler
	// OnNotice shows user-facing messages. Optional.
	OnNotice func(Notice)
	// OnSuccess hands the completed order to fulfillment. Its error is
	// returned but never undoes Complete.
	OnSuccess func(ctx context.Context, order models.Order) error

	Logger         *zap.Logger
	Now            func() time.Time
	NewOrderNumber func() string
}

// Orchestrator drives one checkout session:
//
//	Summary -> PaymentSelection -> Settling -> Complete
//	PaymentSelection -> Summary
//
// Blocking calls release the lock while they wait so Close can always
// interrupt them.
type Orchestrator struct {
	deps    Deps
	details Details

	mu       sync.Mutex
	session  Session
	inFlight bool
	settling bool
	closed   bool
	cancel   context.CancelFunc
}

func New(cart []models.OrderItem, details Details, deps Deps) (*Orchestrator, error) {
	for i, item := range cart {
		if item.Price.IsNegative() || item.Quantity < 0 {
			return nil, apperrors.New(apperrors.KindInvalidInput, fmt.Sprintf("cart item %d has a negative price or quantity", i), nil)
		}
	}
	if deps.Settler == nil {
		deps.Settler = TimerSettler{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewOrderNumber == nil {
		deps.NewOrderNumber = NewOrderNumber
	}

	return &Orchestrator{
		deps:    deps,
		details: details,
		session: Session{
			ID:   uuid.NewString(),
			Cart: append([]models.OrderItem(nil), cart...),
			Step: StepSummary,
		},
	}, nil
}

// NewOrderNumber returns an HB- prefixed order number.
func NewOrderNumber() string {
	return "HB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Session returns a copy of the current state.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *Orchestrator) snapshot() Session {
	s := o.session
	s.Cart = append([]models.OrderItem(nil), o.session.Cart...)
	if o.session.Order != nil {
		order := *o.session.Order
		s.Order = &order
	}
	return s
}

func (o *Orchestrator) ProceedToPayment() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.expect(StepSummary, "proceed to payment"); err != nil {
		return err
	}
	if len(o.session.Cart) == 0 {
		return apperrors.New(apperrors.KindInvalidInput, "cart is empty", nil)
	}
	o.session.Step = StepPaymentSelection
	return nil
}

// Back is the only backward edge.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.expect(StepPaymentSelection, "go back"); err != nil {
		return err
	}
	o.session.Step = StepSummary
	return nil
}

// SelectMethod enters Settling and blocks through the scan (if the method
// needs one) and the settlement window. A failed scan returns its error with
// the session still in Settling and AwaitingScan set; RetryScan resumes. A
// scanner that opens without scanning leaves AwaitingScan set with a nil
// error. A failed settlement stays in Settling for RetrySettlement.
func (o *Orchestrator) SelectMethod(ctx context.Context, method PaymentMethod) error {
	o.mu.Lock()
	if err := o.expect(StepPaymentSelection, "select a payment method"); err != nil {
		o.mu.Unlock()
		return err
	}
	if !method.Valid() {
		o.mu.Unlock()
		return apperrors.New(apperrors.KindInvalidInput, fmt.Sprintf("unknown payment method %q", method), nil)
	}
	if method.RequiresScan() && o.deps.Scanner == nil {
		o.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrConfigurationMissing, fmt.Errorf("payment method %s needs a scanner", method))
	}
	o.session.Step = StepSettling
	o.session.ChosenMethod = method
	if !method.RequiresScan() {
		o.mu.Unlock()
		return o.settle(ctx)
	}
	o.session.AwaitingScan = true
	o.mu.Unlock()

	return o.scan(ctx, o.deps.Scanner.Open)
}

// RetryScan is the manual retry after a failed scan.
func (o *Orchestrator) RetryScan(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrSessionClosed
	}
	if !o.session.AwaitingScan {
		o.mu.Unlock()
		return apperrors.New(apperrors.KindInvalidTransition, "no scan to retry", nil)
	}
	o.mu.Unlock()

	return o.scan(ctx, o.deps.Scanner.Retry)
}

func (o *Orchestrator) scan(ctx context.Context, run func(context.Context) (string, error)) error {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return scanner.ErrScanInFlight
	}
	o.inFlight = true
	sessionID := o.session.ID
	runCtx, err := o.begin(ctx)
	o.mu.Unlock()
	if err != nil {
		o.endScan()
		return err
	}

	payload, err := run(runCtx)
	o.endScan()
	if err != nil {
		if o.isClosed() {
			return ErrSessionClosed
		}
		o.deps.Logger.Warn("payment scan failed",
			zap.String("session_id", sessionID),
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Error(err),
		)
		o.notify(Notice{Kind: NoticeScanFailed, Message: scanFailureMessage(err), Err: err})
		return err
	}

	if payload == "" {
		// The engine is ready but nothing was scanned (no auto-start).
		o.notify(Notice{Kind: NoticeScanReady, Message: "Scanner ready. Start the scan when the customer shows the code."})
		return nil
	}

	o.mu.Lock()
	o.session.ScanPayload = payload
	o.session.AwaitingScan = false
	o.mu.Unlock()
	return o.settle(ctx)
}

func (o *Orchestrator) endScan() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
	o.release()
}

// RetrySettlement re-runs the settler after it failed. The scan, if any, is
// not repeated.
func (o *Orchestrator) RetrySettlement(ctx context.Context) error {
	o.mu.Lock()
	if err := o.expect(StepSettling, "retry settlement"); err != nil {
		o.mu.Unlock()
		return err
	}
	if o.session.AwaitingScan {
		o.mu.Unlock()
		return apperrors.New(apperrors.KindInvalidTransition, "payment code has not been scanned", nil)
	}
	o.mu.Unlock()

	return o.settle(ctx)
}

func (o *Orchestrator) settle(ctx context.Context) error {
	o.mu.Lock()
	if o.settling {
		o.mu.Unlock()
		return apperrors.New(apperrors.KindInvalidTransition, "settlement already in progress", nil)
	}
	runCtx, err := o.begin(ctx)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.settling = true
	snap := o.snapshot()
	o.mu.Unlock()

	o.notify(Notice{Kind: NoticeSettling, Message: "Processing payment..."})
	err = o.deps.Settler.Settle(runCtx, snap)

	o.mu.Lock()
	o.settling = false
	o.release()
	if o.closed {
		o.mu.Unlock()
		return ErrSessionClosed
	}
	if err != nil {
		o.mu.Unlock()
		o.deps.Logger.Warn("settlement failed",
			zap.String("session_id", snap.ID),
			zap.String("method", string(snap.ChosenMethod)),
			zap.Error(err),
		)
		return fmt.Errorf("settlement: %w", err)
	}
	order := o.buildOrder()
	if err := order.Validate(); err != nil {
		o.mu.Unlock()
		o.deps.Logger.Error("completed order failed validation", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	o.session.Step = StepComplete
	o.session.Order = &order
	o.mu.Unlock()

	o.deps.Logger.Info("checkout complete",
		zap.String("session_id", snap.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("method", string(snap.ChosenMethod)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	o.notify(Notice{Kind: NoticePaymentSuccess, Message: fmt.Sprintf("Payment received for order %s", order.OrderNumber)})

	if o.deps.OnSuccess == nil {
		return nil
	}
	if err := o.deps.OnSuccess(ctx, order); err != nil {
		return fmt.Errorf("order completion hook: %w", err)
	}
	return nil
}

func (o *Orchestrator) buildOrder() models.Order {
	now := o.deps.Now()
	items := append([]models.OrderItem(nil), o.session.Cart...)
	return models.Order{
		OrderNumber:  o.deps.NewOrderNumber(),
		ShopID:       o.details.ShopID,
		TableNumber:  o.details.TableNumber,
		Items:        items,
		Total:        models.SumItems(items),
		CustomerName: o.details.CustomerName,
		Status:       models.OrderStatusCompleted,
		CompletedAt:  &now,
	}
}

// release cancels and drops the context from begin. Callers hold o.mu.
func (o *Orchestrator) release() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// begin derives a context that Close cancels. Callers hold o.mu.
func (o *Orchestrator) begin(ctx context.Context) (context.Context, error) {
	if o.closed {
		return nil, ErrSessionClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	return runCtx, nil
}

// expect checks the current step. Callers hold o.mu.
func (o *Orchestrator) expect(step Step, action string) error {
	if o.closed {
		return ErrSessionClosed
	}
	if o.session.Step != step {
		return apperrors.New(apperrors.KindInvalidTransition,
			fmt.Sprintf("cannot %s from %s", action, o.session.Step), nil)
	}
	return nil
}

// Close releases the scanner and cancels any pending wait. Nothing is
// persisted. Safe in every state and more than once.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.release()
	o.mu.Unlock()

	if o.deps.Scanner != nil {
		return o.deps.Scanner.Close()
	}
	return nil
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) notify(n Notice) {
	if o.deps.OnNotice != nil {
		o.deps.OnNotice(n)
	}
}

func scanFailureMessage(err error) string {
	switch {
	case errors.Is(err, scanner.ErrScanCancelled):
		return "Scan cancelled. Retry when ready."
	case apperrors.KindOf(err) == apperrors.KindDecodeFailure:
		return "No payment code detected. Please retry the scan."
	default:
		return "Scanner unavailable: " + err.Error()
	}
}
