package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateScanning
	StateError
	StateDone
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateError:
		return "error"
	case StateDone:
		return "done"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Adapter runs one scan at a time against a shared EngineHandle. Failures
// leave it in StateError; nothing retries until Retry is called.
type Adapter struct {
	handle *EngineHandle
	cfg    ScanConfig
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	lastErr error
	cancel  context.CancelFunc
}

func NewAdapter(handle *EngineHandle, cfg ScanConfig, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	return &Adapter{handle: handle, cfg: cfg, logger: logger}, nil
}

// Open initializes the engine and, with AutoStart, starts the first scan
// straight away. Without AutoStart it returns "", nil and leaves the adapter
// idle; no payload has been read and the caller starts the scan with Retry or
// StartScan.
func (a *Adapter) Open(ctx context.Context) (string, error) {
	if err := a.handle.EnsureInitialized(ctx); err != nil {
		a.fail(err)
		return "", err
	}
	if !a.cfg.AutoStart {
		return "", nil
	}
	return a.StartScan(ctx)
}

// Retry is the manual affordance after a failure. It re-attempts
// initialization if that is what failed.
func (a *Adapter) Retry(ctx context.Context) (string, error) {
	if err := a.handle.EnsureInitialized(ctx); err != nil {
		a.fail(err)
		return "", err
	}
	return a.StartScan(ctx)
}

func (a *Adapter) StartScan(ctx context.Context) (string, error) {
	a.mu.Lock()
	switch {
	case a.state == StateClosed:
		a.mu.Unlock()
		return "", ErrAdapterClosed
	case a.state == StateScanning:
		a.mu.Unlock()
		return "", ErrScanInFlight
	case !a.handle.Initialized():
		a.mu.Unlock()
		err := apperrors.Wrap(apperrors.ErrInitialization, errors.New("engine not initialized"))
		a.fail(err)
		return "", err
	}
	scanCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	a.cancel = cancel
	a.state = StateScanning
	a.lastErr = nil
	a.mu.Unlock()

	a.logger.Debug("scan started", zap.String("use_case", a.cfg.UseCase))
	rs, err := a.handle.engine.CreateScanner(scanCtx, a.cfg)
	timedOut := errors.Is(scanCtx.Err(), context.DeadlineExceeded)
	cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancel = nil
	if a.state == StateClosed {
		return "", ErrAdapterClosed
	}

	payload, err := classify(ctx, rs, err, timedOut)
	switch {
	case errors.Is(err, ErrScanCancelled):
		a.state = StateIdle
	case err != nil:
		a.state = StateError
		a.lastErr = err
		a.logger.Warn("scan failed", zap.String("kind", string(apperrors.KindOf(err))), zap.Error(err))
	default:
		a.state = StateDone
	}
	return payload, err
}

func classify(parent context.Context, rs ResultSet, err error, timedOut bool) (string, error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrScanCancelled), errors.Is(parent.Err(), context.Canceled):
			return "", ErrScanCancelled
		case timedOut:
			return "", apperrors.Wrap(apperrors.ErrNoCodeDetected, errors.New("scan timed out"))
		case apperrors.KindOf(err) != apperrors.KindInternal:
			return "", err
		default:
			return "", apperrors.Wrap(apperrors.ErrLaunch, err)
		}
	}
	if rs.Cancelled {
		return "", ErrScanCancelled
	}
	payload, ok := rs.FirstPayload()
	if !ok {
		return "", apperrors.ErrNoCodeDetected
	}
	return payload, nil
}

func (a *Adapter) fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateClosed {
		return
	}
	a.state = StateError
	a.lastErr = err
}

// Close cancels any in-flight scan and releases the engine UI. It is safe to
// call at any time, more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.state = StateClosed
	return nil
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
