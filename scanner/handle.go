package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
)

// EngineHandle owns the process-wide engine. Its initialized flag only moves
// from false to true; a failed attempt leaves it false so a later call can
// retry.
type EngineHandle struct {
	engine Engine
	opts   InitOptions

	mu          sync.Mutex
	initialized atomic.Bool
}

func NewEngineHandle(engine Engine, opts InitOptions) *EngineHandle {
	return &EngineHandle{engine: engine, opts: opts}
}

var (
	sharedOnce sync.Once
	shared     *EngineHandle
)

// SharedHandle returns the process handle, built from the first caller's
// arguments.
func SharedHandle(engine Engine, opts InitOptions) *EngineHandle {
	sharedOnce.Do(func() {
		shared = NewEngineHandle(engine, opts)
	})
	return shared
}

func (h *EngineHandle) EnsureInitialized(ctx context.Context) error {
	if h.initialized.Load() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized.Load() {
		return nil
	}

	if h.opts.LicenseKey == "" {
		return apperrors.Wrap(apperrors.ErrInitialization, errors.New("license key is required"))
	}
	if err := h.engine.Initialize(ctx, h.opts); err != nil {
		return apperrors.Wrap(apperrors.ErrInitialization, err)
	}
	h.initialized.Store(true)
	return nil
}

func (h *EngineHandle) Initialized() bool {
	return h.initialized.Load()
}
