package checkout

import (
	"context"
	"time"
)

const DefaultSettlementWindow = 2 * time.Second

// Settler finalizes payment for a session in Settling. Returning nil moves
// the session to Complete.
type Settler interface {
	Settle(ctx context.Context, session Session) error
}

// TimerSettler waits a fixed window and always succeeds unless ctx ends.
type TimerSettler struct {
	Window time.Duration
}

func (s TimerSettler) Settle(ctx context.Context, _ Session) error {
	window := s.Window
	if window <= 0 {
		window = DefaultSettlementWindow
	}
	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(ctx context.Context, session Session) error

func (f SettlerFunc) Settle(ctx context.Context, session Session) error {
	return f(ctx, session)
}
