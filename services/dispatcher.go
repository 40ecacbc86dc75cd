package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/metrics"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/sender"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultChannelTimeout = 10 * time.Second

// Dispatcher fans one completed order out to every channel adapter. It never
// returns an error: notification is best-effort and the order is already
// committed by the time Dispatch runs.
type Dispatcher struct {
	adapters []sender.ChannelAdapter
	timeout  time.Duration
	recorder metrics.Recorder
	logger   *zap.Logger
}

func NewDispatcher(adapters []sender.ChannelAdapter, timeout time.Duration, recorder metrics.Recorder, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Dispatcher{adapters: adapters, timeout: timeout, recorder: recorder, logger: logger}
}

// Dispatch attempts every channel concurrently and returns one attempt per
// adapter, in adapter order. A channel that outlives its timeout is reported
// Failed and abandoned; its goroutine exits once the adapter honours ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, order models.Order, cfg models.ChannelConfig) []models.DeliveryAttempt {
	dispatchID := uuid.NewString()
	// Cancelling the caller's request must not abort channel sends.
	base := context.WithoutCancel(ctx)

	attempts := make([]models.DeliveryAttempt, len(d.adapters))
	done := make(chan struct{}, len(d.adapters))

	for i, adapter := range d.adapters {
		go func(i int, adapter sender.ChannelAdapter) {
			attempts[i] = d.attempt(base, adapter, order, cfg)
			attempts[i].DispatchID = dispatchID
			done <- struct{}{}
		}(i, adapter)
	}
	for range d.adapters {
		<-done
	}

	for _, a := range attempts {
		d.log(a)
		d.recorder.RecordAttempt(ctx, a)
	}
	d.recorder.RecordDispatch(ctx, order.OrderNumber, attempts)
	return attempts
}

func (d *Dispatcher) attempt(ctx context.Context, adapter sender.ChannelAdapter, order models.Order, cfg models.ChannelConfig) models.DeliveryAttempt {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	result := make(chan models.DeliveryAttempt, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- models.DeliveryAttempt{
					Channel:     adapter.Channel(),
					OrderNumber: order.OrderNumber,
					Outcome:     models.OutcomeFailed,
					Kind:        apperrors.KindInternal,
					Detail:      fmt.Sprintf("adapter panic: %v", r),
				}
			}
		}()
		result <- adapter.Send(ctx, order, cfg)
	}()

	var a models.DeliveryAttempt
	select {
	case a = <-result:
	case <-ctx.Done():
		a = models.DeliveryAttempt{
			Channel:     adapter.Channel(),
			OrderNumber: order.OrderNumber,
			Outcome:     models.OutcomeFailed,
			Kind:        apperrors.KindTransportFailure,
			Detail:      fmt.Sprintf("channel timed out after %s", d.timeout),
		}
	}
	a.Duration = time.Since(start)
	return a
}

func (d *Dispatcher) log(a models.DeliveryAttempt) {
	fields := []zap.Field{
		zap.String("dispatch_id", a.DispatchID),
		zap.String("channel", string(a.Channel)),
		zap.String("order_number", a.OrderNumber),
		zap.String("outcome", string(a.Outcome)),
		zap.Duration("duration", a.Duration),
	}
	if a.Kind != "" {
		fields = append(fields, zap.String("kind", string(a.Kind)))
	}
	if a.Detail != "" {
		fields = append(fields, zap.String("detail", a.Detail))
	}

	switch a.Outcome {
	case models.OutcomeFailed:
		d.logger.Error("notification failed", fields...)
	case models.OutcomeSkipped:
		d.logger.Warn("notification skipped", fields...)
	default:
		d.logger.Info("notification sent", fields...)
	}
}
