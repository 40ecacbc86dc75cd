package sender

import (
	"context"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
)

// ChannelAdapter delivers one order alert over one channel. Send reports
// every result, including failures, as a DeliveryAttempt; it never returns
// an error and must honour ctx cancellation.
type ChannelAdapter interface {
	Channel() models.Channel
	Send(ctx context.Context, order models.Order, cfg models.ChannelConfig) models.DeliveryAttempt
}

func attempt(channel models.Channel, order models.Order, outcome models.Outcome) models.DeliveryAttempt {
	return models.DeliveryAttempt{
		Channel:     channel,
		OrderNumber: order.OrderNumber,
		Outcome:     outcome,
	}
}

func sent(channel models.Channel, order models.Order, detail string) models.DeliveryAttempt {
	a := attempt(channel, order, models.OutcomeSent)
	a.Detail = detail
	return a
}

func skipped(channel models.Channel, order models.Order, detail string) models.DeliveryAttempt {
	a := attempt(channel, order, models.OutcomeSkipped)
	a.Kind = apperrors.KindConfigurationMissing
	a.Detail = detail
	return a
}

func failed(channel models.Channel, order models.Order, err error) models.DeliveryAttempt {
	a := attempt(channel, order, models.OutcomeFailed)
	a.Kind = apperrors.KindOf(err)
	a.Detail = err.Error()
	return a
}

// Clock returns the current time; tests substitute a fixed one.
type Clock func() time.Time
