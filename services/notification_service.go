package services

import (
	"context"
	"fmt"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/guard"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/repository"
	"go.uber.org/zap"
)

type NotificationService interface {
	HandleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) (*DispatchSummary, error)
}

// DispatchSummary is what intake paths report back. Duplicate means the
// completion guard had already admitted this order and nothing was sent.
type DispatchSummary struct {
	ShopID      string                   `json:"shop_id"`
	OrderNumber string                   `json:"order_number"`
	Status      models.OrderStatus       `json:"status"`
	Duplicate   bool                     `json:"duplicate"`
	Attempts    []models.DeliveryAttempt `json:"attempts"`
}

type notificationService struct {
	configs    repository.ChannelConfigStore
	guard      guard.CompletionGuard
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewNotificationService(
	configs repository.ChannelConfigStore,
	completion guard.CompletionGuard,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		configs:    configs,
		guard:      completion,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleOrderCompleted returns an error only when the event is unusable or
// the shop's config cannot be read, so queue consumers can redeliver. Channel
// failures are reported in the summary.
func (s *notificationService) HandleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) (*DispatchSummary, error) {
	if event.EventType != "" && event.EventType != models.TypeOrderCompleted {
		return nil, apperrors.New(apperrors.KindInvalidInput, fmt.Sprintf("unsupported event type: %s", event.EventType), nil)
	}
	shopID := event.ShopID
	if shopID == "" {
		shopID = event.Order.ShopID
	}
	if shopID == "" || event.Order.OrderNumber == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "shop_id and order_number are required", nil)
	}

	order := event.Order
	order.ShopID = shopID
	summary := &DispatchSummary{
		ShopID:      shopID,
		OrderNumber: order.OrderNumber,
		Status:      models.OrderStatusCompleted,
	}

	cfg, err := s.configs.Get(ctx, shopID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	admitted, err := s.guard.Acquire(ctx, shopID, order.OrderNumber)
	if err != nil {
		s.logger.Warn("completion guard unavailable, dispatching anyway",
			zap.String("shop_id", shopID),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		admitted = true
	}
	if !admitted {
		s.logger.Info("duplicate completion ignored",
			zap.String("shop_id", shopID),
			zap.String("order_number", order.OrderNumber),
		)
		summary.Duplicate = true
		return summary, nil
	}

	summary.Attempts = s.dispatcher.Dispatch(ctx, order, cfg)
	summary.Status = models.OrderStatusNotified
	return summary, nil
}
