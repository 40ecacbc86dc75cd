package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/middleware"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
)

// Publisher hands a committed order to the notification service.
type Publisher interface {
	Publish(ctx context.Context, event models.OrderCompletedEvent) error
}

// NewEvent wraps a completed order.
func NewEvent(order models.Order) models.OrderCompletedEvent {
	completedAt := time.Now().UTC()
	if order.CompletedAt != nil {
		completedAt = order.CompletedAt.UTC()
	}
	return models.OrderCompletedEvent{
		EventType:   models.TypeOrderCompleted,
		ShopID:      order.ShopID,
		Order:       order,
		CompletedAt: completedAt,
	}
}

type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.OrderCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order_completed: %w", err)
	}
	if err := p.client.Publish(ctx, p.topicArn, body); err != nil {
		return apperrors.Wrap(apperrors.ErrTransportFailure, err)
	}
	return nil
}

// HTTPPublisher posts straight to the notification service's internal
// intake.
type HTTPPublisher struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPPublisher(baseURL, token string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPublisher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, event models.OrderCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order_completed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/notifications/order-completed", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.InternalTokenHeader, p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.Wrap(apperrors.ErrTransportFailure,
			fmt.Errorf("notification service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return nil
}

// Nop discards events; used when the terminal runs offline.
type Nop struct{}

func (Nop) Publish(context.Context, models.OrderCompletedEvent) error { return nil }
