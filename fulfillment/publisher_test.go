package fulfillment_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/fulfillment"
	"github.com/Faraz011/Hindustan-Bills-sub001/middleware"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	topic string
	body  []byte
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, topicArn string, message []byte) error {
	f.topic, f.body = topicArn, message
	return f.err
}

func order() models.Order {
	at := time.Date(2026, 10, 14, 15, 0, 0, 0, time.FixedZone("IST", 19800))
	return models.Order{
		OrderNumber: "HB-1001",
		ShopID:      "shop-1",
		Items:       []models.OrderItem{{Price: decimal.NewFromInt(120), Quantity: 2}},
		Total:       decimal.NewFromInt(240),
		Status:      models.OrderStatusCompleted,
		CompletedAt: &at,
	}
}

func TestNewEvent(t *testing.T) {
	ev := fulfillment.NewEvent(order())
	assert.Equal(t, models.TypeOrderCompleted, ev.EventType)
	assert.Equal(t, "shop-1", ev.ShopID)
	assert.True(t, time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC).Equal(ev.CompletedAt))
}

func TestSNSPublisher(t *testing.T) {
	client := &fakeSNS{}
	p := fulfillment.NewSNSPublisher(client, "arn:aws:sns:ap-south-1:000000000000:order-completed")

	require.NoError(t, p.Publish(context.Background(), fulfillment.NewEvent(order())))
	assert.Equal(t, "arn:aws:sns:ap-south-1:000000000000:order-completed", client.topic)

	var got models.OrderCompletedEvent
	require.NoError(t, json.Unmarshal(client.body, &got))
	assert.Equal(t, "HB-1001", got.Order.OrderNumber)

	client.err = errors.New("throttled")
	err := p.Publish(context.Background(), fulfillment.NewEvent(order()))
	assert.True(t, errors.Is(err, apperrors.ErrTransportFailure))
}

func TestHTTPPublisher(t *testing.T) {
	var gotToken string
	var got models.OrderCompletedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(middleware.InternalTokenHeader)
		assert.Equal(t, "/notifications/order-completed", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := fulfillment.NewHTTPPublisher(srv.URL+"/", "tok", time.Second)
	require.NoError(t, p.Publish(context.Background(), fulfillment.NewEvent(order())))
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "HB-1001", got.Order.OrderNumber)
}

func TestHTTPPublisher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	err := fulfillment.NewHTTPPublisher(srv.URL, "wrong", time.Second).Publish(context.Background(), fulfillment.NewEvent(order()))
	assert.True(t, errors.Is(err, apperrors.ErrTransportFailure))
	assert.Contains(t, err.Error(), "401")
}
