package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
)

// snsEnvelope unwraps the SNS → SQS message wrapper
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// DecodeEvent accepts a raw OrderCompletedEvent or one wrapped in an SNS
// notification envelope.
func DecodeEvent(body []byte) (*models.OrderCompletedEvent, error) {
	var envelope snsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "malformed event body", err)
	}
	if envelope.Message != "" {
		body = []byte(envelope.Message)
	}

	var event models.OrderCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "malformed order_completed event", err)
	}
	if event.Order.OrderNumber == "" {
		return nil, apperrors.New(apperrors.KindDecodeFailure, fmt.Sprintf("event %q has no order number", event.EventType), nil)
	}
	return &event, nil
}

// permanent reports errors that redelivery cannot fix.
func permanent(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindDecodeFailure, apperrors.KindInvalidInput:
		return true
	}
	return false
}
