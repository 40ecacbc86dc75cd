package models

import (
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
)

type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

const TypeOrderCompleted = "order_completed"

// ChannelConfig holds one shop's destinations. An empty field disables that
// channel for the shop.
type ChannelConfig struct {
	ShopID           string `json:"shop_id"`
	ChatDestination  string `json:"chat_destination,omitempty"`
	EmailRecipient   string `json:"email_recipient,omitempty" binding:"omitempty,email"`
	InvoiceAssetPath string `json:"invoice_asset_path,omitempty"`
}

// ShopChannel is the persisted form of ChannelConfig.
type ShopChannel struct {
	ShopID           string    `gorm:"primaryKey;type:varchar(64)"`
	ChatDestination  string    `gorm:"type:varchar(128)"`
	EmailRecipient   string    `gorm:"type:varchar(255)"`
	InvoiceAssetPath string    `gorm:"type:varchar(512)"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (s ShopChannel) ToConfig() ChannelConfig {
	return ChannelConfig{
		ShopID:           s.ShopID,
		ChatDestination:  s.ChatDestination,
		EmailRecipient:   s.EmailRecipient,
		InvoiceAssetPath: s.InvoiceAssetPath,
	}
}

func ShopChannelFromConfig(c ChannelConfig) ShopChannel {
	return ShopChannel{
		ShopID:           c.ShopID,
		ChatDestination:  c.ChatDestination,
		EmailRecipient:   c.EmailRecipient,
		InvoiceAssetPath: c.InvoiceAssetPath,
	}
}

// DeliveryAttempt is the outcome of one channel attempt within one dispatch.
// It is never persisted.
type DeliveryAttempt struct {
	DispatchID  string         `json:"dispatch_id"`
	Channel     Channel        `json:"channel"`
	OrderNumber string         `json:"order_number"`
	Outcome     Outcome        `json:"outcome"`
	Kind        apperrors.Kind `json:"kind,omitempty"`
	Detail      string         `json:"detail,omitempty"`
	Duration    time.Duration  `json:"duration_ns"`
}

// OrderCompletedEvent is published by the fulfillment subsystem once an order
// has been committed. ShopID may be left empty when Order.ShopID is set.
type OrderCompletedEvent struct {
	EventType   string    `json:"event_type"`
	ShopID      string    `json:"shop_id"`
	Order       Order     `json:"order"`
	CompletedAt time.Time `json:"completed_at"`
}
