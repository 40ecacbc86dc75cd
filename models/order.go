package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusNotified  OrderStatus = "notified"
)

type OrderItem struct {
	Name     string          `json:"name,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" binding:"min=0"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	OrderNumber  string          `json:"order_number" binding:"required"`
	ShopID       string          `json:"shop_id,omitempty"`
	TableNumber  string          `json:"table_number,omitempty"`
	Items        []OrderItem     `json:"items" binding:"required,dive"`
	Total        decimal.Decimal `json:"total"`
	CustomerName string          `json:"customer_name,omitempty"`
	Status       OrderStatus     `json:"status"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// SumItems returns Σ(price × quantity) over items.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Validate checks the order-completion invariants. The notification layer
// trusts Total as given and does not call this.
func (o Order) Validate() error {
	if o.OrderNumber == "" {
		return fmt.Errorf("order number is required")
	}
	for i, item := range o.Items {
		if item.Price.IsNegative() {
			return fmt.Errorf("item %d: negative price %s", i, item.Price)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("item %d: negative quantity %d", i, item.Quantity)
		}
	}
	if sum := SumItems(o.Items); !sum.Equal(o.Total) {
		return fmt.Errorf("order %s: total %s does not match items %s", o.OrderNumber, o.Total, sum)
	}
	return nil
}
