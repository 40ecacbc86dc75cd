package sender

import (
	"fmt"
	"strings"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/shopspring/decimal"
)

const ChatParseMode = "Markdown"

const sentAtLayout = "02 Jan 2006, 03:04 PM"

// FormatRupees renders an amount as ₹ with exactly two decimals.
func FormatRupees(amount decimal.Decimal) string {
	return "₹" + amount.StringFixed(2)
}

// RenderChatAlert builds the retailer alert for a completed order.
func RenderChatAlert(o models.Order, sentAt time.Time) string {
	table := o.TableNumber
	if strings.TrimSpace(table) == "" {
		table = "N/A"
	}
	customer := o.CustomerName
	if strings.TrimSpace(customer) == "" {
		customer = "Guest"
	}

	var b strings.Builder
	b.WriteString("🧾 *New Order Completed*\n\n")
	fmt.Fprintf(&b, "*Order:* %s\n", escapeMarkdown(o.OrderNumber))
	fmt.Fprintf(&b, "*Table:* %s\n", escapeMarkdown(table))
	fmt.Fprintf(&b, "*Customer:* %s\n", escapeMarkdown(customer))
	fmt.Fprintf(&b, "*Items:* %d\n", len(o.Items))
	fmt.Fprintf(&b, "*Total:* %s\n", FormatRupees(o.Total))
	fmt.Fprintf(&b, "*Time:* %s", sentAt.Format(sentAtLayout))
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
