package checkout

import (
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
)

type Step int

const (
	StepSummary Step = iota
	StepPaymentSelection
	StepSettling
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepSummary:
		return "summary"
	case StepPaymentSelection:
		return "payment_selection"
	case StepSettling:
		return "settling"
	case StepComplete:
		return "complete"
	}
	return "unknown"
}

type PaymentMethod string

const (
	MethodCash PaymentMethod = "cash"
	MethodCard PaymentMethod = "card"
	MethodUPI  PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI:
		return true
	}
	return false
}

// RequiresScan reports methods settled by scanning a merchant-presented code.
func (m PaymentMethod) RequiresScan() bool {
	return m == MethodUPI
}

// Session is a point-in-time copy of the checkout state.
type Session struct {
	ID           string
	Cart         []models.OrderItem
	Step         Step
	ChosenMethod PaymentMethod
	ScanPayload  string
	AwaitingScan bool
	Order        *models.Order
}

// Details are order fields captured at the counter rather than in the cart.
type Details struct {
	ShopID       string `mapstructure:"shop_id" json:"shop_id" yaml:"shop_id"`
	TableNumber  string `mapstructure:"table_number" json:"table_number,omitempty" yaml:"table_number,omitempty"`
	CustomerName string `mapstructure:"customer_name" json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
}

type NoticeKind string

const (
	NoticeScanReady      NoticeKind = "scan_ready"
	NoticeScanFailed     NoticeKind = "scan_failed"
	NoticeSettling       NoticeKind = "settling"
	NoticePaymentSuccess NoticeKind = "payment_success"
)

// Notice is a user-facing message from the flow.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}
