package sender

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/invoice"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"go.uber.org/zap"
)

const defaultEmailAPIBase = "https://api.resend.com"

type EmailConfig struct {
	APIBase string
	APIKey  string
	From    string
	Timeout time.Duration
}

// EmailAdapter sends the invoice for a completed order as an attachment
// through a transactional email API.
type EmailAdapter struct {
	cfg        EmailConfig
	assets     invoice.AssetStore
	httpClient *http.Client
	logger     *zap.Logger
}

func NewEmailAdapter(cfg EmailConfig, assets invoice.AssetStore, logger *zap.Logger) *EmailAdapter {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultEmailAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &EmailAdapter{
		cfg:        cfg,
		assets:     assets,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (a *EmailAdapter) Channel() models.Channel { return models.ChannelEmail }

type emailAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type emailRequest struct {
	From        string            `json:"from"`
	To          []string          `json:"to"`
	Subject     string            `json:"subject"`
	HTML        string            `json:"html"`
	Attachments []emailAttachment `json:"attachments"`
}

type emailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

var invoiceEmailTmpl = template.Must(template.New("invoice").Parse(
	`<p>Hello,</p>
<p>Please find attached the invoice for order <strong>{{.OrderNumber}}</strong>.</p>
<p>Total: <strong>{{.Total}}</strong></p>
<p>Thank you for billing with Hindustan Bills.</p>`))

func (a *EmailAdapter) Send(ctx context.Context, order models.Order, cfg models.ChannelConfig) models.DeliveryAttempt {
	if cfg.EmailRecipient == "" {
		return skipped(models.ChannelEmail, order, "no email recipient for shop")
	}
	if a.cfg.APIKey == "" || a.cfg.From == "" {
		return skipped(models.ChannelEmail, order, "email api not configured")
	}

	assetPath := invoice.AssetPath(cfg.InvoiceAssetPath, order.OrderNumber)
	pdf, err := a.assets.Read(ctx, assetPath)
	if err != nil {
		a.logger.Warn("invoice asset unavailable, email skipped",
			zap.String("order_number", order.OrderNumber),
			zap.String("asset_path", assetPath),
			zap.Error(err),
		)
		return failedOrSkipped(order, err)
	}

	var html bytes.Buffer
	if err := invoiceEmailTmpl.Execute(&html, map[string]string{
		"OrderNumber": order.OrderNumber,
		"Total":       FormatRupees(order.Total),
	}); err != nil {
		return a.fail(order, fmt.Errorf("render email: %w", err))
	}

	id, err := a.post(ctx, emailRequest{
		From:    a.cfg.From,
		To:      []string{cfg.EmailRecipient},
		Subject: fmt.Sprintf("Invoice for order %s", order.OrderNumber),
		HTML:    html.String(),
		Attachments: []emailAttachment{{
			Filename: invoice.FileName(order.OrderNumber),
			Content:  base64.StdEncoding.EncodeToString(pdf),
		}},
	})
	if err != nil {
		return a.fail(order, err)
	}
	return sent(models.ChannelEmail, order, "email_id="+id)
}

// failedOrSkipped maps a missing asset to a skipped attempt carrying the
// AssetNotFound kind; any other read error is a failure.
func failedOrSkipped(order models.Order, err error) models.DeliveryAttempt {
	if apperrors.KindOf(err) == apperrors.KindAssetNotFound {
		a := attempt(models.ChannelEmail, order, models.OutcomeSkipped)
		a.Kind = apperrors.KindAssetNotFound
		a.Detail = err.Error()
		return a
	}
	return failed(models.ChannelEmail, order, err)
}

func (a *EmailAdapter) fail(order models.Order, err error) models.DeliveryAttempt {
	a.logger.Warn("invoice email failed",
		zap.String("order_number", order.OrderNumber),
		zap.Error(err),
	)
	return failed(models.ChannelEmail, order, err)
}

func (a *EmailAdapter) post(ctx context.Context, body emailRequest) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIBase+"/emails", bytes.NewReader(b))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("email api error (status %d): %s", resp.StatusCode, string(respBytes)))
	}

	var out emailResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("malformed response: %w", err))
	}
	return out.ID, nil
}
