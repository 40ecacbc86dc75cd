package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultChatAPIBase = "https://api.telegram.org"

type ChatPushConfig struct {
	APIBase       string
	BotToken      string
	Timeout       time.Duration
	RatePerSecond float64
	Location      *time.Location
}

// ChatPushAdapter posts order alerts to a bot chat API.
type ChatPushAdapter struct {
	cfg        ChatPushConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      Clock
	logger     *zap.Logger
}

func NewChatPushAdapter(cfg ChatPushConfig, logger *zap.Logger) *ChatPushAdapter {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultChatAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &ChatPushAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		clock:      time.Now,
		logger:     logger,
	}
}

// WithClock replaces the send-time source.
func (a *ChatPushAdapter) WithClock(clock Clock) *ChatPushAdapter {
	a.clock = clock
	return a
}

func (a *ChatPushAdapter) Channel() models.Channel { return models.ChannelChat }

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (a *ChatPushAdapter) Send(ctx context.Context, order models.Order, cfg models.ChannelConfig) models.DeliveryAttempt {
	if cfg.ChatDestination == "" {
		return skipped(models.ChannelChat, order, "no chat destination for shop")
	}
	if a.cfg.BotToken == "" {
		return skipped(models.ChannelChat, order, "bot token not configured")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return a.fail(order, apperrors.Wrap(apperrors.ErrTransportFailure, err))
	}

	text := RenderChatAlert(order, a.clock().In(a.cfg.Location))
	messageID, err := a.post(ctx, sendMessageRequest{
		ChatID:    cfg.ChatDestination,
		Text:      text,
		ParseMode: ChatParseMode,
	})
	if err != nil {
		return a.fail(order, err)
	}
	return sent(models.ChannelChat, order, fmt.Sprintf("message_id=%d", messageID))
}

func (a *ChatPushAdapter) fail(order models.Order, err error) models.DeliveryAttempt {
	a.logger.Warn("chat push failed",
		zap.String("order_number", order.OrderNumber),
		zap.Error(err),
	)
	return failed(models.ChannelChat, order, err)
}

func (a *ChatPushAdapter) post(ctx context.Context, body sendMessageRequest) (int64, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := a.cfg.APIBase + "/bot" + a.cfg.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrTransportFailure, errors.New("create request"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrTransportFailure, redactURL(err))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("read response: %w", err))
	}

	var out sendMessageResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("malformed response (status %d)", resp.StatusCode))
	}
	if !out.OK {
		return 0, apperrors.Wrap(apperrors.ErrTransportFailure, fmt.Errorf("chat api not ok (status %d): %s", resp.StatusCode, out.Description))
	}
	return out.Result.MessageID, nil
}

// redactURL drops the request URL, which carries the bot token.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
