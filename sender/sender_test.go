package sender_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/sender"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ---- fixtures ----

func riyaOrder() models.Order {
	items := []models.OrderItem{
		{Price: decimal.NewFromInt(120), Quantity: 2},
		{Price: decimal.NewFromInt(50), Quantity: 1},
	}
	return models.Order{
		OrderNumber:  "HB-1001",
		TableNumber:  "4",
		Items:        items,
		Total:        models.SumItems(items),
		CustomerName: "Riya",
		Status:       models.OrderStatusCompleted,
	}
}

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func ist(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	return loc
}

type memAssets map[string][]byte

func (m memAssets) Read(_ context.Context, p string) ([]byte, error) {
	b, ok := m[p]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrAssetNotFound, nil)
	}
	return b, nil
}

// ---- chat message ----

func TestRenderChatAlert_Scenario(t *testing.T) {
	text := sender.RenderChatAlert(riyaOrder(), fixedNow.In(ist(t)))

	assert.Contains(t, text, "*Order:* HB-1001")
	assert.Contains(t, text, "*Table:* 4")
	assert.Contains(t, text, "*Customer:* Riya")
	assert.Contains(t, text, "*Items:* 2")
	assert.Contains(t, text, "*Total:* ₹290.00")
	assert.Contains(t, text, "*Time:* 14 Oct 2026, 03:00 PM")
}

func TestRenderChatAlert_Defaults(t *testing.T) {
	o := riyaOrder()
	o.TableNumber = ""
	o.CustomerName = "  "
	text := sender.RenderChatAlert(o, fixedNow)

	assert.Contains(t, text, "*Table:* N/A")
	assert.Contains(t, text, "*Customer:* Guest")
}

func TestFormatRupees_TwoDecimals(t *testing.T) {
	cases := map[string]decimal.Decimal{
		"₹290.00": decimal.NewFromInt(290),
		"₹0.30":   decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2)),
		"₹19.99":  decimal.RequireFromString("19.990"),
		"₹0.00":   decimal.Zero,
		"₹10.13":  decimal.NewFromFloat(10.125).Round(2),
	}
	for want, amount := range cases {
		assert.Equal(t, want, sender.FormatRupees(amount))
	}
}

func TestRenderChatAlert_TotalUsesOrderTotal(t *testing.T) {
	o := riyaOrder()
	o.Total = decimal.RequireFromString("333.3")
	text := sender.RenderChatAlert(o, fixedNow)

	assert.Contains(t, text, "₹333.30")
}

// ---- chat push ----

type chatServer struct {
	*httptest.Server
	calls atomic.Int32
	last  map[string]string
}

func newChatServer(t *testing.T, status int, body string) *chatServer {
	cs := &chatServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.calls.Add(1)
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&cs.last)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newChat(base string) *sender.ChatPushAdapter {
	return sender.NewChatPushAdapter(sender.ChatPushConfig{
		APIBase:  base,
		BotToken: "123:abc",
		Timeout:  2 * time.Second,
		Location: time.UTC,
	}, zap.NewNop()).WithClock(func() time.Time { return fixedNow })
}

func TestChatPush_Sent(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"ok":true,"result":{"message_id":42}}`)
	a := newChat(srv.URL).Send(context.Background(), riyaOrder(), models.ChannelConfig{ChatDestination: "-100200"})

	assert.Equal(t, models.OutcomeSent, a.Outcome)
	assert.Equal(t, models.ChannelChat, a.Channel)
	assert.Equal(t, "HB-1001", a.OrderNumber)
	assert.Equal(t, "message_id=42", a.Detail)
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Equal(t, "-100200", srv.last["chat_id"])
	assert.Equal(t, "Markdown", srv.last["parse_mode"])
	assert.Contains(t, srv.last["text"], "₹290.00")
}

func TestChatPush_NoDestination_NoCall(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"ok":true}`)
	a := newChat(srv.URL).Send(context.Background(), riyaOrder(), models.ChannelConfig{})

	assert.Equal(t, models.OutcomeSkipped, a.Outcome)
	assert.Equal(t, apperrors.KindConfigurationMissing, a.Kind)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestChatPush_NoToken_Skipped(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"ok":true}`)
	adapter := sender.NewChatPushAdapter(sender.ChatPushConfig{APIBase: srv.URL}, zap.NewNop())
	a := adapter.Send(context.Background(), riyaOrder(), models.ChannelConfig{ChatDestination: "-1"})

	assert.Equal(t, models.OutcomeSkipped, a.Outcome)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestChatPush_NotOK_Failed(t *testing.T) {
	srv := newChatServer(t, http.StatusBadRequest, `{"ok":false,"description":"Bad Request: chat not found"}`)
	a := newChat(srv.URL).Send(context.Background(), riyaOrder(), models.ChannelConfig{ChatDestination: "-1"})

	assert.Equal(t, models.OutcomeFailed, a.Outcome)
	assert.Equal(t, apperrors.KindTransportFailure, a.Kind)
	assert.Contains(t, a.Detail, "chat not found")
}

func TestChatPush_OKFalseWith200_Failed(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"ok":false}`)
	a := newChat(srv.URL).Send(context.Background(), riyaOrder(), models.ChannelConfig{ChatDestination: "-1"})

	assert.Equal(t, models.OutcomeFailed, a.Outcome)
}

func TestChatPush_MalformedResponse_Failed(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `<html>gateway</html>`)
	a := newChat(srv.URL).Send(context.Background(), riyaOrder(), models.ChannelConfig{ChatDestination: "-1"})

	assert.Equal(t, models.OutcomeFailed, a.Outcome)
	assert.Equal(t, apperrors.KindTransportFailure, a.Kind)
}

func TestChatPush_TransportError_RedactsToken(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"ok":true}`)
	base := srv.URL
	srv.Close()

	a := newChat(base).Send(context.Background(), riyaOrder(), models.ChannelConfig{ChatDestination: "-1"})

	assert.Equal(t, models.OutcomeFailed, a.Outcome)
	assert.Equal(t, apperrors.KindTransportFailure, a.Kind)
	assert.NotContains(t, a.Detail, "123:abc")
}

// ---- email ----

type emailServer struct {
	*httptest.Server
	calls atomic.Int32
	auth  string
	req   struct {
		From        string   `json:"from"`
		To          []string `json:"to"`
		Subject     string   `json:"subject"`
		HTML        string   `json:"html"`
		Attachments []struct {
			Filename string `json:"filename"`
			Content  string `json:"content"`
		} `json:"attachments"`
	}
}

func newEmailServer(t *testing.T, status int, body string) *emailServer {
	es := &emailServer{}
	es.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		es.calls.Add(1)
		assert.Equal(t, "/emails", r.URL.Path)
		es.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&es.req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(es.Close)
	return es
}

func newEmail(base string, assets memAssets, log *zap.Logger) *sender.EmailAdapter {
	return sender.NewEmailAdapter(sender.EmailConfig{
		APIBase: base,
		APIKey:  "re_test",
		From:    "Hindustan Bills <invoices@example.com>",
	}, assets, log)
}

func TestEmail_SentWithAttachment(t *testing.T) {
	srv := newEmailServer(t, http.StatusOK, `{"id":"em_1"}`)
	assets := memAssets{"shop-1/invoice-HB-1001.pdf": []byte("%PDF-1.7 body")}

	a := newEmail(srv.URL, assets, zap.NewNop()).Send(context.Background(), riyaOrder(), models.ChannelConfig{
		EmailRecipient:   "owner@shop.example",
		InvoiceAssetPath: "shop-1",
	})

	require.Equal(t, models.OutcomeSent, a.Outcome, a.Detail)
	assert.Equal(t, "email_id=em_1", a.Detail)
	assert.Equal(t, "Bearer re_test", srv.auth)
	assert.Equal(t, []string{"owner@shop.example"}, srv.req.To)
	assert.Contains(t, srv.req.Subject, "HB-1001")
	assert.Contains(t, srv.req.HTML, "₹290.00")
	require.Len(t, srv.req.Attachments, 1)
	assert.Equal(t, "invoice-HB-1001.pdf", srv.req.Attachments[0].Filename)
	decoded, err := base64.StdEncoding.DecodeString(srv.req.Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(decoded))
}

func TestEmail_MissingAsset_LoggedAndSkipped(t *testing.T) {
	srv := newEmailServer(t, http.StatusOK, `{"id":"em_1"}`)
	core, logs := observer.New(zapcore.WarnLevel)

	a := newEmail(srv.URL, memAssets{}, zap.New(core)).Send(context.Background(), riyaOrder(), models.ChannelConfig{
		EmailRecipient:   "owner@shop.example",
		InvoiceAssetPath: "shop-1",
	})

	assert.Equal(t, models.OutcomeSkipped, a.Outcome)
	assert.Equal(t, apperrors.KindAssetNotFound, a.Kind)
	assert.Equal(t, int32(0), srv.calls.Load())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shop-1/invoice-HB-1001.pdf", logs.All()[0].ContextMap()["asset_path"])
}

func TestEmail_NoRecipient_Skipped(t *testing.T) {
	srv := newEmailServer(t, http.StatusOK, `{"id":"em_1"}`)
	a := newEmail(srv.URL, memAssets{}, zap.NewNop()).Send(context.Background(), riyaOrder(), models.ChannelConfig{})

	assert.Equal(t, models.OutcomeSkipped, a.Outcome)
	assert.Equal(t, apperrors.KindConfigurationMissing, a.Kind)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestEmail_NoAPIKey_Skipped(t *testing.T) {
	adapter := sender.NewEmailAdapter(sender.EmailConfig{From: "a@b.c"}, memAssets{}, zap.NewNop())
	a := adapter.Send(context.Background(), riyaOrder(), models.ChannelConfig{EmailRecipient: "owner@shop.example"})

	assert.Equal(t, models.OutcomeSkipped, a.Outcome)
}

func TestEmail_APIError_Failed(t *testing.T) {
	srv := newEmailServer(t, http.StatusUnprocessableEntity, `{"message":"invalid from"}`)
	assets := memAssets{"invoice-HB-1001.pdf": []byte("%PDF")}

	a := newEmail(srv.URL, assets, zap.NewNop()).Send(context.Background(), riyaOrder(), models.ChannelConfig{EmailRecipient: "owner@shop.example"})

	assert.Equal(t, models.OutcomeFailed, a.Outcome)
	assert.Equal(t, apperrors.KindTransportFailure, a.Kind)
	assert.True(t, strings.Contains(a.Detail, "422"))
}
