package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("ResourceNotFoundException")
	}
	return v, nil
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EVENT_TRANSPORT", "")
	t.Setenv("CHANNEL_TIMEOUT", "")
	t.Setenv("SHOP_CHANNELS", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8093", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ChannelTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CompletionGuardTTL)
	assert.Equal(t, TransportNone, cfg.EventTransport)
	assert.Equal(t, "Asia/Kolkata", cfg.NotifyLocation.String())
	assert.Empty(t, cfg.TelegramBotToken)
	assert.Empty(t, cfg.ShopChannels)
}

func TestLoad_ShopChannels(t *testing.T) {
	t.Setenv("SHOP_CHANNELS", `{"shop-1":{"chat_destination":"-100123","invoice_asset_path":"shop-1"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "-100123", cfg.ShopChannels["shop-1"].ChatDestination)
	assert.Equal(t, "shop-1", cfg.ShopChannels["shop-1"].InvoiceAssetPath)
}

func TestLoad_Malformed(t *testing.T) {
	cases := map[string]string{
		"CHANNEL_TIMEOUT":   "ten seconds",
		"SHOP_CHANNELS":     "[1,2]",
		"CHAT_RATE_PER_SEC": "fast",
		"NOTIFY_TIMEZONE":   "Mars/Olympus",
		"EVENT_TRANSPORT":   "carrier-pigeon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_TransportRequirements(t *testing.T) {
	t.Setenv("EVENT_TRANSPORT", "sqs")
	t.Setenv("SQS_QUEUE_URL", "")
	t.Setenv("NOTIFICATION_SQS_QUEUE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "SQS_QUEUE_URL")

	t.Setenv("EVENT_TRANSPORT", "kafka")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, kafka-2:9092 ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{TelegramBotToken: "env-token", EmailAPIKey: "env-key"}
	secrets := fakeSecrets{CredentialsSecret: `{"TELEGRAM_BOT_TOKEN":"sm-token","EMAIL_API_KEY":""}`}

	require.NoError(t, cfg.ApplySecrets(context.Background(), secrets))
	assert.Equal(t, "sm-token", cfg.TelegramBotToken)
	assert.Equal(t, "env-key", cfg.EmailAPIKey)

	assert.Error(t, cfg.ApplySecrets(context.Background(), fakeSecrets{}))
}
