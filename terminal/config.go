package terminal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/checkout"
	"github.com/Faraz011/Hindustan-Bills-sub001/scanner"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	PublishNone = "none"
	PublishSNS  = "sns"
	PublishHTTP = "http"
)

type SettlementConfig struct {
	Window time.Duration `mapstructure:"window" yaml:"window" validate:"gte=0"`
}

type PublishConfig struct {
	Mode            string        `mapstructure:"mode" yaml:"mode" validate:"oneof=none sns http"`
	TopicArn        string        `mapstructure:"topic_arn" yaml:"topic_arn,omitempty" validate:"required_if=Mode sns"`
	NotificationURL string        `mapstructure:"notification_url" yaml:"notification_url,omitempty" validate:"required_if=Mode http,omitempty,url"`
	InternalToken   string        `mapstructure:"internal_token" yaml:"-"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Config struct {
	Env        string           `mapstructure:"env" yaml:"env"`
	Shop       checkout.Details `mapstructure:"shop" yaml:"shop"`
	Scanner    ScannerConfig    `mapstructure:"scanner" yaml:"scanner"`
	Settlement SettlementConfig `mapstructure:"settlement" yaml:"settlement"`
	Publish    PublishConfig    `mapstructure:"publish" yaml:"publish"`
}

// ScannerConfig mirrors scanner.ScanConfig for file loading; the license key
// is never echoed back by `config`.
type ScannerConfig struct {
	LicenseKey   string          `mapstructure:"license_key" yaml:"-"`
	EnginePath   string          `mapstructure:"engine_path" yaml:"engine_path"`
	UseCase      string          `mapstructure:"use_case" yaml:"use_case"`
	Palette      scanner.Palette `mapstructure:"palette" yaml:"palette"`
	GuidanceText string          `mapstructure:"guidance_text" yaml:"guidance_text"`
	Formats      []string        `mapstructure:"formats" yaml:"formats"`
	AutoStart    bool            `mapstructure:"auto_start" yaml:"auto_start"`
	Timeout      time.Duration   `mapstructure:"timeout" yaml:"timeout"`
}

func (s ScannerConfig) ScanConfig() scanner.ScanConfig {
	return scanner.ScanConfig{
		LicenseKey:   s.LicenseKey,
		EnginePath:   s.EnginePath,
		UseCase:      s.UseCase,
		Palette:      s.Palette,
		GuidanceText: s.GuidanceText,
		Formats:      s.Formats,
		AutoStart:    s.AutoStart,
		Timeout:      s.Timeout,
	}
}

func setDefaults(v *viper.Viper) {
	d := scanner.DefaultScanConfig()
	v.SetDefault("env", "development")
	v.SetDefault("scanner.use_case", d.UseCase)
	v.SetDefault("scanner.palette.accent", d.Palette.Accent)
	v.SetDefault("scanner.palette.background", d.Palette.Background)
	v.SetDefault("scanner.palette.text", d.Palette.Text)
	v.SetDefault("scanner.guidance_text", d.GuidanceText)
	v.SetDefault("scanner.formats", d.Formats)
	v.SetDefault("scanner.auto_start", d.AutoStart)
	v.SetDefault("scanner.timeout", d.Timeout)
	v.SetDefault("scanner.license_key", "")
	v.SetDefault("scanner.engine_path", "")
	v.SetDefault("shop.shop_id", "")
	v.SetDefault("shop.table_number", "")
	v.SetDefault("shop.customer_name", "")
	v.SetDefault("settlement.window", checkout.DefaultSettlementWindow)
	v.SetDefault("publish.mode", PublishNone)
	v.SetDefault("publish.topic_arn", "")
	v.SetDefault("publish.notification_url", "")
	v.SetDefault("publish.internal_token", "")
	v.SetDefault("publish.timeout", 15*time.Second)
}

// LoadConfig reads path, or pos-terminal.yaml from the working directory
// and ~/.hindustan-bills when path is empty. HB_-prefixed environment
// variables override file values (HB_SCANNER_LICENSE_KEY, HB_PUBLISH_MODE).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pos-terminal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".hindustan-bills"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
