package scanner

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	UseCaseSingleScan = "single_scan"

	DefaultGuidance = "Align the merchant QR code inside the frame"
	DefaultTimeout  = 2 * time.Minute
)

type Palette struct {
	Accent     string `mapstructure:"accent" json:"accent" validate:"omitempty,hexcolor"`
	Background string `mapstructure:"background" json:"background" validate:"omitempty,hexcolor"`
	Text       string `mapstructure:"text" json:"text" validate:"omitempty,hexcolor"`
}

// ScanConfig lists every option the engine recognises. Start from
// DefaultScanConfig and override.
type ScanConfig struct {
	// LicenseKey and EnginePath are checked when the engine initializes.
	LicenseKey   string        `mapstructure:"license_key" json:"-"`
	EnginePath   string        `mapstructure:"engine_path" json:"-"`
	UseCase      string        `mapstructure:"use_case" json:"use_case" validate:"oneof=single_scan"`
	Palette      Palette       `mapstructure:"palette" json:"palette"`
	GuidanceText string        `mapstructure:"guidance_text" json:"guidance_text" validate:"required,max=120"`
	Formats      []string      `mapstructure:"formats" json:"formats" validate:"min=1,dive,oneof=QR_CODE EAN_13 CODE_128"`
	AutoStart    bool          `mapstructure:"auto_start" json:"-"`
	Timeout      time.Duration `mapstructure:"timeout" json:"-" validate:"gt=0"`
}

func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		UseCase: UseCaseSingleScan,
		Palette: Palette{
			Accent:     "#F97316",
			Background: "#111827",
			Text:       "#FFFFFF",
		},
		GuidanceText: DefaultGuidance,
		Formats:      []string{"QR_CODE"},
		AutoStart:    true,
		Timeout:      DefaultTimeout,
	}
}

var validate = validator.New()

func (c ScanConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid scan config: %w", err)
	}
	return nil
}

func (c ScanConfig) InitOptions() InitOptions {
	return InitOptions{LicenseKey: c.LicenseKey, EnginePath: c.EnginePath}
}
