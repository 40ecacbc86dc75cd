package terminal

import (
	"context"
	"fmt"

	"github.com/Faraz011/Hindustan-Bills-sub001/fulfillment"
	"github.com/Faraz011/Hindustan-Bills-sub001/logger"
	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
	"github.com/Faraz011/Hindustan-Bills-sub001/scanner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string

	cfg    *Config
	logger *zap.Logger
	// engine overrides the out-of-process engine.
	engine scanner.Engine
	// publisher overrides the configured publish mode.
	publisher fulfillment.Publisher
}

// NewRootCommand builds the pos-terminal command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pos-terminal",
		Short: "Hindustan Bills counter checkout",
		Long: `pos-terminal runs the counter checkout flow: cart summary, payment
selection, UPI scan, settlement, and hand-off to the notification service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./pos-terminal.yaml)")

	root.AddCommand(newCheckoutCommand(a))
	root.AddCommand(newScanCommand(a))
	root.AddCommand(newConfigCommand(a))
	return root
}

func (a *app) load() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.logger == nil {
		log, err := logger.New(cfg.Env, nil)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		a.logger = log
	}
	return nil
}

// newScanner returns nil when no engine is configured.
func (a *app) newScanner() (*scanner.Adapter, error) {
	sc := a.cfg.Scanner.ScanConfig()
	if a.engine == nil && sc.EnginePath == "" {
		return nil, nil
	}
	var handle *scanner.EngineHandle
	if a.engine != nil {
		handle = scanner.NewEngineHandle(a.engine, sc.InitOptions())
	} else {
		handle = scanner.SharedHandle(&scanner.ProcessEngine{}, sc.InitOptions())
	}
	return scanner.NewAdapter(handle, sc, a.logger.Named("scanner"))
}

func (a *app) newPublisher(ctx context.Context) (fulfillment.Publisher, error) {
	if a.publisher != nil {
		return a.publisher, nil
	}
	p := a.cfg.Publish
	switch p.Mode {
	case PublishSNS:
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return fulfillment.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), p.TopicArn), nil
	case PublishHTTP:
		return fulfillment.NewHTTPPublisher(p.NotificationURL, p.InternalToken, p.Timeout), nil
	default:
		return fulfillment.Nop{}, nil
	}
}
