package terminal

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/spf13/cobra"
)

func newScanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one scan and print the decoded payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			adapter, err := a.newScanner()
			if err != nil {
				return err
			}
			if adapter == nil {
				return apperrors.Wrap(apperrors.ErrConfigurationMissing, errors.New("scanner.engine_path is not configured"))
			}
			defer adapter.Close()

			payload, err := adapter.Open(ctx)
			if err == nil && payload == "" {
				payload, err = adapter.StartScan(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}
