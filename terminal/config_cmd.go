package terminal

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect terminal configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration (secrets omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "# Effective configuration (file + HB_ environment)")
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return cmd
}
