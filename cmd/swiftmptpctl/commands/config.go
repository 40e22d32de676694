package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mptpnet/swiftmptp/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect swiftmptpd configuration",
	}

	cmd.AddCommand(configDumpCmd())

	return cmd
}

func configDumpCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration (defaults merged with a file, if given)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var (
				cfg *config.Config
				err error
			)

			if path == "" {
				cfg = config.DefaultConfig()
			} else {
				cfg, err = config.Load(path)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()

			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "configuration file to load (defaults only if omitted)")

	return cmd
}
