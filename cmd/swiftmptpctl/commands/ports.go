package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// watchInterval is the polling interval for "ports watch" (there is no
// streaming event endpoint on the admin API, so the command re-fetches
// GET /ports on every tick).
const watchInterval = 2 * time.Second

func portsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Inspect the daemon's 8-bit port space",
	}

	cmd.AddCommand(portsListCmd())
	cmd.AddCommand(portsWatchCmd())

	return cmd
}

func portsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every port and whether it is currently bound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body portsResponse
			if err := getJSON(cmd.Context(), "/ports", &body); err != nil {
				return fmt.Errorf("list ports: %w", err)
			}

			out, err := formatPorts(body.Ports, outputFormat)
			if err != nil {
				return fmt.Errorf("format ports: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func portsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the port table until interrupted (Ctrl+C)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(watchInterval)
			defer ticker.Stop()

			for {
				var body portsResponse
				if err := getJSON(ctx, "/ports", &body); err != nil {
					return fmt.Errorf("poll ports: %w", err)
				}

				out, err := formatPorts(body.Ports, outputFormat)
				if err != nil {
					return fmt.Errorf("format ports: %w", err)
				}

				fmt.Print(out)

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}
