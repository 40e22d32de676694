package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func socketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sockets",
		Short: "Inspect the daemon's currently bound or connected sockets",
	}

	cmd.AddCommand(socketsListCmd())

	return cmd
}

func socketsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every bound or connected socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body socketsResponse
			if err := getJSON(cmd.Context(), "/sockets", &body); err != nil {
				return fmt.Errorf("list sockets: %w", err)
			}

			out, err := formatSockets(body.Sockets, outputFormat)
			if err != nil {
				return fmt.Errorf("format sockets: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}
