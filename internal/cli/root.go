package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "weather-now",
		Short:        "Current weather for any city, over HTTP or from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $WEATHER_CONFIG)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(lookupCmd(&configPath))
	cmd.AddCommand(versionCmd())
	return cmd
}
