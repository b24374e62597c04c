package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-now/internal/config"
	"github.com/i474232898/weather-now/internal/logger"
	"github.com/i474232898/weather-now/internal/weather"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
)

func lookupCmd(configPath *string) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "lookup <city>",
		Short: "Print the current weather for a city",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			// Logs go to stderr so stdout carries only the result.
			log, err := logger.New(logger.Config{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}

			s := newStack(cfg, nil, log)
			w, err := s.resolver.Resolve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), w)
			}
			printCard(cmd.OutOrStdout(), w)
			return nil
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON document")
	return c
}

func printJSON(w io.Writer, v weather.Weather) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCard(w io.Writer, v weather.Weather) {
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(v.City),
		faintStyle.Render(v.Date.String()),
		"",
		fmt.Sprintf("Temperature: %.1f °C", v.TemperatureC),
		v.Description,
	)
	fmt.Fprintln(w, cardStyle.Render(body))
}
