// Package cli implements the rewe-discounts commands using Cobra.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maltedev/rewe-discounts/internal/config"
	"github.com/maltedev/rewe-discounts/pkg/logger"
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
}

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func NewRootCommand() *cobra.Command {
	var flags rootFlags
	a := &app{}

	cmd := &cobra.Command{
		Use:   "rewe-discounts",
		Short: "Fetches current REWE discount offers and writes them as Markdown",
		Long: `rewe-discounts fetches the current discount offers of a REWE market and
writes them grouped by category into a Markdown file.

Example usages:
  Print the market IDs of all markets in/near the zip code 63773:
    rewe-discounts markets 63773
  Export current discounts of the market with the ID 562286:
    rewe-discounts offers --market-id 562286 --output-file "Angebote Rewe.md"
  Export and highlight the products listed in highlights.txt:
    rewe-discounts offers --market-id 562286 --output-file "Angebote Rewe.md" --highlights highlights.txt`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if path == "" {
				path = configPathFromEnv()
			}

			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if flags.logLevel != "" {
				cfg.Logging.Level = flags.logLevel
			}
			if flags.logFormat != "" {
				cfg.Logging.Format = flags.logFormat
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			a.cfg = cfg
			a.logger = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			a.stdout = cmd.OutOrStdout()
			slog.SetDefault(a.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (default $"+config.ConfigFileEnv+")")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "text or json")

	cmd.AddCommand(
		newOffersCommand(a),
		newMarketsCommand(a),
		newScrapeCommand(a),
		newLegacyCommand(a),
		newServeCommand(a),
		newRelayCommand(a),
	)

	return cmd
}

// Execute runs the root command and returns the error to report.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
