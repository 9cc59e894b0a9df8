// Package main provides the citation tracker command line: the monitoring
// loop, a one-shot cycle, and ledger maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-tracker-service/internal/config"
	"github.com/helixir/citation-tracker-service/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	envFile    string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "tracker",
		Short: "Track new papers citing a set of target papers",
		Long: `tracker watches the citation lists of configured target papers, classifies
every new citing paper as working on the same task or not, and writes a
Markdown summary for each one that does.

Every processed paper is recorded in a ledger so it is handled only once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./config.yaml, ./config/config.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before configuration; missing files are ignored")

	root.AddCommand(
		newRunCmd(c),
		newLedgerCmd(c),
		newTargetsCmd(c),
	)
	return root
}

// init loads the dotenv file and configuration and builds the logger.
func (c *cli) init() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	c.logger = observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	return nil
}
