// Package cli implements the sequencer command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/sequencer/internal/config"
	"github.com/opencode-ai/sequencer/internal/db"
	"github.com/opencode-ai/sequencer/internal/logging"
)

var (
	cfgFile        string
	jsonOutput     bool
	jsonlOutput    bool
	logLevel       string
	logFormat      string
	nonInteractive bool
	noProgress     bool

	appConfig *config.Config
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "sequencer",
	Short: "Play and inspect cutscene sequences",
	Long: `sequencer parses and plays cutscene sequences: semicolon separated
commands with optional delays, message triggers and end messages.

  Camera(Closeup); Animation(Wave)@0.5; Audio(knock)@Message(DoorOpen)->Message(Knocked)`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.config/sequencer/config.yaml)")
	flags.BoolVar(&jsonOutput, "json", false, "write JSON output")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "write JSON lines output")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt or start the monitor")
	flags.BoolVar(&noProgress, "no-progress", false, "hide progress lines")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	rootCmd.Version = version
	return rootCmd.ExecuteContext(context.Background())
}

func initApp(cmd *cobra.Command, args []string) error {
	if jsonOutput && jsonlOutput {
		return fmt.Errorf("--json and --jsonl are mutually exclusive")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(logLevel) != "" {
		cfg.Logging.Level = logLevel
	}
	if strings.TrimSpace(logFormat) != "" {
		cfg.Logging.Format = logFormat
	}
	if IsJSONOutput() || IsJSONLOutput() {
		cfg.Logging.Format = "json"
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	appConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration, or the defaults before load.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool { return jsonOutput }

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool { return jsonlOutput }

// openDatabase opens the event log and applies pending migrations. It works
// whether or not recording is enabled, so stored history stays readable.
func openDatabase() (*db.DB, error) {
	cfg := GetConfig()
	dbCfg := db.DefaultConfig()
	dbCfg.Path = cfg.Database.Path

	database, err := db.Open(dbCfg)
	if err != nil {
		return nil, &PreflightError{
			Message:  fmt.Sprintf("cannot open event log: %v", err),
			Hint:     "Check database.path in the config file",
			NextStep: "sequencer --config <file> events",
		}
	}
	if _, err := database.MigrateUp(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate event log: %w", err)
	}
	return database, nil
}
