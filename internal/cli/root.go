package cli

import (
	"errors"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fooddiscovery/backend/config"
	"github.com/fooddiscovery/backend/internal/domain"
)

// version is set at build time via ldflags.
var version = "dev"

type RootConfig struct {
	ConfigFile string
	LogLevel   string

	// loaded by PersistentPreRunE
	cfg *config.Config
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	rc := &RootConfig{}
	cmd := &cobra.Command{
		Use:          "placeagg",
		Short:        "Food and place discovery aggregator",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rc.ConfigFile)
			if err != nil {
				return err
			}
			if flagChanged(cmd, "log-level") {
				cfg.Log.Level = rc.LogLevel
			}
			setupLogging(cfg.Log.Level, cfg.Server.Environment)
			rc.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&rc.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCommand(rc))
	cmd.AddCommand(newSearchCommand(rc))
	cmd.AddCommand(newConnectorsCommand(rc))
	return cmd
}

// setupLogging configures the global zerolog logger. Development gets a
// human-readable console writer, everything else JSON on stdout.
func setupLogging(level string, environment string) {
	if environment == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func exitCodeForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return 2
	case errors.Is(err, domain.ErrLocationNotFound):
		return 3
	case errors.Is(err, domain.ErrNoConnectors):
		return 4
	}

	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument:
		return 2
	case errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
		return true
	}
	if flag := cmd.InheritedFlags().Lookup(name); flag != nil && flag.Changed {
		return true
	}
	return false
}
