package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quantmesh/edgecore/internal/application"
)

var configPath string

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "edgecore",
		Short: "Real-time derivatives decision pipeline",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config")
	root.AddCommand(serveCmd())
	root.AddCommand(analyzeCmd())
	return root.ExecuteContext(ctx)
}

// setupLogging configures zerolog from config: level, and console output when
// pretty is requested or stderr is a terminal.
func setupLogging(cfg application.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty || term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
