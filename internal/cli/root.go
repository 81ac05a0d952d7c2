// Package cli holds the facewatch cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

// app carries what PersistentPreRunE loads for the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "facewatch",
		Short:         "Live face recognition against a registry of known identities",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(envFile)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")

	root.AddCommand(
		newWatchCommand(a),
		newEnrollCommand(a),
		newEnrollDirCommand(a),
		newUpdateCommand(a),
		newDeactivateCommand(a),
		newIdentitiesCommand(a),
		newLogsCommand(a),
		newIdentifyCommand(a),
	)
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) init(envFile string) error {
	// variables already set in the environment win over the file
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(a.logger)
	return nil
}
