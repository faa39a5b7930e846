// Package cli implements the cropctl command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"cropwise-go/internal/config"
	"cropwise-go/internal/dataset"
	"cropwise-go/internal/logging"
	"cropwise-go/internal/service"
	"cropwise-go/internal/state"
	"cropwise-go/internal/store"
)

var version = "dev"

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cropctl",
	Short: "Train and query the crop models offline",
	Long: `cropctl trains the recommendation, rotation and yield models from their
datasets, ranks crop rotations and profiles the training data without
running the HTTP server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: logLevel, Format: "console", Output: cmd.ErrOrStderr()})
	return nil
}

// env bundles what every subcommand needs.
type env struct {
	loader  *dataset.Loader
	store   store.ArtifactStore
	state   *state.AppState
	manager *service.Manager
}

// newEnv wires a manager. With persist false no artifact store is opened.
func newEnv(persist bool) (*env, error) {
	e := &env{loader: dataset.NewLoader(cfg.Database.PostgresDSN), state: state.New()}
	if persist {
		st, err := store.New(cfg.Models)
		if err != nil {
			return nil, err
		}
		e.store = st
	}
	e.manager = service.NewManager(*cfg, e.loader, e.store, e.state)
	return e, nil
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close artifact store")
		}
	}
	e.loader.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
