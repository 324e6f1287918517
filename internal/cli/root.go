package cli

import (
	"context"
	"log/slog"
	"os"

	"levelup-sidequest/internal/config"
	"levelup-sidequest/internal/logging"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	port       string
	envFiles   []string
}

// Execute runs the CLI. Cancelling ctx stops a running server.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "sidequest",
		Short:         "LevelUp side-quest game server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(opts.envFiles...)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.port, "port", os.Getenv("PORT"), "port to listen on (overrides config)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading config (default .env)")
	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newGenerateUIDsCmd(opts))
	return cmd
}

// load reads config and builds the logger every subcommand starts from.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.port != "" {
		cfg.Server.Port = o.port
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level)
	return cfg, logger, nil
}
