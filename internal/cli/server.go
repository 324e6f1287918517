package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"levelup-sidequest/internal/app"
	"levelup-sidequest/internal/config"
	"levelup-sidequest/internal/infra/sqlstore"
	transport "levelup-sidequest/internal/transport/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the side-quest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	leaderboard := app.NewLeaderboardService(st.scores, logger)
	quests := app.NewQuestService(st.quests, st.registrants, st.scores, st.completed, logger,
		app.WithScoreNotifier(leaderboard))
	auth := app.NewAuthService(st.registrants, st.sessions, cfg.Session.Secret,
		config.TTLDuration(cfg.Session.TTL, 12*time.Hour), logger)
	registration := app.NewRegistrationService(st.registrants, logger)
	admin := app.NewQuestAdmin(st.questWriter, st.quests, logger)

	// The memory driver starts empty, so load the authored quests into it.
	if cfg.Storage.Driver != sqlstore.DriverPostgres && cfg.Storage.Driver != sqlstore.DriverSQLite {
		if err := seedFromFile(ctx, admin, cfg.Seed.QuestsFile, logger); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	srv := transport.NewServer(quests, auth, registration, leaderboard, admin, logger, transport.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.Secure,
		AdminKey:     cfg.Admin.APIKey,
		Health:       st.Health,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting side-quest server", "addr", server.Addr, "driver", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
