package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"levelup-sidequest/internal/app"
	"levelup-sidequest/internal/config"
	"levelup-sidequest/internal/infra/memory"
	pgloader "levelup-sidequest/internal/infra/postgres"
	redisstore "levelup-sidequest/internal/infra/redis"
	"levelup-sidequest/internal/infra/sqlstore"
	"levelup-sidequest/internal/infra/sqlstore/migrations"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// stack holds the storage and cache adapters selected by config.
type stack struct {
	registrants app.RegistrantRepository
	questWriter app.QuestWriter
	quests      app.QuestRepository
	scores      app.ScoreStore
	sessions    app.SessionStore
	completed   app.CompletedCache

	db    *bun.DB
	pool  *pgxpool.Pool
	redis *redis.Client
}

// openDB opens the relational store for cfg and applies pending migrations.
// It returns nil for the memory driver.
func openDB(ctx context.Context, cfg config.Config, logger *slog.Logger) (*bun.DB, error) {
	var dsn string
	switch cfg.Storage.Driver {
	case sqlstore.DriverPostgres:
		dsn = cfg.Storage.PostgresURL
	case sqlstore.DriverSQLite:
		dsn = cfg.Storage.SQLitePath
	default:
		return nil, nil
	}
	db, err := sqlstore.Open(ctx, cfg.Storage.Driver, dsn)
	if err != nil {
		return nil, err
	}
	group, err := migrations.Apply(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if group.IsZero() {
		logger.Info("database schema up to date", "driver", cfg.Storage.Driver)
	} else {
		logger.Info("migrations applied", "driver", cfg.Storage.Driver, "group", group.ID, "migrations", len(group.Migrations))
	}
	return db, nil
}

func buildStack(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stack, error) {
	s := &stack{}
	questTTL := config.TTLDuration(cfg.Quest.TTL, 10*time.Minute)
	completedTTL := config.TTLDuration(cfg.Cache.CompletedTTL, time.Hour)

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.db = db

	var loader memory.QuestLoader
	if db == nil {
		registrants := memory.NewRegistrantStore()
		questStore := memory.NewQuestStore()
		s.registrants = registrants
		s.scores = memory.NewScoreStore(registrants)
		s.questWriter = questStore
		loader = questStore
	} else {
		questStore := sqlstore.NewQuestStore(db)
		s.registrants = sqlstore.NewRegistrantStore(db)
		s.scores = sqlstore.NewScoreStore(db)
		s.questWriter = questStore
		loader = questStore
	}

	// On Postgres the quest read path goes through pgx directly.
	if cfg.Storage.Driver == sqlstore.DriverPostgres {
		pool, err := pgxpool.Connect(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect pgx pool: %w", err)
		}
		s.pool = pool
		loader = pgloader.NewQuestLoader(pool)
	}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.quests = redisstore.NewQuestRepository(s.redis, loader, questTTL)
		s.sessions = redisstore.NewSessionStore(s.redis)
		s.completed = redisstore.NewCompletedCache(s.redis, completedTTL)
	} else {
		s.quests = memory.NewQuestRepository(loader, questTTL)
		s.sessions = memory.NewSessionStore()
		s.completed = memory.NewCompletedCache(completedTTL)
	}

	logger.Info("storage ready", "driver", cfg.Storage.Driver, "redis", s.redis != nil)
	return s, nil
}

// Health pings every backing service in use.
func (s *stack) Health(ctx context.Context) error {
	var errs []error
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *stack) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
