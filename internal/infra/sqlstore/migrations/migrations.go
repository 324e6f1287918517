package migrations

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

var (
	//go:embed 0001_init.pg.sql
	initPostgresSQL string
	//go:embed 0001_init.sqlite.sql
	initSQLiteSQL string
)

const dropAllSQL = `
DROP TABLE IF EXISTS quest_scores;
DROP TABLE IF EXISTS quest_lines;
DROP TABLE IF EXISTS quests;
DROP TABLE IF EXISTS registrants;
`

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.Add(migrate.Migration{
		Name:    "20251025000001",
		Comment: "create_registrants_quests_scores",
		Up: func(ctx context.Context, db *bun.DB) error {
			ddl, err := initSQL(db)
			if err != nil {
				return err
			}
			_, err = db.ExecContext(ctx, ddl)
			return err
		},
		Down: func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, dropAllSQL)
			return err
		},
	})
}

func initSQL(db *bun.DB) (string, error) {
	switch db.Dialect().Name() {
	case dialect.PG:
		return initPostgresSQL, nil
	case dialect.SQLite:
		return initSQLiteSQL, nil
	default:
		return "", fmt.Errorf("no migrations for dialect %s", db.Dialect().Name())
	}
}

// Apply creates the migration bookkeeping tables and runs pending migrations.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return group, nil
}
