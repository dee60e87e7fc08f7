package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/persistence/migrations"
)

// RunMigrations applies the embedded SQL migrations through goose. The
// schema-level uniqueness constraints created here are the authoritative
// guards for duplicate emails and category names; application pre-checks are
// only a fast path.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close() //nolint:errcheck

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	logger.Info("migrations applied")
	return nil
}
