package database

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// Schema bootstrap runs at most once per process, before any repository is
// built. Concurrent first callers wait for the single run and share its result.
var (
	mongoOnce    sync.Once
	mongoErr     error
	postgresOnce sync.Once
	postgresErr  error
)

// BootstrapMongo creates the collection indexes.
func BootstrapMongo(ctx context.Context, db *mongo.Database, log *slog.Logger) error {
	mongoOnce.Do(func() {
		log.Info("Ensuring mongo indexes", "database", db.Name())
		mongoErr = ensureMongoIndexes(ctx, db)
	})
	return mongoErr
}

// BootstrapPostgres applies the embedded migrations.
func BootstrapPostgres(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	postgresOnce.Do(func() {
		postgresErr = RunMigrations(ctx, pool, log)
	})
	return postgresErr
}
