package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	mongoproduct "3tcapital/ms_ecommerce_audit/internal/adapters/product/mongo"
	pgproduct "3tcapital/ms_ecommerce_audit/internal/adapters/product/postgres"
	mongolog "3tcapital/ms_ecommerce_audit/internal/adapters/requestlog/mongo"
	pglog "3tcapital/ms_ecommerce_audit/internal/adapters/requestlog/postgres"
	apphealth "3tcapital/ms_ecommerce_audit/internal/application/health"
	"3tcapital/ms_ecommerce_audit/internal/core/product"
	"3tcapital/ms_ecommerce_audit/internal/core/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/database"
)

// storage holds the repositories for the configured driver.
type storage struct {
	logs     requestlog.Repository
	products product.Repository
	check    apphealth.Check
	close    func()
}

// openStorage connects to the configured backend, bootstraps its schema once
// and builds the repositories on top of it.
func openStorage(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		return openPostgres(ctx, cfg, log)
	default:
		return openMongo(ctx, cfg, log)
	}
}

func openMongo(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (*storage, error) {
	client, db, err := database.ConnectMongo(ctx, database.MongoConfigFromSettings(cfg.Mongo, cfg.App.Name))
	if err != nil {
		return nil, err
	}
	if err := database.BootstrapMongo(ctx, db, log); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("bootstrap mongo: %w", err)
	}
	log.Info("Mongo storage ready", "database", cfg.Mongo.Database)

	return &storage{
		logs:     mongolog.NewRepository(db, log),
		products: mongoproduct.NewRepository(db),
		check: apphealth.Check{
			Name:  "mongo",
			Probe: func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		},
		close: func() { disconnectMongo(client, log) },
	}, nil
}

func disconnectMongo(client *mongo.Client, log *slog.Logger) {
	if err := client.Disconnect(context.Background()); err != nil {
		log.Warn("failed to disconnect mongo", "error", err)
	}
}

func openPostgres(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (*storage, error) {
	pool, err := database.ConnectPostgres(ctx, cfg.Database, cfg.App.Name)
	if err != nil {
		return nil, err
	}
	if err := database.BootstrapPostgres(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}
	log.Info("Postgres storage ready", "host", cfg.Database.Host, "database", cfg.Database.Database)

	return &storage{
		logs:     pglog.NewRepository(pool, log),
		products: pgproduct.NewRepository(pool),
		check: apphealth.Check{
			Name:  "postgres",
			Probe: pool.Ping,
		},
		close: pool.Close,
	}, nil
}
