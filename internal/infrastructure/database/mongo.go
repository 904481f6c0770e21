package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
)

const (
	// LogsCollection holds captured HTTP exchanges.
	LogsCollection = "http_logs"
	// ProductsCollection holds the product catalog.
	ProductsCollection = "products"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	AppName        string
}

// MongoConfigFromSettings maps application settings onto a MongoConfig.
func MongoConfigFromSettings(s config.MongoSettings, appName string) MongoConfig {
	return MongoConfig{
		URI:            s.URI,
		Database:       s.Database,
		ConnectTimeout: s.ConnectTimeout,
		AppName:        appName,
	}
}

// ConnectMongo opens a client and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// mongoIndexes lists the indexes created on first start.
func mongoIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		LogsCollection: {
			{Keys: bson.D{{Key: "timestampUtc", Value: -1}}, Options: options.Index().SetName("timestampUtc_desc")},
			{Keys: bson.D{{Key: "traceId", Value: 1}}, Options: options.Index().SetName("traceId")},
			{Keys: bson.D{{Key: "statusCode", Value: 1}, {Key: "timestampUtc", Value: -1}}, Options: options.Index().SetName("statusCode_timestampUtc")},
		},
		ProductsCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetName("name")},
		},
	}
}

func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, models := range mongoIndexes() {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
