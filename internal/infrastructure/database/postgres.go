package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"path"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// PostgresConfig turns the settings into a pool configuration. Credentials
// are URL-escaped, so passwords may contain any character.
func PostgresConfig(s config.DatabaseSettings, appName string) (*pgxpool.Config, error) {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:     "/" + s.Database,
		RawQuery: url.Values{"sslmode": {s.SSLMode}}.Encode(),
	}

	cfg, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse postgres settings: %w", err)
	}
	if s.MaxOpenConns > 0 {
		cfg.MaxConns = int32(s.MaxOpenConns)
	}
	if s.MaxIdleConns > 0 {
		cfg.MinConns = int32(s.MaxIdleConns)
	}
	if s.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = s.ConnMaxLifetime
	}
	if appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}
	return cfg, nil
}

// ConnectPostgres opens a pool and pings it once.
func ConnectPostgres(ctx context.Context, s config.DatabaseSettings, appName string) (*pgxpool.Pool, error) {
	cfg, err := PostgresConfig(s, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", cfg.ConnConfig.Host, err)
	}
	return pool, nil
}

// migrationFiles lists the embedded scripts in filename order.
func migrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
			files = append(files, path.Join(migrationsDir, e.Name()))
		}
	}
	return files, nil
}

// RunMigrations applies every embedded script, each in its own transaction.
// Scripts only use IF NOT EXISTS statements and are safe to rerun.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	files, err := migrationFiles()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, file := range files {
		script, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, string(script))
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		log.Debug("migration applied", "file", file)
	}

	log.Info("postgres schema up to date", "migrations", len(files))
	return nil
}
