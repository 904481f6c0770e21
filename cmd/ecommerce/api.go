package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	httphealth "3tcapital/ms_ecommerce_audit/internal/adapters/http/health"
	httpproduct "3tcapital/ms_ecommerce_audit/internal/adapters/http/product"
	httprequestlog "3tcapital/ms_ecommerce_audit/internal/adapters/http/requestlog"
	apphealth "3tcapital/ms_ecommerce_audit/internal/application/health"
	appproduct "3tcapital/ms_ecommerce_audit/internal/application/product"
	apprequestlog "3tcapital/ms_ecommerce_audit/internal/application/requestlog"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/broker"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/http/server"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/logger"
)

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the product API and publish captured traffic to RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAPI(cmd.Context())
		},
	}
}

func runAPI(parent context.Context) error {
	ctx, stop, rt, err := bootstrap(parent, "api")
	if err != nil {
		return err
	}
	defer stop()
	cfg, log := rt.cfg, rt.log

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.close()

	publisher := broker.NewPublisher(broker.ConfigFromSettings(cfg.Broker, cfg.App.Name+"-api"), logger.Component(log, "publisher"))
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("failed to close publisher", "error", err)
		}
	}()
	// The API serves traffic with the broker down; capture degrades to logged publish failures.
	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.Audit.PublishTimeout)
	err = publisher.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		log.Warn("RabbitMQ not reachable at startup, publishing will retry lazily", "error", err)
	}

	healthService := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, store.check, apphealth.Check{
		Name: "rabbitmq",
		Probe: func(context.Context) error {
			if publisher.BreakerState() == broker.BreakerOpen {
				return broker.ErrCircuitOpen
			}
			return nil
		},
	})

	productHandler := httpproduct.NewHandler(appproduct.NewService(store.products), log)
	logHandler := httprequestlog.NewHandler(apprequestlog.NewService(store.logs), log)

	srv, err := server.New(server.Options{
		Config:        cfg,
		Logger:        log,
		HealthHandler: http.HandlerFunc(httphealth.NewHandler(healthService).Status),
		ProductRoutes: productHandler.Routes,
		LogRoutes:     logHandler.Routes,
		Publisher:     publisher,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.Close()

	log.Info("Starting API",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Driver,
		"audit_enabled", cfg.Audit.Enabled,
		"auth_enabled", cfg.Auth.Enabled,
	)
	return srv.Run(ctx)
}
