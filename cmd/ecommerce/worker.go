package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"3tcapital/ms_ecommerce_audit/internal/application/delivery"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/broker"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/logger"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume captured traffic from RabbitMQ and persist it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context())
		},
	}
}

// runWorker returns an error when the delivery stream is lost so the process
// exits non-zero and the supervisor restarts it.
func runWorker(parent context.Context) error {
	ctx, stop, rt, err := bootstrap(parent, "worker")
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

	brokerCfg := broker.ConfigFromSettings(cfg.Broker, cfg.App.Name+"-worker")
	subscriber := broker.NewSubscriber(brokerCfg, logger.Component(log, "subscriber"))
	defer func() {
		if err := subscriber.Close(); err != nil {
			log.Warn("failed to close subscriber", "error", err)
		}
	}()

	consumer := delivery.NewConsumer(subscriber, store.logs, logger.Component(log, "consumer"), delivery.Options{
		PersistTimeout: cfg.Worker.PersistTimeout,
		DeadLetter:     brokerCfg.DeadLettering(),
	})

	log.Info("Starting worker",
		"queue", brokerCfg.Queue,
		"storage", cfg.Storage.Driver,
		"dead_letter_exchange", brokerCfg.DeadLetterExchange,
	)
	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("delivery consumer: %w", err)
	}
	return nil
}
