package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"staybook/internal/infra/broker/kafka"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
)

func serveCmd() *cobra.Command {
	var expireEvery time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the expiry sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())
			return rt.serve(cmd.Context(), expireEvery)
		},
	}
	cmd.Flags().DurationVar(&expireEvery, "expire-every", 5*time.Minute, "interval of the pending booking sweep, 0 disables it")
	return cmd
}

func (rt *runtime) serve(ctx context.Context, expireEvery time.Duration) error {
	logger := rt.logger
	handlers := ginserver.Handlers{
		Bookings:     ginserver.BookingHandler{Commands: rt.app.Commands, Queries: rt.app.Queries, Logger: logger},
		Listings:     ginserver.ListingHandler{Commands: rt.app.Commands, Queries: rt.app.Queries, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Queries: rt.app.Queries, Logger: logger},
		Pricing:      ginserver.PricingHandler{Commands: rt.app.Commands, Queries: rt.app.Queries, Logger: logger},
		Calendars:    ginserver.CalendarHandler{Commands: rt.app.Commands, Queries: rt.app.Queries, Logger: logger},
	}
	server := ginserver.NewServer(rt.cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: rt.checks}, handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", rt.cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})

	if rt.outboxStore != nil {
		if len(rt.cfg.KafkaBrokers) == 0 {
			logger.Warn("outbox relay disabled: KAFKA_BROKERS not set")
		} else {
			producer, err := kafka.NewProducer(rt.cfg.KafkaBrokers, nil)
			if err != nil {
				return err
			}
			defer producer.Close()
			worker := &infraoutbox.Worker{
				Store:       rt.outboxStore,
				Producer:    producer,
				Interval:    rt.cfg.OutboxPollInterval,
				TopicPrefix: rt.cfg.KafkaTopicPrefix,
				Backoff:     rt.cfg.RetryBackoff,
				MaxAttempts: rt.cfg.OutboxMaxAttempts,
				Logger:      logger.With("component", "outbox"),
			}
			g.Go(func() error {
				if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}

	if expireEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(expireEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if _, err := rt.expirePending(gctx, 0); err != nil {
						logger.Warn("pending booking sweep failed", "error", err)
					}
				}
			}
		})
	}

	err := g.Wait()
	logger.Info("HTTP server stopped")
	return err
}
