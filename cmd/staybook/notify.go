package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/inbox"
	"staybook/internal/infra/notify"
	infraoutbox "staybook/internal/infra/outbox"
)

func notifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Consume booking and calendar events and send notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())
			return rt.consumeNotifications(cmd.Context())
		},
	}
}

func (rt *runtime) consumeNotifications(ctx context.Context) error {
	if len(rt.cfg.KafkaBrokers) == 0 {
		return errors.New("notify: KAFKA_BROKERS is required")
	}
	var box inbox.Inbox = inbox.NewMemory()
	if rt.mongo != nil {
		store, err := inbox.NewStore(ctx, rt.mongo.DB, rt.cfg.KafkaGroupID)
		if err != nil {
			return fmt.Errorf("inbox store: %w", err)
		}
		box = store
	} else {
		rt.logger.Warn("inbox kept in memory; redelivered events after a restart notify again")
	}
	handler := notify.Handler{
		Inbox:    box,
		Notifier: notify.LogSink{Logger: rt.logger.With("component", "notify")},
		Logger:   rt.logger,
	}
	consumer, err := kafka.NewConsumer(rt.cfg.KafkaBrokers, rt.cfg.KafkaGroupID, nil, handler, rt.logger)
	if err != nil {
		return err
	}
	defer consumer.Close()
	topics := []string{
		infraoutbox.TopicFor(rt.cfg.KafkaTopicPrefix, "booking"),
		infraoutbox.TopicFor(rt.cfg.KafkaTopicPrefix, "calendar"),
	}
	rt.logger.Info("notification consumer starting", "topics", topics, "group", rt.cfg.KafkaGroupID)
	if err := consumer.Run(ctx, topics); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
