/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/cinevault/apiserver/internal/mq"
	"github.com/cinevault/apiserver/internal/notify"
	"github.com/cinevault/apiserver/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// notifyCmd consumes signup events and emits confirmation links.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume user.registered events and log confirmation links",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		queue, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("notify requires MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer func() { _ = queue.Close() }()

		notifier := notify.NewConfirmationNotifier(cfg.PublicBaseURL, log)
		log.Info("waiting for events", zap.String("channel", services.EventUserRegistered))
		err = queue.Subscribe(ctx, services.EventUserRegistered, notifier.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
