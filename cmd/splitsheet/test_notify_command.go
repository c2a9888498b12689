package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splitsheet/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify <email>",
		Short: "Send a test message through the notification channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			channel, err := notifications.NewChannel(cfg, logger)
			if err != nil {
				return err
			}
			if channel.Name() == "none" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications are disabled; nothing sent")
				return nil
			}
			dispatcher := notifications.NewDispatcher(channel, nil, notifications.DispatcherOptions{
				BaseURL: cfg.Notifications.SigningBaseURL,
				Logger:  logger,
			})
			if err := dispatcher.Test(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent via %s\n", channel.Name())
			return nil
		},
	}
}
