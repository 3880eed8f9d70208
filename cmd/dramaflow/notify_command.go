package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dramaflow/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fprintf(out, "Notification not sent: notifications.ntfy_topic is not configured\n")
				return nil
			}
			timeout := time.Duration(cfg.Notifications.RequestTimeout+5) * time.Second
			sendCtx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := notifications.NewService(cfg).Publish(sendCtx, notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fprintf(out, "Test notification sent\n")
			return nil
		},
	})
	return notifyCmd
}
