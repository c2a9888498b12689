package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"splitsheet/internal/splitsheet"
	"splitsheet/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration health and splitsheet counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				summary, err := svc.Stats(c)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				colorize := shouldColorize(w)

				for _, line := range renderSectionHeader("Services", colorize) {
					fmt.Fprintln(w, line)
				}
				channel := svc.Dispatcher().Channel().Name()
				channelKind := statusOK
				if channel == "none" {
					channelKind = statusWarn
				}
				fmt.Fprintln(w, renderStatusLine("Notifications", channelKind, channel, colorize))
				fmt.Fprintln(w, renderStatusLine("Ledger policy", statusInfo, string(svc.Policy()), colorize))

				counters := "sqlite"
				if strings.TrimSpace(cfg.Storage.CountersDSN) != "" {
					counters = "postgres"
				}
				fmt.Fprintln(w, renderStatusLine("Counters", statusInfo, counters, colorize))

				if cfg.Payments.WebhookSecret != "" {
					fmt.Fprintln(w, renderStatusLine("Payment webhook", statusOK, "verifying signatures", colorize))
				} else {
					fmt.Fprintln(w, renderStatusLine("Payment webhook", statusWarn, "webhook_secret not set", colorize))
				}
				if cfg.Downloads.SigningKey != "" {
					fmt.Fprintln(w, renderStatusLine("Downloads", statusOK, fmt.Sprintf("links valid %dm", cfg.Downloads.LinkTTLMinutes), colorize))
				} else {
					fmt.Fprintln(w, renderStatusLine("Downloads", statusWarn, "signing_key not set", colorize))
				}
				if cfg.API.Token == "" {
					fmt.Fprintln(w, renderStatusLine("API token", statusWarn, "operator routes are open", colorize))
				}

				fmt.Fprintln(w)
				for _, line := range renderSectionHeader("Splitsheets", colorize) {
					fmt.Fprintln(w, line)
				}
				if summary.Total == 0 {
					fmt.Fprintln(w, "No splitsheets yet")
				} else {
					rows := make([][]string, 0, len(splitsheet.AllStatuses()))
					for _, status := range splitsheet.AllStatuses() {
						rows = append(rows, []string{statusBadge(status, colorize), fmt.Sprintf("%d", summary.ByStatus[status])})
					}
					rows = append(rows, []string{"total", fmt.Sprintf("%d", summary.Total)})
					fmt.Fprintln(w, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				}
				fmt.Fprintln(w, renderStatusLine("Awaiting payment", statusInfo, fmt.Sprintf("%d", summary.AwaitingPayment), colorize))
				fmt.Fprintln(w, renderStatusLine("Downloads", statusInfo, fmt.Sprintf("%d", summary.Downloads), colorize))
				fmt.Fprintln(w, renderStatusLine("Undelivered", statusInfo, fmt.Sprintf("%d", summary.PendingDelivery), colorize))
				fmt.Fprintln(w, renderStatusLine("Work codes issued", statusInfo, fmt.Sprintf("%d", summary.IssuedWorkCodes), colorize))
				degradedKind := statusOK
				if summary.DegradedWorkCodes > 0 {
					degradedKind = statusWarn
				}
				fmt.Fprintln(w, renderStatusLine("Provisional codes", degradedKind, fmt.Sprintf("%d", summary.DegradedWorkCodes), colorize))
				return nil
			})
		},
	}
}
