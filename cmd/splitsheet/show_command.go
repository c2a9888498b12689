package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"splitsheet/internal/splitsheet"
	"splitsheet/internal/workflow"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <splitsheet-id>",
		Short: "Show one splitsheet with its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				sheet, err := svc.Get(c, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, sheet)
				}
				printSplitsheet(cmd, sheet)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func printSplitsheet(cmd *cobra.Command, sheet *splitsheet.Splitsheet) {
	w := cmd.OutOrStdout()
	colorize := shouldColorize(w)

	for _, line := range renderSectionHeader(sheet.Title, colorize) {
		fmt.Fprintln(w, line)
	}
	workCode := dashIfEmpty(sheet.WorkCode)
	if sheet.WorkCodeProvisional {
		workCode += " (provisional)"
	}
	reference := sheet.ReferenceNumber
	if sheet.ReferenceDegraded {
		reference += " (fallback)"
	}
	fields := [][2]string{
		{"ID", sheet.ID},
		{"Reference", reference},
		{"Work code", workCode},
		{"Status", statusBadge(sheet.Status, colorize)},
		{"Payment", fmt.Sprintf("%s (%.2f %s)", paymentBadge(sheet.PaymentStatus, colorize), sheet.Pricing.FinalPrice, strings.ToUpper(sheet.Pricing.Currency))},
		{"Signed", fmt.Sprintf("%d of %d", sheet.SignedCount(), sheet.TotalParticipants())},
		{"Notifications", fmt.Sprintf("%d delivered", sheet.NotificationsSent)},
		{"Downloadable", yesNo(sheet.CanDownload())},
		{"Downloads", fmt.Sprintf("%d", sheet.DownloadCount)},
		{"Created", sheet.CreatedAt.Local().Format("2006-01-02 15:04:05")},
	}
	if sheet.AgreementDate != "" {
		fields = append(fields, [2]string{"Agreement date", sheet.AgreementDate})
	}
	if sheet.ArtifactURL != "" {
		fields = append(fields, [2]string{"Document", sheet.ArtifactURL})
	}
	for _, f := range fields {
		fmt.Fprintf(w, "%-16s %s\n", f[0]+":", f[1])
	}

	rows := make([][]string, 0, len(sheet.Participants))
	for _, p := range sheet.Participants {
		roles := make([]string, 0, len(p.Roles))
		for _, r := range p.Roles {
			roles = append(roles, fmt.Sprintf("%s %g%%", r.Type, r.Percentage))
		}
		rows = append(rows, []string{p.Name, p.Email, strings.Join(roles, ", "), yesNo(p.HasSigned), p.ID})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable([]string{"Participant", "Email", "Roles", "Signed", "ID"}, rows, nil))

	totals := make([][]string, 0, len(splitsheet.Categories))
	for _, category := range splitsheet.Categories {
		totals = append(totals, []string{category, fmt.Sprintf("%.2f%%", sheet.Totals.Get(category))})
	}
	fmt.Fprintln(w, renderTable([]string{"Category", "Total"}, totals, []columnAlignment{alignLeft, alignRight}))
}
