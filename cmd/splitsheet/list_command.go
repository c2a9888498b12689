package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"splitsheet/internal/splitsheet"
	"splitsheet/internal/store"
	"splitsheet/internal/workflow"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses  []string
		createdBy string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List splitsheets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ListFilter{CreatedBy: strings.TrimSpace(createdBy), Limit: limit}
			for _, value := range statuses {
				status, ok := splitsheet.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				sheets, err := svc.List(c, filter)
				if err != nil {
					return err
				}
				if asJSON {
					if sheets == nil {
						sheets = []*splitsheet.Splitsheet{}
					}
					return writeJSON(cmd, sheets)
				}
				if len(sheets) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No splitsheets found")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(sheets))
				for _, s := range sheets {
					rows = append(rows, []string{
						s.ReferenceNumber,
						s.Title,
						dashIfEmpty(s.WorkCode),
						statusBadge(s.Status, colorize),
						paymentBadge(s.PaymentStatus, colorize),
						fmt.Sprintf("%d/%d", s.SignedCount(), s.TotalParticipants()),
						s.CreatedAt.Local().Format("2006-01-02 15:04"),
						s.ID,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Reference", "Title", "Work Code", "Status", "Payment", "Signed", "Created", "ID"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Filter by creator")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 for all)")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
