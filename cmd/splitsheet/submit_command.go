package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"splitsheet/internal/notifications"
	"splitsheet/internal/workflow"
)

type submitOutput struct {
	ID              string            `json:"id"`
	ReferenceNumber string            `json:"reference_number"`
	WorkCode        string            `json:"work_code,omitempty"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	SigningLinks    map[string]string `json:"signing_links"`
	Sent            int               `json:"notifications_sent"`
	Failed          int               `json:"notifications_failed"`
	Warnings        []string          `json:"warnings,omitempty"`
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "submit <request.json|->",
		Short: "Create a splitsheet from a JSON request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readSubmitRequest(cmd, args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				res, err := svc.Submit(c, req)
				if err != nil {
					return err
				}
				sheet := res.Splitsheet
				out := submitOutput{
					ID:              sheet.ID,
					ReferenceNumber: sheet.ReferenceNumber,
					WorkCode:        sheet.WorkCode,
					Status:          string(sheet.Status),
					PaymentStatus:   string(sheet.PaymentStatus),
					SigningLinks:    make(map[string]string, len(res.Tokens)),
					Sent:            res.Notifications.Sent,
					Failed:          res.Notifications.Failed,
					Warnings:        res.Warnings,
				}
				for _, p := range sheet.Participants {
					out.SigningLinks[p.ID] = notifications.SigningURL(cfg.Notifications.SigningBaseURL, res.Tokens[p.ID])
				}
				if asJSON {
					return writeJSON(cmd, out)
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Created splitsheet %s\n", sheet.ID)
				fmt.Fprintf(w, "Reference: %s\n", sheet.ReferenceNumber)
				if sheet.WorkCode != "" {
					fmt.Fprintf(w, "Work code: %s\n", sheet.WorkCode)
				}
				fmt.Fprintf(w, "Status: %s (payment %s)\n", sheet.Status, sheet.PaymentStatus)
				fmt.Fprintf(w, "Signing requests: %d sent, %d failed\n", res.Notifications.Sent, res.Notifications.Failed)
				rows := make([][]string, 0, len(sheet.Participants))
				for _, p := range sheet.Participants {
					rows = append(rows, []string{p.Name, p.Email, out.SigningLinks[p.ID]})
				}
				fmt.Fprintln(w, renderTable([]string{"Participant", "Email", "Signing Link"}, rows, nil))
				for _, warning := range res.Warnings {
					fmt.Fprintf(w, "warning: %s\n", warning)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func readSubmitRequest(cmd *cobra.Command, source string) (workflow.SubmitRequest, error) {
	var reader io.Reader
	if strings.TrimSpace(source) == "-" {
		reader = cmd.InOrStdin()
	} else {
		file, err := os.Open(source)
		if err != nil {
			return workflow.SubmitRequest{}, fmt.Errorf("open request: %w", err)
		}
		defer file.Close()
		reader = file
	}
	var req workflow.SubmitRequest
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return workflow.SubmitRequest{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}
