package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"splitsheet/internal/splitsheet"
	"splitsheet/internal/workflow"
)

func newSignCommand(ctx *commandContext) *cobra.Command {
	var (
		token        string
		signatureRef string
		signedAt     string
	)

	cmd := &cobra.Command{
		Use:   "sign [<splitsheet-id> <participant-id>]",
		Short: "Record a participant signature",
		Long:  "Record a signature either by splitsheet and participant id or with --token, the participant's signing token.",
		Args: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(token) != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if raw := strings.TrimSpace(signedAt); raw != "" {
				parsed, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return fmt.Errorf("--signed-at must be RFC3339: %w", err)
				}
				at = parsed
			}
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				var (
					sheet         *splitsheet.Splitsheet
					participantID string
					err           error
				)
				if strings.TrimSpace(token) != "" {
					sheet, participantID, err = svc.SignWithToken(c, token, signatureRef)
				} else {
					participantID = args[1]
					sheet, err = svc.ProcessSignature(c, args[0], participantID, signatureRef, at)
				}
				if err != nil {
					return err
				}
				p, _ := sheet.Participant(participantID)
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Signature recorded for %s\n", p.Name)
				fmt.Fprintf(w, "%d of %d participants signed; status %s\n", sheet.SignedCount(), sheet.TotalParticipants(), sheet.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Participant signing token")
	cmd.Flags().StringVar(&signatureRef, "ref", "", "External signature reference")
	cmd.Flags().StringVar(&signedAt, "signed-at", "", "Signature time (RFC3339, defaults to now)")
	return cmd
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var link bool

	cmd := &cobra.Command{
		Use:   "finalize <splitsheet-id>",
		Short: "Render the agreement and complete a signed, settled splitsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				location, err := svc.Finalize(c, args[0])
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Splitsheet completed\nDocument: %s\n", location)
				if !link {
					return nil
				}
				dl, err := svc.DownloadLink(c, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Download: %s/api/downloads/%s (expires %s)\n",
					strings.TrimRight(cfg.API.PublicURL, "/"), dl.Token, dl.ExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&link, "link", false, "Also issue a signed download link")
	return cmd
}

func newPaymentCommand(ctx *commandContext) *cobra.Command {
	var externalRef string

	cmd := &cobra.Command{
		Use:   "payment <splitsheet-id> <pending|paid|failed|free>",
		Short: "Record a payment status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := splitsheet.ParsePaymentStatus(args[1])
			if !ok {
				return errors.New("payment status must be one of pending, paid, failed, free")
			}
			return ctx.withService(cmd, func(c context.Context, svc *workflow.Service) error {
				sheet, err := svc.RecordPayment(c, args[0], status, externalRef)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Payment %s; downloadable: %s\n", sheet.PaymentStatus, yesNo(sheet.CanDownload()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&externalRef, "ref", "", "Payment provider reference")
	return cmd
}
