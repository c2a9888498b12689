package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"golang.org/x/sync/errgroup"

	"splitsheet/internal/logging"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

// SigningSubject is the subject line of every signing request.
const SigningSubject = "Splitsheet Signature Request"

// Record is the durable trace of one signing request. It is created once and
// updated once when delivery succeeds.
type Record struct {
	SplitsheetID  string
	ParticipantID string
	TokenDigest   string
	EmailSent     bool
	SentAt        *time.Time
}

// RecordStore persists notification records. CreateNotification must return
// services.ErrConflict when the pair already has a record.
type RecordStore interface {
	CreateNotification(ctx context.Context, rec Record) error
	MarkNotificationSent(ctx context.Context, splitsheetID, participantID string, sentAt time.Time) error
}

// Summary reports the outcome of one fan-out.
type Summary struct {
	Attempted int
	Sent      int
	Failed    int
	Skipped   int
	Failures  map[string]string
}

// Err returns a partial-delivery error when any send failed.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return services.Wrap(services.ErrPartialDelivery, "notifications", "dispatch",
		fmt.Sprintf("%d of %d signing requests failed", s.Failed, s.Attempted), nil)
}

var bodyTemplate = template.Must(template.New("signing").Parse(`Dear {{.Name}},

You have been assigned to the splitsheet "{{.Title}}" (reference {{.Reference}}) and your signature is required.

Your roles:
{{- range .Roles}}
  - {{.Label}}: {{.Percentage}}%
{{- end}}

Review and sign here:
{{.URL}}

All participants must sign before the splitsheet becomes active. Once it is
fully signed and settled, the final document can be downloaded.
`))

type bodyRole struct {
	Label      string
	Percentage string
}

type bodyData struct {
	Name      string
	Title     string
	Reference string
	URL       string
	Roles     []bodyRole
}

// SigningURL is the link a participant follows to sign.
func SigningURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/splitsheet-sign/" + token
}

// Dispatcher creates a notification record for every participant and asks the
// channel to deliver the signing link. A failed send never blocks the others.
type Dispatcher struct {
	channel     Channel
	records     RecordStore
	baseURL     string
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	BaseURL     string
	Concurrency int
	Clock       func() time.Time
	Logger      *slog.Logger
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(channel Channel, records RecordStore, opts DispatcherOptions) *Dispatcher {
	if channel == nil {
		channel = noopChannel{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Dispatcher{
		channel:     channel,
		records:     records,
		baseURL:     opts.BaseURL,
		concurrency: opts.Concurrency,
		now:         opts.Clock,
		logger:      logging.NewComponentLogger(opts.Logger, "notifications"),
	}
}

// Channel exposes the configured channel.
func (d *Dispatcher) Channel() Channel {
	return d.channel
}

// Dispatch fans out signing requests for sheet. Participants must carry their
// plaintext access token. Participants that already have a record are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, sheet *splitsheet.Splitsheet) Summary {
	summary := Summary{Failures: map[string]string{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i := range sheet.Participants {
		p := sheet.Participants[i]
		g.Go(func() error {
			outcome, err := d.deliver(gctx, sheet, p)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSkipped:
				summary.Skipped++
				return nil
			case outcomeSent:
				summary.Attempted++
				summary.Sent++
			default:
				summary.Attempted++
				summary.Failed++
				summary.Failures[p.ID] = err.Error()
				logging.WarnWithContext(d.logger, "signing request not delivered", "notification_failed",
					logging.Error(err),
					logging.String(logging.FieldSplitsheetID, sheet.ID),
					logging.String(logging.FieldParticipantID, p.ID),
					logging.String(logging.FieldErrorHint, "run test-notify to check the channel"),
					logging.String(logging.FieldImpact, "participant has not received a signing link"),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("signing requests dispatched",
		logging.String(logging.FieldSplitsheetID, sheet.ID),
		logging.String("channel", d.channel.Name()),
		logging.Int("attempted", summary.Attempted),
		logging.Int("sent", summary.Sent),
		logging.Int("failed", summary.Failed),
	)
	return summary
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSent
	outcomeSkipped
)

func (d *Dispatcher) deliver(ctx context.Context, sheet *splitsheet.Splitsheet, p splitsheet.Participant) (outcome, error) {
	if p.AccessToken == "" {
		return outcomeFailed, errors.New("participant has no access token")
	}
	if d.records != nil {
		err := d.records.CreateNotification(ctx, Record{
			SplitsheetID:  sheet.ID,
			ParticipantID: p.ID,
			TokenDigest:   p.TokenDigest,
		})
		if errors.Is(err, services.ErrConflict) {
			return outcomeSkipped, nil
		}
		if err != nil {
			return outcomeFailed, fmt.Errorf("create notification record: %w", err)
		}
	}

	msg, err := d.Compose(sheet, p)
	if err != nil {
		return outcomeFailed, err
	}
	if err := d.channel.Send(ctx, msg); err != nil {
		return outcomeFailed, err
	}
	if d.records != nil {
		if err := d.records.MarkNotificationSent(ctx, sheet.ID, p.ID, d.now().UTC()); err != nil {
			return outcomeFailed, fmt.Errorf("mark notification sent: %w", err)
		}
	}
	return outcomeSent, nil
}

// Compose renders the signing request for one participant.
func (d *Dispatcher) Compose(sheet *splitsheet.Splitsheet, p splitsheet.Participant) (Message, error) {
	data := bodyData{
		Name:      p.Name,
		Title:     sheet.Title,
		Reference: sheet.ReferenceNumber,
		URL:       SigningURL(d.baseURL, p.AccessToken),
	}
	for _, role := range p.Roles {
		data.Roles = append(data.Roles, bodyRole{
			Label:      strings.ToUpper(strings.ReplaceAll(string(role.Type), "_", " ")),
			Percentage: fmt.Sprintf("%g", role.Percentage),
		})
	}
	var body strings.Builder
	if err := bodyTemplate.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render signing request: %w", err)
	}
	return Message{
		To:      p.Email,
		Subject: SigningSubject,
		Body:    body.String(),
		Tags:    []string{"splitsheet", "signature"},
	}, nil
}

// Test sends a one-off message through the channel.
func (d *Dispatcher) Test(ctx context.Context, to string) error {
	return d.channel.Send(ctx, Message{
		To:      to,
		Subject: "Splitsheet - Test",
		Body:    "Notification channel test",
		Tags:    []string{"splitsheet", "test"},
	})
}
