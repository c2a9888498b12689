package workflow_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"splitsheet/internal/artifact"
	"splitsheet/internal/config"
	"splitsheet/internal/enrich"
	"splitsheet/internal/ledger"
	"splitsheet/internal/logging"
	"splitsheet/internal/notifications"
	"splitsheet/internal/payments"
	"splitsheet/internal/reference"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
	"splitsheet/internal/store"
	"splitsheet/internal/testsupport"
	"splitsheet/internal/workcode"
	"splitsheet/internal/workflow"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type captureChannel struct {
	mu   sync.Mutex
	sent []notifications.Message
	fail map[string]bool
}

func (c *captureChannel) Name() string { return "capture" }

func (c *captureChannel) Send(_ context.Context, msg notifications.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[msg.To] {
		return errors.New("mailbox unavailable")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// brokenContributors fails contributor lookups while keeping sequences and
// identifier records on the real store.
type brokenContributors struct {
	*store.Store
}

func (brokenContributors) ContributorID(context.Context, string) (int, bool, error) {
	return 0, false, errors.New("contributors table locked")
}

// downCounter fails every reference counter call.
type downCounter struct{}

func (downCounter) ReferenceCount(context.Context, string, string) (int, error) {
	return 0, errors.New("counter offline")
}

func (downCounter) ReserveReference(context.Context, string, string, string) error {
	return errors.New("counter offline")
}

// backends overrides the history and counter the harness would otherwise
// take from the store.
type backends struct {
	history workcode.History
	counter reference.Counter
}

type harness struct {
	cfg     *config.Config
	store   *store.Store
	channel *captureChannel
	svc     *workflow.Service
}

func newHarness(t *testing.T, cfgOpts []testsupport.ConfigOption, wire func(*store.Store) backends) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, cfgOpts...)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	var (
		history workcode.History   = st
		counter reference.Counter = st
	)
	if wire != nil {
		b := wire(st)
		if b.history != nil {
			history = b.history
		}
		if b.counter != nil {
			counter = b.counter
		}
	}
	allocator, err := workcode.NewAllocator(history, workcode.Options{
		Country:    cfg.WorkCode.Country,
		Registrant: cfg.WorkCode.Registrant,
		Directory:  workcode.NewDirectory(cfg.WorkCode.Contributors),
		FallbackID: cfg.WorkCode.FallbackContributorID,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	links, err := artifact.NewSigner(cfg.Downloads.SigningKey, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	channel := &captureChannel{fail: map[string]bool{}}

	svc, err := workflow.New(workflow.Dependencies{
		Store:     st,
		Allocator: allocator,
		References: reference.NewGenerator(counter, reference.Options{
			DefaultSuffix: cfg.WorkCode.Country + cfg.WorkCode.Registrant,
			Clock:         clock,
			Logger:        logger,
		}),
		Enricher: enrich.New(nil, enrich.WithLogger(logger)),
		Dispatcher: notifications.NewDispatcher(channel, st, notifications.DispatcherOptions{
			BaseURL: cfg.Notifications.SigningBaseURL,
			Clock:   clock,
			Logger:  logger,
		}),
		Documents: artifact.NewPDFRenderer(cfg.Paths.ArtifactDir, clock),
		Links:     links,
		Policy:    policy,
		Pricing: workflow.Pricing{
			BasePrice:          cfg.Payments.BasePrice,
			DiscountPercentage: cfg.Payments.DiscountPercentage,
			Currency:           cfg.Payments.Currency,
		},
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	return &harness{cfg: cfg, store: st, channel: channel, svc: svc}
}

func threeWriters() []workflow.ParticipantInput {
	return []workflow.ParticipantInput{
		{Name: "Ada Quill", Email: "ada@example.com", Roles: []workflow.RoleInput{{Type: "songwriter", Percentage: 50}}},
		{Name: "Bo Reyes", Email: "bo@example.com", Roles: []workflow.RoleInput{{Type: "songwriter", Percentage: 30}}},
		{Name: "Cy Tan", Email: "cy@example.com", Roles: []workflow.RoleInput{{Type: "songwriter", Percentage: 20}, {Type: "recording_artist"}}},
	}
}

func submitThree(t *testing.T, h *harness) workflow.SubmitResult {
	t.Helper()
	res, err := h.svc.Submit(context.Background(), workflow.SubmitRequest{
		Title:        "Harbour Lights",
		Participants: threeWriters(),
		Audio:        &splitsheet.AudioFile{FileName: "harbour.wav", MimeType: "audio/wav"},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return res
}

func TestSubmitSignFinalizeDownload(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	res := submitThree(t, h)
	sheet := res.Splitsheet
	if sheet.Status != splitsheet.StatusPendingSignatures {
		t.Fatalf("expected pending_signatures, got %s", sheet.Status)
	}
	if sheet.WorkCode != "DM-A0D-25-05-001" {
		t.Fatalf("unexpected work code %q", sheet.WorkCode)
	}
	if sheet.ReferenceNumber != "WM-SS-DMA0D-20250314-001" {
		t.Fatalf("unexpected reference %q", sheet.ReferenceNumber)
	}
	if sheet.PaymentStatus != splitsheet.PaymentPending {
		t.Fatalf("expected pending payment, got %s", sheet.PaymentStatus)
	}
	if got := sheet.Totals.Get(splitsheet.CategorySongwriting); got != 100 {
		t.Fatalf("songwriting total = %v, want 100", got)
	}
	if len(res.Tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(res.Tokens))
	}
	if res.Notifications.Sent != 3 || h.channel.count() != 3 {
		t.Fatalf("expected 3 signing requests, summary %+v, channel %d", res.Notifications, h.channel.count())
	}
	if sheet.Participants[0].Roles[0].EntryID != "WM-SSA-WC-DM-A0D-25-05-001-01" {
		t.Fatalf("unexpected entry id %q", sheet.Participants[0].Roles[0].EntryID)
	}

	ids := []string{sheet.Participants[0].ID, sheet.Participants[1].ID, sheet.Participants[2].ID}
	for _, id := range ids[:2] {
		sheet, err := h.svc.ProcessSignature(ctx, sheet.ID, id, "sig-"+id, time.Time{})
		if err != nil {
			t.Fatalf("ProcessSignature failed: %v", err)
		}
		if sheet.Status != splitsheet.StatusPendingSignatures {
			t.Fatalf("expected pending after partial signatures, got %s", sheet.Status)
		}
	}
	if _, err := h.svc.DownloadLink(ctx, sheet.ID); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition before all signed, got %v", err)
	}

	signed, participantID, err := h.svc.SignWithToken(ctx, res.Tokens[ids[2]], "sig-last")
	if err != nil {
		t.Fatalf("SignWithToken failed: %v", err)
	}
	if participantID != ids[2] {
		t.Fatalf("token resolved to %q, want %q", participantID, ids[2])
	}
	if signed.Status != splitsheet.StatusFullySigned {
		t.Fatalf("expected fully_signed, got %s", signed.Status)
	}
	if signed.CanDownload() {
		t.Fatal("unpaid splitsheet must not be downloadable")
	}

	if _, err := h.svc.Finalize(ctx, sheet.ID); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected finalize to wait for payment, got %v", err)
	}
	if _, err := h.svc.RecordPayment(ctx, sheet.ID, splitsheet.PaymentPaid, "pi_123"); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	location, err := h.svc.Finalize(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	again, err := h.svc.Finalize(ctx, sheet.ID)
	if err != nil || again != location {
		t.Fatalf("second Finalize = %q, %v; want %q", again, err, location)
	}

	link, err := h.svc.DownloadLink(ctx, sheet.ID)
	if err != nil {
		t.Fatalf("DownloadLink failed: %v", err)
	}
	dl, err := h.svc.Download(ctx, link.Token)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	body, err := io.ReadAll(dl.Body)
	dl.Body.Close()
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.HasPrefix(string(body), "%PDF-") {
		t.Fatalf("expected a PDF document, got %q", string(body[:min(len(body), 16)]))
	}
	if dl.FileName != sheet.ReferenceNumber+".pdf" {
		t.Fatalf("unexpected file name %q", dl.FileName)
	}
	if dl.Splitsheet.DownloadCount != 1 {
		t.Fatalf("expected download count 1, got %d", dl.Splitsheet.DownloadCount)
	}
}

func TestSignatureIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	res := submitThree(t, h)
	pid := res.Splitsheet.Participants[0].ID

	first, err := h.svc.ProcessSignature(ctx, res.Splitsheet.ID, pid, "sig-a", fixedNow)
	if err != nil {
		t.Fatalf("first signature: %v", err)
	}
	second, err := h.svc.ProcessSignature(ctx, res.Splitsheet.ID, pid, "sig-b", fixedNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("second signature: %v", err)
	}
	if first.SignedCount() != 1 || second.SignedCount() != 1 {
		t.Fatalf("signed counts %d/%d, want 1/1", first.SignedCount(), second.SignedCount())
	}
	p, _ := second.Participant(pid)
	if p.SignatureRef != "sig-a" {
		t.Fatalf("signature ref overwritten: %q", p.SignatureRef)
	}

	if _, err := h.svc.ProcessSignature(ctx, res.Splitsheet.ID, "nobody", "sig", fixedNow); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown participant, got %v", err)
	}
	if _, _, err := h.svc.SignWithToken(ctx, "not-a-token", "sig"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown token, got %v", err)
	}
}

func TestOverAllocatedLedgerRejectedWithoutWrites(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, workflow.SubmitRequest{
		Title: "Too Much",
		Participants: []workflow.ParticipantInput{
			{Name: "Ada Quill", Email: "ada@example.com", Roles: []workflow.RoleInput{{Type: "songwriter", Percentage: 60}}},
			{Name: "Bo Reyes", Email: "bo@example.com", Roles: []workflow.RoleInput{{Type: "songwriter", Percentage: 50}}},
		},
		Audio: &splitsheet.AudioFile{FileName: "too-much.wav"},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(services.Reason(err), "songwriting") {
		t.Fatalf("reason should name the category: %q", services.Reason(err))
	}

	sheets, err := h.svc.List(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sheets) != 0 {
		t.Fatalf("expected no splitsheets, got %d", len(sheets))
	}
	issued, err := h.store.IssuedIdentifiers(ctx, 10)
	if err != nil {
		t.Fatalf("IssuedIdentifiers failed: %v", err)
	}
	if len(issued) != 0 {
		t.Fatalf("expected no identifiers issued, got %d", len(issued))
	}
	if h.channel.count() != 0 {
		t.Fatalf("expected no notifications, got %d", h.channel.count())
	}
}

func TestCapPolicyAcceptsPartialTotals(t *testing.T) {
	h := newHarness(t, []testsupport.ConfigOption{testsupport.WithLedgerPolicy("cap")}, nil)

	res, err := h.svc.Submit(context.Background(), workflow.SubmitRequest{
		Title: "Draft Split",
		Participants: []workflow.ParticipantInput{
			{Name: "Ada Quill", Email: "ada@example.com", Roles: []workflow.RoleInput{{Type: "songwriter", Percentage: 40}}},
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Splitsheet.WorkCode != "" {
		t.Fatalf("expected no work code without audio, got %q", res.Splitsheet.WorkCode)
	}
	if !strings.HasPrefix(res.Splitsheet.ReferenceNumber, "WM-SS-DMA0D-20250314-") {
		t.Fatalf("expected default suffix reference, got %q", res.Splitsheet.ReferenceNumber)
	}
	if res.Splitsheet.Participants[0].Roles[0].EntryID != "WM-SSA-WC-UNASSIGNED-01" {
		t.Fatalf("unexpected entry id %q", res.Splitsheet.Participants[0].Roles[0].EntryID)
	}
}

func TestSubmitRejectsMalformedWorkCode(t *testing.T) {
	h := newHarness(t, nil, nil)

	_, err := h.svc.Submit(context.Background(), workflow.SubmitRequest{
		Title:        "Bad Code",
		Participants: threeWriters(),
		WorkCode:     "DM-A0D-25-01",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitAcceptsSuppliedWorkCode(t *testing.T) {
	h := newHarness(t, nil, nil)

	res, err := h.svc.Submit(context.Background(), workflow.SubmitRequest{
		Title:        "Supplied Code",
		Participants: threeWriters(),
		WorkCode:     "DM-A0D-24-03-004",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Splitsheet.WorkCode != "DM-A0D-24-03-004" {
		t.Fatalf("unexpected work code %q", res.Splitsheet.WorkCode)
	}
	if got := res.Splitsheet.Participants[0].Roles[0].EntryID; got != "WM-SSA-WC-DM-A0D-24-03-004-01" {
		t.Fatalf("unexpected entry id %q", got)
	}
}

func TestDegradedAllocationStillCreatesSplitsheet(t *testing.T) {
	h := newHarness(t, nil, func(st *store.Store) backends {
		return backends{history: brokenContributors{Store: st}}
	})

	res := submitThree(t, h)
	sheet := res.Splitsheet
	if sheet.WorkCode != "DM-A0D-25-99-001" {
		t.Fatalf("expected fallback contributor work code, got %q", sheet.WorkCode)
	}
	if !sheet.WorkCodeProvisional {
		t.Fatal("expected provisional work code")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a degradation warning")
	}

	highest, err := h.store.HighestContributorID(context.Background())
	if err != nil {
		t.Fatalf("HighestContributorID failed: %v", err)
	}
	if highest == 99 {
		t.Fatal("fallback id must not count as a registered contributor")
	}
}

func TestFallbackReferencesDoNotCollide(t *testing.T) {
	h := newHarness(t, nil, func(*store.Store) backends {
		return backends{counter: downCounter{}}
	})

	first := submitThree(t, h)
	second := submitThree(t, h)
	for _, res := range []workflow.SubmitResult{first, second} {
		if !res.Splitsheet.ReferenceDegraded || !reference.IsFallback(res.Splitsheet.ReferenceNumber) {
			t.Fatalf("expected fallback reference, got %q", res.Splitsheet.ReferenceNumber)
		}
	}
	if first.Splitsheet.ReferenceNumber == second.Splitsheet.ReferenceNumber {
		t.Fatalf("fallback references collided: %q", first.Splitsheet.ReferenceNumber)
	}
	sheets, err := h.svc.List(context.Background(), store.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("expected both submissions stored, got %d", len(sheets))
	}
}

func TestFreeSplitsheetCompletesWithoutPayment(t *testing.T) {
	h := newHarness(t, []testsupport.ConfigOption{testsupport.WithPricing(20, 100)}, nil)
	ctx := context.Background()

	res := submitThree(t, h)
	if res.Splitsheet.PaymentStatus != splitsheet.PaymentFree {
		t.Fatalf("expected free payment, got %s", res.Splitsheet.PaymentStatus)
	}
	for _, p := range res.Splitsheet.Participants {
		if _, err := h.svc.ProcessSignature(ctx, res.Splitsheet.ID, p.ID, "sig", fixedNow); err != nil {
			t.Fatalf("ProcessSignature failed: %v", err)
		}
	}
	if _, err := h.svc.Finalize(ctx, res.Splitsheet.ID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	sheet, err := h.svc.Get(ctx, res.Splitsheet.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !sheet.CanDownload() {
		t.Fatalf("expected downloadable, status %s payment %s", sheet.Status, sheet.PaymentStatus)
	}
}

func TestPaymentEventsApplyOnceAndNeverRegress(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	res := submitThree(t, h)

	declined := payments.Event{
		ID:           "evt_fail",
		Type:         "payment_intent.payment_failed",
		SplitsheetID: res.Splitsheet.ID,
		Status:       splitsheet.PaymentFailed,
		ExternalRef:  "pi_0",
	}
	applied, err := h.svc.ApplyPaymentEvent(ctx, declined)
	if err != nil || !applied {
		t.Fatalf("ApplyPaymentEvent = %v, %v", applied, err)
	}
	if _, err := h.svc.RecordPayment(ctx, res.Splitsheet.ID, splitsheet.PaymentPending, "retry"); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	// A redelivered event must not overwrite the later retry.
	applied, err = h.svc.ApplyPaymentEvent(ctx, declined)
	if err != nil || applied {
		t.Fatalf("replayed event = %v, %v", applied, err)
	}
	sheet, err := h.svc.Get(ctx, res.Splitsheet.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sheet.PaymentStatus != splitsheet.PaymentPending {
		t.Fatalf("replay changed payment to %s", sheet.PaymentStatus)
	}

	paid := payments.Event{
		ID:           "evt_1",
		Type:         "payment_intent.succeeded",
		SplitsheetID: res.Splitsheet.ID,
		Status:       splitsheet.PaymentPaid,
		ExternalRef:  "pi_1",
	}
	if applied, err := h.svc.ApplyPaymentEvent(ctx, paid); err != nil || !applied {
		t.Fatalf("paid event = %v, %v", applied, err)
	}
	if applied, err := h.svc.ApplyPaymentEvent(ctx, paid); err != nil || applied {
		t.Fatalf("replayed paid event = %v, %v", applied, err)
	}

	failed := paid
	failed.ID = "evt_2"
	failed.Type = "payment_intent.payment_failed"
	failed.Status = splitsheet.PaymentFailed
	if _, err := h.svc.ApplyPaymentEvent(ctx, failed); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected regression to be refused, got %v", err)
	}
	sheet, err = h.svc.Get(ctx, res.Splitsheet.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sheet.PaymentStatus != splitsheet.PaymentPaid {
		t.Fatalf("payment regressed to %s", sheet.PaymentStatus)
	}

	ignored, err := h.svc.ApplyPaymentEvent(ctx, payments.Event{ID: "evt_3", Type: "customer.created"})
	if err != nil || ignored {
		t.Fatalf("unrelated event = %v, %v", ignored, err)
	}
}

func TestFailedDeliveryIsReportedNotFatal(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.channel.fail["bo@example.com"] = true

	res := submitThree(t, h)
	if res.Notifications.Failed != 1 || res.Notifications.Sent != 2 {
		t.Fatalf("unexpected summary %+v", res.Notifications)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
	if res.Splitsheet.NotificationsSent != 2 {
		t.Fatalf("expected 2 delivered notifications, got %d", res.Splitsheet.NotificationsSent)
	}
}

func TestStatsCountsLifecycle(t *testing.T) {
	h := newHarness(t, nil, nil)
	submitThree(t, h)

	summary, err := h.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Total != 1 || summary.ByStatus[splitsheet.StatusPendingSignatures] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.IssuedWorkCodes != 1 {
		t.Fatalf("expected one issued work code, got %d", summary.IssuedWorkCodes)
	}
}
