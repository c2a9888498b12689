package payments_test

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"splitsheet/internal/payments"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

const secret = "whsec_test"

var body = []byte(`{"id":"evt_123","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","metadata":{"splitsheet_id":"sheet-1"}}}}`)

func signed(ts int64, payload []byte) http.Header {
	h := http.Header{}
	h.Set(payments.SignatureHeader, payments.Header(secret, ts, payload))
	return h
}

func TestVerifyValidSignature(t *testing.T) {
	v, err := payments.NewVerifier(secret, 300*time.Second)
	if err != nil {
		t.Fatalf("NewVerifier error: %v", err)
	}
	ts := int64(1_700_000_000)
	evt, err := v.Verify(signed(ts, body), body, time.Unix(ts+2, 0))
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if evt.ID != "evt_123" || evt.SplitsheetID != "sheet-1" || evt.ExternalRef != "pi_9" {
		t.Fatalf("unexpected event: %#v", evt)
	}
	if evt.Status != splitsheet.PaymentPaid {
		t.Fatalf("expected paid, got %q", evt.Status)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v, _ := payments.NewVerifier(secret, 0)
	ts := int64(1_700_000_000)
	tampered := []byte(`{"id":"evt_123","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","metadata":{"splitsheet_id":"sheet-2"}}}}`)
	_, err := v.Verify(signed(ts, body), tampered, time.Unix(ts, 0))
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	v, _ := payments.NewVerifier(secret, 300*time.Second)
	ts := int64(1_700_000_000)
	_, err := v.Verify(signed(ts, body), body, time.Unix(ts+301, 0))
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyMissingHeader(t *testing.T) {
	v, _ := payments.NewVerifier(secret, 0)
	_, err := v.Verify(http.Header{}, body, time.Now())
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyAcceptsAnyMatchingV1(t *testing.T) {
	v, _ := payments.NewVerifier(secret, 0)
	ts := int64(1_700_000_000)
	h := http.Header{}
	h.Set(payments.SignatureHeader, "t="+strconv.FormatInt(ts, 10)+",v1=deadbeef,v1="+payments.Sign(secret, ts, body))
	if _, err := v.Verify(h, body, time.Unix(ts, 0)); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestUnknownEventTypeHasNoStatus(t *testing.T) {
	v, _ := payments.NewVerifier(secret, 0)
	ts := int64(1_700_000_000)
	payload := []byte(`{"id":"evt_2","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	evt, err := v.Verify(signed(ts, payload), payload, time.Unix(ts, 0))
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if evt.Status != "" {
		t.Fatalf("expected no status, got %q", evt.Status)
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := payments.NewVerifier(" ", 0); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
