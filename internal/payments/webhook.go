package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>".
	SignatureHeader  = "Stripe-Signature"
	defaultTolerance = 300 * time.Second
)

// Event is a verified payment notification reduced to what the workflow
// needs. Status is empty for event types that do not move payment state.
type Event struct {
	ID           string
	Type         string
	SplitsheetID string
	Status       splitsheet.PaymentStatus
	ExternalRef  string
}

// Verifier checks webhook signatures against a shared secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier builds a Verifier. Tolerance <= 0 uses five minutes.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "payments", "verifier", "payments.webhook_secret is required", nil)
	}
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}, nil
}

// Verify authenticates rawBody and decodes it. Bad signatures and stale
// timestamps are unauthorized; a well-signed body that is not a payment event
// is a validation error.
func (v *Verifier) Verify(headers http.Header, rawBody []byte, receivedAt time.Time) (Event, error) {
	timestamp, signatures := parseSignatureHeader(headers.Values(SignatureHeader))
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || ts <= 0 || len(signatures) == 0 {
		return Event{}, services.Wrap(services.ErrUnauthorized, "payments", "verify", "missing or malformed signature header", nil)
	}

	expected := Sign(v.secret, ts, rawBody)
	expectedRaw, _ := hex.DecodeString(expected)
	valid := false
	for _, sigHex := range signatures {
		decoded, err := hex.DecodeString(sigHex)
		if err != nil {
			continue
		}
		if hmac.Equal(expectedRaw, decoded) {
			valid = true
			break
		}
	}
	if !valid {
		return Event{}, services.Wrap(services.ErrUnauthorized, "payments", "verify", "signature mismatch", nil)
	}

	skew := receivedAt.UTC().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return Event{}, services.Wrap(services.ErrUnauthorized, "payments", "verify",
			fmt.Sprintf("timestamp outside tolerance (%s)", skew.Truncate(time.Second)), nil)
	}

	return decodeEvent(rawBody)
}

// Sign returns the hex HMAC-SHA256 of "<ts>.<body>".
func Sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte{'.'})
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header formats a signature header value for tests and local tooling.
func Header(secret string, ts int64, body []byte) string {
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + Sign(secret, ts, body)
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func decodeEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, services.Invalid("body", "payment event is not valid JSON")
	}
	evt := Event{
		ID:           strings.TrimSpace(raw.ID),
		Type:         strings.TrimSpace(raw.Type),
		SplitsheetID: strings.TrimSpace(raw.Data.Object.Metadata["splitsheet_id"]),
		ExternalRef:  strings.TrimSpace(raw.Data.Object.ID),
		Status:       StatusForEvent(strings.TrimSpace(raw.Type)),
	}
	if evt.ID == "" {
		return Event{}, services.Invalid("id", "payment event id is required")
	}
	if evt.Status != "" && evt.SplitsheetID == "" {
		return Event{}, services.Invalid("data.object.metadata.splitsheet_id", "required for payment events")
	}
	return evt, nil
}

// StatusForEvent maps provider event types to payment status. Unknown types
// map to "".
func StatusForEvent(eventType string) splitsheet.PaymentStatus {
	switch eventType {
	case "payment_intent.succeeded", "checkout.session.completed", "charge.succeeded", "invoice.paid":
		return splitsheet.PaymentPaid
	case "payment_intent.payment_failed", "charge.failed", "checkout.session.expired":
		return splitsheet.PaymentFailed
	default:
		return ""
	}
}

func parseSignatureHeader(values []string) (string, []string) {
	joined := strings.TrimSpace(strings.Join(values, ","))
	if joined == "" {
		return "", nil
	}
	var t string
	v1 := make([]string, 0, 2)
	for _, part := range strings.Split(joined, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if k == "t" && t == "" {
			t = val
			continue
		}
		if k == "v1" && val != "" {
			v1 = append(v1, val)
		}
	}
	return t, v1
}
