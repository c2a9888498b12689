package splitsheet

import (
	"math"
	"time"
)

// Participant is one signing party. Only the signature fields change after
// creation.
type Participant struct {
	ID             string     `json:"id"`
	IdentityRef    string     `json:"identity_ref,omitempty"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Address        string     `json:"address,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	IPINumber      string     `json:"ipi_number,omitempty"`
	PROAffiliation string     `json:"pro_affiliation,omitempty"`
	Roles          []Role     `json:"roles"`
	HasSigned      bool       `json:"has_signed"`
	SignatureRef   string     `json:"signature_ref,omitempty"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	// AccessToken is the plaintext signing token. It is populated only on the
	// submission path; storage keeps TokenDigest.
	AccessToken string `json:"-"`
	TokenDigest string `json:"-"`
}

// Totals is the per-category sum of ownership percentages.
type Totals struct {
	Songwriting       float64 `json:"songwriting"`
	Melody            float64 `json:"melody"`
	BeatProduction    float64 `json:"beatProduction"`
	Publishing        float64 `json:"publishing"`
	ExecutiveProducer float64 `json:"executiveProducer"`
}

// Get returns the total for a category name.
func (t Totals) Get(category string) float64 {
	switch category {
	case CategorySongwriting:
		return t.Songwriting
	case CategoryMelody:
		return t.Melody
	case CategoryBeatProduction:
		return t.BeatProduction
	case CategoryPublishing:
		return t.Publishing
	case CategoryExecutiveProducer:
		return t.ExecutiveProducer
	default:
		return 0
	}
}

// Add accumulates pct into category. Unknown categories are ignored.
func (t *Totals) Add(category string, pct float64) {
	switch category {
	case CategorySongwriting:
		t.Songwriting += pct
	case CategoryMelody:
		t.Melody += pct
	case CategoryBeatProduction:
		t.BeatProduction += pct
	case CategoryPublishing:
		t.Publishing += pct
	case CategoryExecutiveProducer:
		t.ExecutiveProducer += pct
	}
}

// AudioFile describes the recording attached to a submission.
type AudioFile struct {
	FileName        string  `json:"file_name"`
	MimeType        string  `json:"mime_type,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// Pricing is the fee charged before the artifact is released.
type Pricing struct {
	BasePrice          float64 `json:"base_price"`
	DiscountPercentage float64 `json:"discount_percentage"`
	FinalPrice         float64 `json:"final_price"`
	Currency           string  `json:"currency,omitempty"`
}

// NewPricing computes the final price rounded to cents.
func NewPricing(base, discount float64, currency string) Pricing {
	final := base * (1 - discount/100)
	final = math.Round(final*100) / 100
	if final < 0 {
		final = 0
	}
	return Pricing{BasePrice: base, DiscountPercentage: discount, FinalPrice: final, Currency: currency}
}

// Free reports whether nothing is owed.
func (p Pricing) Free() bool {
	return p.FinalPrice <= 0
}

// Splitsheet is the aggregate root.
type Splitsheet struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	ReferenceNumber     string        `json:"reference_number"`
	ReferenceDegraded   bool          `json:"reference_degraded,omitempty"`
	WorkCode            string        `json:"work_code,omitempty"`
	WorkCodeProvisional bool          `json:"work_code_provisional,omitempty"`
	Participants        []Participant `json:"participants"`
	Totals              Totals        `json:"category_totals"`
	Status              Status        `json:"status"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	PaymentRef          string        `json:"payment_ref,omitempty"`
	Pricing             Pricing       `json:"pricing"`
	Audio               *AudioFile    `json:"audio,omitempty"`
	AgreementDate       string        `json:"agreement_date,omitempty"`
	WorkID              string        `json:"work_id,omitempty"`
	UPCEAN              string        `json:"upc_ean,omitempty"`
	Notes               string        `json:"notes,omitempty"`
	NotificationsSent   int           `json:"notifications_sent"`
	DownloadCount       int           `json:"download_count"`
	ArtifactURL         string        `json:"artifact_url,omitempty"`
	CreatedBy           string        `json:"created_by"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
}

// SignedCount is derived from participant rows, never stored.
func (s *Splitsheet) SignedCount() int {
	count := 0
	for _, p := range s.Participants {
		if p.HasSigned {
			count++
		}
	}
	return count
}

// TotalParticipants is the number of parties that must sign.
func (s *Splitsheet) TotalParticipants() int {
	return len(s.Participants)
}

// AllSigned reports whether every participant has signed.
func (s *Splitsheet) AllSigned() bool {
	return len(s.Participants) > 0 && s.SignedCount() == len(s.Participants)
}

// CanDownload is true only once the splitsheet is completed and settled.
func (s *Splitsheet) CanDownload() bool {
	return CanDownload(s.Status, s.PaymentStatus)
}

// CanDownload is the release gate shared by every read path.
func CanDownload(status Status, payment PaymentStatus) bool {
	return status == StatusCompleted && payment.Settled()
}

// Participant returns the participant with id.
func (s *Splitsheet) Participant(id string) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i], true
		}
	}
	return nil, false
}
