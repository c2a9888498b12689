package artifact

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"splitsheet/internal/services"
)

const (
	linkIssuer   = "splitsheet"
	linkAudience = "artifact-download"
)

// Link is a signed, expiring download grant for one splitsheet.
type Link struct {
	Token        string
	SplitsheetID string
	ExpiresAt    time.Time
}

type linkClaims struct {
	jwt.RegisteredClaims
	Reference string `json:"ref,omitempty"`
}

// Signer issues and verifies HS256 download links.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner builds a Signer. An empty key is a configuration error.
func NewSigner(key string, ttl time.Duration, now func() time.Time) (*Signer, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifact", "signer", "downloads.signing_key is required", nil)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{key: []byte(key), ttl: ttl, now: now}, nil
}

// Sign issues a link for splitsheetID.
func (s *Signer) Sign(splitsheetID, reference string) (Link, error) {
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	claims := linkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    linkIssuer,
			Subject:   splitsheetID,
			Audience:  jwt.ClaimStrings{linkAudience},
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Reference: reference,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Link{}, services.Wrap(services.ErrTransient, "artifact", "sign", "could not sign download link", err)
	}
	return Link{Token: token, SplitsheetID: splitsheetID, ExpiresAt: expires}, nil
}

// Verify checks the signature, audience and expiry and returns the
// splitsheet id the link was issued for.
func (s *Signer) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", services.Wrap(services.ErrUnauthorized, "artifact", "verify", "download link is required", nil)
	}
	var claims linkClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithAudience(linkAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}
	if claims.Subject == "" {
		return "", services.Wrap(services.ErrUnauthorized, "artifact", "verify", "download link has no subject", nil)
	}
	return claims.Subject, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return services.Wrap(services.ErrUnauthorized, "artifact", "verify", "download link expired", nil)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return services.Wrap(services.ErrUnauthorized, "artifact", "verify", "download link signature is invalid", nil)
	default:
		return services.Wrap(services.ErrUnauthorized, "artifact", "verify", "download link is invalid", err)
	}
}
