// Package webhook verifies and decodes identity-provider webhooks.
//
// Deliveries are signed with the Standard Webhooks scheme used by Svix and
// checked with the Svix client library, which accepts both the "svix-" and
// the "webhook-" header prefixes. The timestamp window is enforced here so the
// clock can be injected.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// DefaultTolerance is the maximum accepted clock skew between the sender's
// timestamp and local time.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("webhook: signing secret not configured")
	// ErrMissingHeaders is returned when id, timestamp, or signature is absent.
	ErrMissingHeaders = errors.New("webhook: missing signature headers")
	// ErrInvalidTimestamp is returned for an unparsable or stale timestamp.
	ErrInvalidTimestamp = errors.New("webhook: invalid or expired timestamp")
	// ErrInvalidSignature is returned when no signature matches.
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

// Verifier checks webhook signatures.
type Verifier struct {
	wh        *svix.Webhook
	Tolerance time.Duration
	Now       func() time.Time
}

// NewVerifier builds a Verifier from a provider secret. The secret may carry
// a "whsec_" prefix; the remainder must be standard base64.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("webhook: decode secret: %w", err)
	}
	return &Verifier{wh: wh, Tolerance: DefaultTolerance, Now: time.Now}, nil
}

// Verify checks the signature headers in h against body.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	ts := header(h, "timestamp")
	if header(h, "id") == "" || ts == "" || header(h, "signature") == "" {
		return ErrMissingHeaders
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	skew := v.Now().Sub(time.Unix(sec, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.Tolerance {
		return ErrInvalidTimestamp
	}

	if err := v.wh.VerifyIgnoringTimestamp(body, h); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Sign returns the "v1,<base64>" signature for a delivery. Senders and tests
// use it to produce valid headers.
func (v *Verifier) Sign(id string, ts time.Time, body []byte) (string, error) {
	return v.wh.Sign(id, ts, body)
}

func header(h http.Header, name string) string {
	if v := h.Get("svix-" + name); v != "" {
		return v
	}
	return h.Get("webhook-" + name)
}

// Event types handled by the service.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event is the envelope of every delivery.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EmailAddress is one entry of a user's address list.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the payload of user.* events. Deleted events only carry ID.
type UserData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	ImageURL              string         `json:"image_url"`
	Deleted               bool           `json:"deleted"`
}

// PrimaryEmail returns the primary address, falling back to the first one.
func (u UserData) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID != "" && e.ID == u.PrimaryEmailAddressID {
			return strings.TrimSpace(e.EmailAddress)
		}
	}
	if len(u.EmailAddresses) > 0 {
		return strings.TrimSpace(u.EmailAddresses[0].EmailAddress)
	}
	return ""
}

// Decode parses a delivery body.
func Decode(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("webhook: decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, errors.New("webhook: event type missing")
	}
	return ev, nil
}

// User decodes the event data as a user payload.
func (e Event) User() (UserData, error) {
	var u UserData
	if err := json.Unmarshal(e.Data, &u); err != nil {
		return UserData{}, fmt.Errorf("webhook: decode user: %w", err)
	}
	if u.ID == "" {
		return UserData{}, errors.New("webhook: user id missing")
	}
	return u, nil
}
