// Package email defines the interface for transactional email delivery and
// provides a client for SendGrid-compatible HTTP APIs.
package email

import (
	"context"
	"fmt"

	"github.com/perchpress/newsletter-backend/internal/domain"
)

// ConfirmationParams holds the data needed to send a confirmation email.
type ConfirmationParams struct {
	To    domain.SubscriberEmail
	Name  domain.SubscriberName
	Token string // opaque confirmation token, inserted into the link
}

// Sender is the interface the subscribe handler uses to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// SendConfirmation delivers the double-opt-in email carrying the
	// confirmation link. Exactly one outbound request per call; failures are
	// returned as *DeliveryError and never retried here.
	SendConfirmation(ctx context.Context, p ConfirmationParams) error
}

// ─── DELIVERY ERRORS ─────────────────────────────────────────────────────────

// DeliveryErrorKind classifies how a send attempt failed.
type DeliveryErrorKind string

const (
	// KindNetwork is a connection-level failure before any response arrived.
	KindNetwork DeliveryErrorKind = "network"
	// KindTimeout means the configured request budget elapsed.
	KindTimeout DeliveryErrorKind = "timeout"
	// KindProviderRejected means the provider answered with a non-2xx status.
	KindProviderRejected DeliveryErrorKind = "provider_rejected"
)

// DeliveryError is the typed failure surfaced by Sender implementations.
// StatusCode and Body are populated only for KindProviderRejected; Body is
// truncated and safe to persist in the deliveries log. The error text never
// contains the API credential.
type DeliveryError struct {
	Kind       DeliveryErrorKind
	StatusCode int
	Body       []byte
	Err        error // underlying transport error, nil for provider rejections
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case KindProviderRejected:
		return fmt.Sprintf("email: provider rejected send with status %d", e.StatusCode)
	case KindTimeout:
		return "email: send timed out"
	default:
		return fmt.Sprintf("email: send failed: %v", e.Err)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }
