package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// SubscriberStatus mirrors the subscriber_status Postgres enum.
type SubscriberStatus string

const (
	SubscriberStatusPendingConfirmation SubscriberStatus = "pending_confirmation"
	SubscriberStatusConfirmed           SubscriberStatus = "confirmed"
)

// Subscriber is a row of the subscribers table. Email carries a UNIQUE
// constraint, so at most one live subscriber exists per address regardless of
// how many concurrent writers race to create it.
type Subscriber struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Status       SubscriberStatus
	SubscribedAt time.Time
	ConfirmedAt  sql.NullTime
}

// ConfirmationToken is a row of the confirmation_tokens table. The token
// string is the primary key; a subscriber accumulates one row per
// re-submission while pending, and any of them redeems the subscription.
type ConfirmationToken struct {
	Token        string
	SubscriberID uuid.UUID
	CreatedAt    time.Time
}

// DeliveryOutcome classifies a confirmation-email attempt.
type DeliveryOutcome string

const (
	DeliveryOutcomeSent   DeliveryOutcome = "sent"
	DeliveryOutcomeFailed DeliveryOutcome = "failed"
)

// Delivery is a row of the deliveries log. ProviderResponse holds the raw
// JSON body the provider returned on rejection; it is NULL for successes and
// connection-level failures.
type Delivery struct {
	ID               uuid.UUID
	SubscriberID     uuid.UUID
	Recipient        string
	Outcome          DeliveryOutcome
	ProviderStatus   sql.NullInt16
	ProviderResponse pqtype.NullRawMessage
	ErrorMessage     sql.NullString
	AttemptedAt      time.Time
}
