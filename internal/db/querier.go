package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Querier is the query interface the rest of the application depends on.
// *Queries is the production implementation; tests provide stubs.
type Querier interface {
	// CreateSubscriber inserts a new subscriber in pending_confirmation
	// status. A duplicate email surfaces as a pq unique_violation.
	CreateSubscriber(ctx context.Context, arg CreateSubscriberParams) (Subscriber, error)

	// GetSubscriberByEmail returns sql.ErrNoRows when the address is unknown.
	GetSubscriberByEmail(ctx context.Context, email string) (Subscriber, error)

	// GetSubscriberByToken resolves a confirmation token to its subscriber.
	// Returns sql.ErrNoRows for unknown tokens.
	GetSubscriberByToken(ctx context.Context, token string) (Subscriber, error)

	// InsertConfirmationToken binds a freshly generated token to a subscriber.
	InsertConfirmationToken(ctx context.Context, arg InsertConfirmationTokenParams) (ConfirmationToken, error)

	// ConfirmSubscriber flips the subscriber to confirmed. Idempotent: a
	// second call is a no-op write and confirmed_at keeps its original value.
	ConfirmSubscriber(ctx context.Context, id uuid.UUID) (Subscriber, error)

	// RecordDelivery appends one row to the deliveries log.
	RecordDelivery(ctx context.Context, arg RecordDeliveryParams) (Delivery, error)

	// DeleteExpiredConfirmationTokens removes tokens whose subscriber was
	// confirmed before the cutoff, returning the number of rows deleted.
	DeleteExpiredConfirmationTokens(ctx context.Context, confirmedBefore time.Time) (int64, error)
}

var _ Querier = (*Queries)(nil)
