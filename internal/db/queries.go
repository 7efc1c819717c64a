package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const subscriberColumns = `id, email, name, status, subscribed_at, confirmed_at`

const createSubscriber = `
INSERT INTO subscribers (email, name)
VALUES ($1, $2)
RETURNING ` + subscriberColumns

// CreateSubscriberParams holds the validated identity for a new subscriber.
type CreateSubscriberParams struct {
	Email string
	Name  string
}

func (q *Queries) CreateSubscriber(ctx context.Context, arg CreateSubscriberParams) (Subscriber, error) {
	row := q.queryRow(ctx, q.createSubscriberStmt, createSubscriber, arg.Email, arg.Name)
	return scanSubscriber(row)
}

const getSubscriberByEmail = `
SELECT ` + subscriberColumns + `
FROM subscribers
WHERE email = $1`

func (q *Queries) GetSubscriberByEmail(ctx context.Context, email string) (Subscriber, error) {
	row := q.queryRow(ctx, q.getSubscriberByEmailStmt, getSubscriberByEmail, email)
	return scanSubscriber(row)
}

const getSubscriberByToken = `
SELECT s.id, s.email, s.name, s.status, s.subscribed_at, s.confirmed_at
FROM subscribers s
JOIN confirmation_tokens t ON t.subscriber_id = s.id
WHERE t.token = $1`

func (q *Queries) GetSubscriberByToken(ctx context.Context, token string) (Subscriber, error) {
	row := q.queryRow(ctx, q.getSubscriberByTokenStmt, getSubscriberByToken, token)
	return scanSubscriber(row)
}

const insertConfirmationToken = `
INSERT INTO confirmation_tokens (token, subscriber_id)
VALUES ($1, $2)
RETURNING token, subscriber_id, created_at`

// InsertConfirmationTokenParams binds a token string to the subscriber it
// confirms.
type InsertConfirmationTokenParams struct {
	Token        string
	SubscriberID uuid.UUID
}

func (q *Queries) InsertConfirmationToken(ctx context.Context, arg InsertConfirmationTokenParams) (ConfirmationToken, error) {
	row := q.queryRow(ctx, q.insertConfirmationTokenStmt, insertConfirmationToken, arg.Token, arg.SubscriberID)
	var t ConfirmationToken
	err := row.Scan(&t.Token, &t.SubscriberID, &t.CreatedAt)
	return t, err
}

// COALESCE keeps the original confirmed_at on repeat confirmations, so the
// transition stays one-way and the write is a true no-op the second time.
const confirmSubscriber = `
UPDATE subscribers
SET status = 'confirmed', confirmed_at = COALESCE(confirmed_at, now())
WHERE id = $1
RETURNING ` + subscriberColumns

func (q *Queries) ConfirmSubscriber(ctx context.Context, id uuid.UUID) (Subscriber, error) {
	row := q.queryRow(ctx, q.confirmSubscriberStmt, confirmSubscriber, id)
	return scanSubscriber(row)
}

const recordDelivery = `
INSERT INTO deliveries (subscriber_id, recipient, outcome, provider_status, provider_response, error_message)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, subscriber_id, recipient, outcome, provider_status, provider_response, error_message, attempted_at`

// RecordDeliveryParams describes one confirmation-email attempt.
type RecordDeliveryParams struct {
	SubscriberID     uuid.UUID
	Recipient        string
	Outcome          DeliveryOutcome
	ProviderStatus   int16 // 0 when no HTTP response was received
	ProviderResponse []byte
	ErrorMessage     string
}

func (q *Queries) RecordDelivery(ctx context.Context, arg RecordDeliveryParams) (Delivery, error) {
	row := q.queryRow(ctx, q.recordDeliveryStmt, recordDelivery,
		arg.SubscriberID,
		arg.Recipient,
		arg.Outcome,
		nullInt16(arg.ProviderStatus),
		nullRawMessage(arg.ProviderResponse),
		nullString(arg.ErrorMessage),
	)
	var d Delivery
	err := row.Scan(
		&d.ID,
		&d.SubscriberID,
		&d.Recipient,
		&d.Outcome,
		&d.ProviderStatus,
		&d.ProviderResponse,
		&d.ErrorMessage,
		&d.AttemptedAt,
	)
	return d, err
}

const deleteExpiredConfirmationTokens = `
DELETE FROM confirmation_tokens t
USING subscribers s
WHERE t.subscriber_id = s.id
  AND s.status = 'confirmed'
  AND s.confirmed_at < $1`

func (q *Queries) DeleteExpiredConfirmationTokens(ctx context.Context, confirmedBefore time.Time) (int64, error) {
	res, err := q.exec(ctx, q.deleteExpiredConfirmationTokensStmt, deleteExpiredConfirmationTokens, confirmedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSubscriber(row interface{ Scan(...any) error }) (Subscriber, error) {
	var s Subscriber
	err := row.Scan(&s.ID, &s.Email, &s.Name, &s.Status, &s.SubscribedAt, &s.ConfirmedAt)
	return s, err
}
