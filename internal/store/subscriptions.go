package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/perchpress/newsletter-backend/internal/db"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// StartSubscriptionParams carries a validated identity and a freshly
// generated confirmation token. The caller (the subscribe handler) owns token
// generation so the store stays deterministic.
type StartSubscriptionParams struct {
	Email string
	Name  string
	Token string
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrAlreadyConfirmed is returned by StartSubscription when the email address
// already belongs to a confirmed subscriber. The handler treats this as
// idempotent success and must not send another confirmation email.
var ErrAlreadyConfirmed = errors.New("store: subscriber already confirmed")

// ErrTokenNotFound is returned by ConfirmSubscription when the token does not
// exist. A client-facing failure: the token is forged, mistyped, or was
// pruned long after its subscriber confirmed.
var ErrTokenNotFound = errors.New("store: confirmation token not found")

// ─── METHODS ─────────────────────────────────────────────────────────────────

// StartSubscription is the persistence half of the subscribe operation. It
// atomically:
//
//  1. Looks up the subscriber by email.
//  2. Creates a pending_confirmation row if none exists; reuses the existing
//     row if it is still pending, so re-submission never duplicates.
//  3. Inserts the new confirmation token bound to the subscriber.
//
// If the subscriber is already confirmed, ErrAlreadyConfirmed is returned
// with the existing row and no token is written.
//
// Everything is committed before the caller attempts email delivery, so a
// confirmation link only ever references a token that is already redeemable.
//
// Two concurrent first submissions for the same address race on the email
// UNIQUE constraint; the loser's transaction aborts with a write conflict and
// is re-run once here, landing on the winner's pending row.
func (s *Store) StartSubscription(ctx context.Context, p StartSubscriptionParams) (db.Subscriber, error) {
	subscriber, err := s.startSubscription(ctx, p)
	if isWriteConflict(err) {
		subscriber, err = s.startSubscription(ctx, p)
	}
	return subscriber, err
}

func (s *Store) startSubscription(ctx context.Context, p StartSubscriptionParams) (db.Subscriber, error) {
	var subscriber db.Subscriber

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := q.GetSubscriberByEmail(ctx, p.Email)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created, err := q.CreateSubscriber(ctx, db.CreateSubscriberParams{
				Email: p.Email,
				Name:  p.Name,
			})
			if err != nil {
				return fmt.Errorf("StartSubscription: create subscriber: %w", err)
			}
			subscriber = created
		case err != nil:
			return fmt.Errorf("StartSubscription: get subscriber: %w", err)
		case existing.Status == db.SubscriberStatusConfirmed:
			subscriber = existing
			return ErrAlreadyConfirmed
		default:
			// Still pending: re-issue against the existing row.
			subscriber = existing
		}

		if _, err := q.InsertConfirmationToken(ctx, db.InsertConfirmationTokenParams{
			Token:        p.Token,
			SubscriberID: subscriber.ID,
		}); err != nil {
			return fmt.Errorf("StartSubscription: insert token: %w", err)
		}
		return nil
	})

	// Unwrap the sentinel so callers can check with errors.Is without the
	// zero-value subscriber being lost.
	if errors.Is(err, ErrAlreadyConfirmed) {
		return subscriber, ErrAlreadyConfirmed
	}
	if err != nil {
		return db.Subscriber{}, err
	}
	return subscriber, nil
}

// ConfirmSubscription redeems a confirmation token. It atomically resolves
// the token to its subscriber and flips the status to confirmed. The
// transition is one-way and idempotent: redeeming any token for an
// already-confirmed subscriber succeeds with no effect beyond a no-op write.
//
// Two simultaneous clicks on the same link can abort one of the serializable
// transactions with a serialization failure; the losing redemption is re-run
// once and lands on the idempotent path.
func (s *Store) ConfirmSubscription(ctx context.Context, token string) (db.Subscriber, error) {
	subscriber, err := s.confirmSubscription(ctx, token)
	if isWriteConflict(err) {
		subscriber, err = s.confirmSubscription(ctx, token)
	}
	return subscriber, err
}

func (s *Store) confirmSubscription(ctx context.Context, token string) (db.Subscriber, error) {
	var subscriber db.Subscriber

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		found, err := q.GetSubscriberByToken(ctx, token)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("ConfirmSubscription: resolve token: %w", err)
		}

		confirmed, err := q.ConfirmSubscriber(ctx, found.ID)
		if err != nil {
			return fmt.Errorf("ConfirmSubscription: confirm subscriber: %w", err)
		}
		subscriber = confirmed
		return nil
	})

	if errors.Is(err, ErrTokenNotFound) {
		return db.Subscriber{}, ErrTokenNotFound
	}
	if err != nil {
		return db.Subscriber{}, err
	}
	return subscriber, nil
}

// PruneExpiredTokens deletes confirmation tokens whose subscriber confirmed
// before now-retention. A single-query write, no transaction needed. It lives
// here because token lifecycle is the store's concern and the sweeper should
// not call db.Querier directly for this.
func (s *Store) PruneExpiredTokens(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.q.DeleteExpiredConfirmationTokens(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("PruneExpiredTokens: %w", err)
	}
	return deleted, nil
}
