package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/perchpress/newsletter-backend/internal/db"
	"github.com/perchpress/newsletter-backend/internal/domain"
	"github.com/perchpress/newsletter-backend/internal/email"
	"github.com/perchpress/newsletter-backend/internal/store"
	"github.com/perchpress/newsletter-backend/internal/token"
)

// ─── POST /subscriptions ──────────────────────────────────────────────────────

// handleSubscribe accepts a URL-encoded form with `name` and `email`,
// persists the subscriber in pending state, and sends the confirmation email.
//
// The store commit happens before the send, so the emailed link always
// references a token that is already redeemable. A failed send leaves the
// pending row and token in place; resubmitting the form re-enters the
// idempotent re-issuance path with a fresh token.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	if err := r.ParseForm(); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid form body")
		return
	}

	name, err := domain.ParseSubscriberName(r.PostForm.Get("name"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := domain.ParseSubscriberEmail(r.PostForm.Get("email"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	confirmationToken, err := token.New()
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate confirmation token: %w", err))
		return
	}

	subscriber, err := s.store.StartSubscription(r.Context(), store.StartSubscriptionParams{
		Email: addr.String(),
		Name:  name.String(),
		Token: confirmationToken,
	})
	if errors.Is(err, store.ErrAlreadyConfirmed) {
		// Policy for resubmission by a confirmed address: succeed without
		// sending another email. The subscriber already gets the newsletter.
		s.logger.Info("subscribe: address already confirmed",
			"subscriber_id", subscriber.ID,
			"request_id", middleware.GetReqID(r.Context()),
		)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("start subscription: %w", err))
		return
	}

	sendErr := s.mailer.SendConfirmation(r.Context(), email.ConfirmationParams{
		To:    addr,
		Name:  name,
		Token: confirmationToken,
	})
	s.recordDelivery(r, subscriber, sendErr)

	if sendErr != nil {
		s.respondInternalErr(w, r, fmt.Errorf("send confirmation email: %w", sendErr))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// recordDelivery appends the send attempt to the deliveries log. Best effort:
// a log failure is logged and otherwise ignored, it must not change the
// outcome of the subscribe request.
func (s *Server) recordDelivery(r *http.Request, subscriber db.Subscriber, sendErr error) {
	params := db.RecordDeliveryParams{
		SubscriberID: subscriber.ID,
		Recipient:    subscriber.Email,
		Outcome:      db.DeliveryOutcomeSent,
	}
	if sendErr != nil {
		params.Outcome = db.DeliveryOutcomeFailed
		params.ErrorMessage = sendErr.Error()

		var dErr *email.DeliveryError
		if errors.As(sendErr, &dErr) {
			params.ProviderStatus = int16(dErr.StatusCode)
			// The column is jsonb; providers occasionally answer with plain text.
			if json.Valid(dErr.Body) {
				params.ProviderResponse = dErr.Body
			}
		}
	}

	if _, err := s.q.RecordDelivery(r.Context(), params); err != nil {
		s.logger.Error("subscribe: failed to record delivery",
			"subscriber_id", subscriber.ID,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
}

// ─── GET /subscriptions/confirm ───────────────────────────────────────────────

// handleConfirm redeems the token from the emailed link. Missing token → 400,
// unknown token → 404, success → 200 with no body. Redeeming a token for an
// already-confirmed subscriber succeeds silently.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	confirmationToken := r.URL.Query().Get("token")
	if confirmationToken == "" {
		respondErr(w, http.StatusBadRequest, "missing token parameter")
		return
	}

	subscriber, err := s.store.ConfirmSubscription(r.Context(), confirmationToken)
	if errors.Is(err, store.ErrTokenNotFound) {
		respondErr(w, http.StatusNotFound, "unknown confirmation token")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("confirm subscription: %w", err))
		return
	}

	s.logger.Info("subscription confirmed",
		"subscriber_id", subscriber.ID,
		"request_id", middleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusOK)
}
