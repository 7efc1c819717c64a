package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/perchpress/newsletter-backend/internal/config"
	"github.com/perchpress/newsletter-backend/internal/domain"
)

const confirmationSubject = "Welcome!"

// maxResponseBody caps how much of a provider error response is retained for
// the deliveries log.
const maxResponseBody = 4 * 1024

// sendgridClient is the concrete Sender backed by a SendGrid-compatible API.
type sendgridClient struct {
	baseURL    string // provider API origin, e.g. "https://api.sendgrid.com"
	sendPath   string // e.g. "/v3/mail/send"
	sender     domain.SubscriberEmail
	senderName string
	apiKey     config.Secret
	linkBase   string // public app origin the confirmation link points at
	httpClient *http.Client
}

// ClientConfig holds everything needed to construct the client.
type ClientConfig struct {
	BaseURL    string
	SendPath   string
	Sender     domain.SubscriberEmail
	SenderName string
	APIKey     config.Secret
	LinkBase   string
	Timeout    time.Duration
}

// NewSendGridClient returns a Sender that delivers email through the
// configured provider endpoint. Timeout bounds the whole request/response
// cycle of every send.
func NewSendGridClient(cfg ClientConfig) Sender {
	return &sendgridClient{
		baseURL:    cfg.BaseURL,
		sendPath:   cfg.SendPath,
		sender:     cfg.Sender,
		senderName: cfg.SenderName,
		apiKey:     cfg.APIKey,
		linkBase:   cfg.LinkBase,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ─── PROVIDER API SHAPES ─────────────────────────────────────────────────────

type address struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type personalization struct {
	To []address `json:"to"`
}

type contentBlock struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	From             address           `json:"from"`
	Personalizations []personalization `json:"personalizations"`
	Subject          string            `json:"subject"`
	Content          []contentBlock    `json:"content"`
}

// ─── SENDER IMPLEMENTATION ───────────────────────────────────────────────────

// SendConfirmation sends the double-opt-in email with the confirmation link.
func (c *sendgridClient) SendConfirmation(ctx context.Context, p ConfirmationParams) error {
	link := fmt.Sprintf("%s/subscriptions/confirm?token=%s", c.linkBase, url.QueryEscape(p.Token))
	html := confirmationHTML(p.Name.String(), link)
	return c.send(ctx, p.To, p.Name.String(), confirmationSubject, html)
}

// ─── HTTP SEND ───────────────────────────────────────────────────────────────

func (c *sendgridClient) send(ctx context.Context, to domain.SubscriberEmail, toName, subject, html string) error {
	reqBody := sendRequest{
		From: address{Email: c.sender.String(), Name: c.senderName},
		Personalizations: []personalization{
			{To: []address{{Email: to.String(), Name: toName}}},
		},
		Subject: subject,
		Content: []contentBlock{
			{Type: "text/html", Value: html},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return &DeliveryError{Kind: KindNetwork, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+c.sendPath,
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return &DeliveryError{Kind: KindNetwork, Err: fmt.Errorf("build request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	// The only place the credential leaves the Secret wrapper.
	req.Header.Set("Authorization", "bearer "+c.apiKey.Reveal())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Kind: classifyTransportErr(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return &DeliveryError{
			Kind:       KindProviderRejected,
			StatusCode: resp.StatusCode,
			Body:       respBytes,
		}
	}

	return nil
}

// classifyTransportErr separates an elapsed request budget from every other
// connection-level failure.
func classifyTransportErr(err error) DeliveryErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// ─── HTML TEMPLATE ───────────────────────────────────────────────────────────

func confirmationHTML(name, link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Confirm your subscription</h2>
  <p>Hello %s,</p>
  <p>Thanks for signing up for the Perch Press newsletter. Click the button
  below to confirm your subscription. Until then we won't send you anything.</p>
  <p style="margin: 32px 0;">
    <a href="%s"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Confirm subscription
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">
    If the button above does not work, copy this URL:<br>
    <a href="%s" style="color: #6b7280;">%s</a>
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    Perch Press · You received this because someone entered this address on
    our signup form. If it wasn't you, ignore this email.
  </p>
</body>
</html>`, name, link, link, link)
}
