package email_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/perchpress/newsletter-backend/internal/config"
	"github.com/perchpress/newsletter-backend/internal/domain"
	"github.com/perchpress/newsletter-backend/internal/email"
)

const testAPIKey = "SG.test-api-key"

func mustEmail(t *testing.T, raw string) domain.SubscriberEmail {
	t.Helper()
	addr, err := domain.ParseSubscriberEmail(raw)
	if err != nil {
		t.Fatalf("parse email %q: %v", raw, err)
	}
	return addr
}

func mustName(t *testing.T, raw string) domain.SubscriberName {
	t.Helper()
	name, err := domain.ParseSubscriberName(raw)
	if err != nil {
		t.Fatalf("parse name %q: %v", raw, err)
	}
	return name
}

func newClient(t *testing.T, baseURL string, timeout time.Duration) email.Sender {
	t.Helper()
	return email.NewSendGridClient(email.ClientConfig{
		BaseURL:    baseURL,
		SendPath:   "/v3/mail/send",
		Sender:     mustEmail(t, "hello@perchpress.com"),
		SenderName: "Perch Press",
		APIKey:     config.Secret(testAPIKey),
		LinkBase:   "https://news.perchpress.com",
		Timeout:    timeout,
	})
}

func confirmationParams(t *testing.T) email.ConfirmationParams {
	t.Helper()
	return email.ConfirmationParams{
		To:    mustEmail(t, "ursula_le_guin@gmail.com"),
		Name:  mustName(t, "le guin"),
		Token: "aaaaaaaaaaaaaaaaaaaaaaaaa",
	}
}

// sendRequestShape mirrors the provider wire contract.
type sendRequestShape struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"to"`
	} `json:"personalizations"`
	Subject string `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func TestSendConfirmation_SendsExpectedRequest(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotCType  string
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL, 10*time.Second)
	if err := client.SendConfirmation(context.Background(), confirmationParams(t)); err != nil {
		t.Fatalf("SendConfirmation: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method: got %s", gotMethod)
	}
	if gotPath != "/v3/mail/send" {
		t.Errorf("path: got %s", gotPath)
	}
	if gotAuth != "bearer "+testAPIKey {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if gotCType != "application/json" {
		t.Errorf("content-type: got %q", gotCType)
	}

	var body sendRequestShape
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if body.From.Email != "hello@perchpress.com" || body.From.Name != "Perch Press" {
		t.Errorf("from: got %+v", body.From)
	}
	if len(body.Personalizations) != 1 || len(body.Personalizations[0].To) != 1 {
		t.Fatalf("personalizations: got %+v", body.Personalizations)
	}
	if to := body.Personalizations[0].To[0]; to.Email != "ursula_le_guin@gmail.com" || to.Name != "le guin" {
		t.Errorf("to: got %+v", to)
	}
	if body.Subject != "Welcome!" {
		t.Errorf("subject: got %q", body.Subject)
	}
	if len(body.Content) != 1 || body.Content[0].Type != "text/html" {
		t.Fatalf("content: got %+v", body.Content)
	}
	wantLink := "https://news.perchpress.com/subscriptions/confirm?token=aaaaaaaaaaaaaaaaaaaaaaaaa"
	if !strings.Contains(body.Content[0].Value, wantLink) {
		t.Errorf("html body does not contain confirmation link %q", wantLink)
	}
}

func TestSendConfirmation_ProviderErrorSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"message":"upstream exploded"}]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL, 10*time.Second)
	err := client.SendConfirmation(context.Background(), confirmationParams(t))
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}

	var dErr *email.DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected *DeliveryError, got %T: %v", err, err)
	}
	if dErr.Kind != email.KindProviderRejected {
		t.Errorf("kind: got %s", dErr.Kind)
	}
	if dErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d", dErr.StatusCode)
	}
	if !strings.Contains(string(dErr.Body), "upstream exploded") {
		t.Errorf("body: got %q", dErr.Body)
	}
}

func TestSendConfirmation_TimesOutIfServerTakesTooLong(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := newClient(t, srv.URL, 50*time.Millisecond)
	err := client.SendConfirmation(context.Background(), confirmationParams(t))

	var dErr *email.DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected *DeliveryError, got %T: %v", err, err)
	}
	if dErr.Kind != email.KindTimeout {
		t.Errorf("kind: got %s, want timeout", dErr.Kind)
	}
}

func TestSendConfirmation_ConnectionFailureIsNetworkError(t *testing.T) {
	// Start and immediately stop a server to get a port that refuses
	// connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newClient(t, srv.URL, time.Second)
	err := client.SendConfirmation(context.Background(), confirmationParams(t))

	var dErr *email.DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected *DeliveryError, got %T: %v", err, err)
	}
	if dErr.Kind != email.KindNetwork {
		t.Errorf("kind: got %s, want network", dErr.Kind)
	}
}

func TestSendConfirmation_ErrorsNeverContainTheAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	client := newClient(t, srv.URL, time.Second)
	err := client.SendConfirmation(context.Background(), confirmationParams(t))
	if err == nil {
		t.Fatal("expected an error")
	}
	if strings.Contains(err.Error(), testAPIKey) {
		t.Errorf("error text leaks the API key: %q", err.Error())
	}
}
