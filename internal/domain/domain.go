// Package domain holds the validated subscriber identity types. A
// SubscriberName or SubscriberEmail can only be obtained through its Parse
// constructor, so any value of these types held anywhere in the program is
// known to be well-formed. The wrapped strings are private — there is no
// bypass constructor.
package domain

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/rivo/uniseg"
)

// ValidationError reports why a raw subscriber field was rejected. It is
// always a client-facing failure: handlers map it to 400 and never log it as
// an operational fault.
type ValidationError struct {
	Field  string // "name" or "email"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ─── SUBSCRIBER NAME ─────────────────────────────────────────────────────────

// maxNameGraphemes limits display names to 256 user-perceived characters.
// Counted in grapheme clusters, not bytes, so names in any script get the
// same budget.
const maxNameGraphemes = 256

// forbiddenNameChars would let a display name break out of HTML or SQL
// contexts downstream.
const forbiddenNameChars = `/()"<>\{}`

// SubscriberName is a validated display name.
type SubscriberName struct {
	value string
}

// ParseSubscriberName validates a raw display name. The accepted value keeps
// its original spelling — trimming is only applied for the emptiness check.
func ParseSubscriberName(raw string) (SubscriberName, error) {
	if strings.TrimSpace(raw) == "" {
		return SubscriberName{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if uniseg.GraphemeClusterCount(raw) > maxNameGraphemes {
		return SubscriberName{}, &ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("must not exceed %d characters", maxNameGraphemes),
		}
	}
	if strings.ContainsAny(raw, forbiddenNameChars) {
		return SubscriberName{}, &ValidationError{Field: "name", Reason: "contains a forbidden character"}
	}
	return SubscriberName{value: raw}, nil
}

func (n SubscriberName) String() string { return n.value }

// ─── SUBSCRIBER EMAIL ────────────────────────────────────────────────────────

// SubscriberEmail is a validated email address.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates a raw email address. net/mail provides the
// grammar; on top of that the address must be bare (no display name, no
// surrounding whitespace — ParseAddress tolerates both) and its domain must
// contain an interior dot, which RFC 5322 permits omitting but no deliverable
// public address does.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	fail := func(reason string) (SubscriberEmail, error) {
		return SubscriberEmail{}, &ValidationError{Field: "email", Reason: reason}
	}

	if raw == "" {
		return fail("must not be empty")
	}

	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return fail("is not a valid email address")
	}

	at := strings.LastIndex(raw, "@")
	domainPart := raw[at+1:]
	dot := strings.Index(domainPart, ".")
	if dot <= 0 || dot == len(domainPart)-1 {
		return fail("domain must contain a dot")
	}

	return SubscriberEmail{value: raw}, nil
}

func (e SubscriberEmail) String() string { return e.value }
