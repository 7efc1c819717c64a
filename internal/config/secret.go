package config

import "log/slog"

// Secret wraps a credential so it cannot leak through default formatting.
// fmt verbs, %#v, and slog all see the redaction placeholder; the wrapped
// value is reachable only through Reveal, which should be called at the
// single point the credential is actually attached to a request.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer so a Secret passed as a log attribute
// is redacted even when handlers bypass fmt.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// Reveal returns the wrapped credential.
func (s Secret) Reveal() string { return string(s) }
