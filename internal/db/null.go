package db

import (
	"database/sql"

	"github.com/sqlc-dev/pqtype"
)

// nullString converts a Go string to sql.NullString. Empty string → NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt16 treats zero as NULL; delivery failures without an HTTP response
// have no provider status to record.
func nullInt16(v int16) sql.NullInt16 {
	return sql.NullInt16{Int16: v, Valid: v != 0}
}

// nullRawMessage wraps a JSON payload for a jsonb column. Nil or empty → NULL.
func nullRawMessage(b []byte) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: b, Valid: len(b) > 0}
}
