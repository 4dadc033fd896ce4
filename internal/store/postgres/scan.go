package postgres

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func textOrEmpty(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func timestamptzPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}

func uuidOrEmpty(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func textArrayOrEmpty(a pgtype.FlatArray[string]) []string {
	if a == nil {
		return nil
	}
	return []string(a)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isInvalidUUID reports whether postgres rejected a parameter as malformed
// input, which for id lookups means the row cannot exist.
func isInvalidUUID(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == "22P02"
}
