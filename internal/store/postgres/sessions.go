package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FriendsWebServer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionsStore struct {
	pool *pgxpool.Pool
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{pool: pool}
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	const q = `
		INSERT INTO sessions (user_id, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, q, userID, expiresAt, nullIfEmpty(ip), nullIfEmpty(userAgent)).Scan(&idUUID); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return uuidOrEmpty(idUUID), nil
}

// GetSession returns only live sessions: not revoked and not expired.
func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	const q = `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()
	`
	var (
		sess    domain.Session
		id      pgtype.UUID
		userID  pgtype.UUID
		revoked pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(&id, &userID, &sess.CreatedAt, &sess.ExpiresAt, &revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess.ID = uuidOrEmpty(id)
	sess.UserID = uuidOrEmpty(userID)
	sess.RevokedAt = timestamptzPtr(revoked)
	return sess, nil
}

func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	const q = `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	if _, err := s.pool.Exec(ctx, q, sessionID, when); err != nil {
		if isInvalidUUID(err) {
			return nil
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired or were revoked before cutoff.
func (s *SessionsStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`
	ct, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ct.RowsAffected(), nil
}
