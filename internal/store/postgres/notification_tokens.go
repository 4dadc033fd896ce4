package postgres

import (
	"context"
	"fmt"
	"time"

	"FriendsWebServer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationTokensStore struct {
	pool *pgxpool.Pool
}

func NewNotificationTokensStore(pool *pgxpool.Pool) *NotificationTokensStore {
	return &NotificationTokensStore{pool: pool}
}

// UpsertToken registers token for userID. A device token belongs to at most
// one user, so re-registering moves it to the latest owner.
func (s *NotificationTokensStore) UpsertToken(ctx context.Context, userID, token string, platform domain.PushPlatform, when time.Time) (domain.NotificationToken, error) {
	const q = `
		INSERT INTO notification_tokens (token, user_id, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
		RETURNING token, user_id, platform, created_at, updated_at
	`
	t, err := scanToken(s.pool.QueryRow(ctx, q, token, userID, string(platform), when))
	if err != nil {
		return domain.NotificationToken{}, fmt.Errorf("upsert notification token: %w", err)
	}
	return t, nil
}

func (s *NotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	const q = `DELETE FROM notification_tokens WHERE user_id = $1 AND token = $2`
	if _, err := s.pool.Exec(ctx, q, userID, token); err != nil {
		return fmt.Errorf("delete notification token: %w", err)
	}
	return nil
}

func (s *NotificationTokensStore) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	const q = `
		SELECT token, user_id, platform, created_at, updated_at
		FROM notification_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	return out, nil
}

func scanToken(row pgx.Row) (domain.NotificationToken, error) {
	var (
		t        domain.NotificationToken
		userID   pgtype.UUID
		platform string
	)
	if err := row.Scan(&t.Token, &userID, &platform, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.NotificationToken{}, err
	}
	t.UserID = uuidOrEmpty(userID)
	t.Platform = domain.PushPlatform(platform)
	return t, nil
}
