package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		email         text,
		username      text NOT NULL,
		display_name  text NOT NULL DEFAULT '',
		gender        text NOT NULL DEFAULT '',
		avatar_path   text,
		password_hash text NOT NULL,
		status        text NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'disabled')),
		created_at    timestamptz NOT NULL DEFAULT now(),
		updated_at    timestamptz NOT NULL DEFAULT now(),
		last_login_at timestamptz,
		CONSTRAINT users_username_uq UNIQUE (username),
		CONSTRAINT users_email_uq UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS external_accounts (
		id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id     uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		provider    text NOT NULL,
		provider_id text NOT NULL,
		email       text,
		created_at  timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT external_accounts_provider_uq UNIQUE (provider, provider_id),
		CONSTRAINT external_accounts_user_provider_uq UNIQUE (user_id, provider)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id    uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at timestamptz NOT NULL DEFAULT now(),
		expires_at timestamptz NOT NULL,
		revoked_at timestamptz,
		ip         text,
		user_agent text
	)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		requester_id uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		receiver_id  uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		status       text NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected', 'blocked')),
		blocked_by   text[] NOT NULL DEFAULT '{}',
		created_at   timestamptz NOT NULL,
		updated_at   timestamptz NOT NULL,
		CONSTRAINT relationships_not_self CHECK (requester_id <> receiver_id),
		CONSTRAINT relationships_blocked_by CHECK ((status = 'blocked') = (cardinality(blocked_by) > 0))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS relationships_pair_uq
		ON relationships (LEAST(requester_id, receiver_id), GREATEST(requester_id, receiver_id))`,
	`CREATE INDEX IF NOT EXISTS relationships_receiver_status_idx
		ON relationships (receiver_id, status)`,
	`CREATE INDEX IF NOT EXISTS relationships_requester_status_idx
		ON relationships (requester_id, status)`,
	`CREATE TABLE IF NOT EXISTS notification_tokens (
		token      text PRIMARY KEY,
		user_id    uuid NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		platform   text NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notification_tokens_user_idx ON notification_tokens (user_id)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
