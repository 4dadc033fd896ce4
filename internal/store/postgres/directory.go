package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"FriendsWebServer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryStore serves public profile reads for the relationship views.
type DirectoryStore struct {
	pool *pgxpool.Pool
}

func NewDirectoryStore(pool *pgxpool.Pool) *DirectoryStore {
	return &DirectoryStore{pool: pool}
}

const profileColumns = `id, username, display_name, gender, avatar_path`

func (s *DirectoryStore) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM users WHERE id = $1`

	p, err := scanProfile(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetProfiles loads the profiles for ids in one round trip. Unknown ids are
// skipped; the result is ordered by username.
func (s *DirectoryStore) GetProfiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return []domain.Profile{}, nil
	}
	const q = `
		SELECT ` + profileColumns + `
		FROM users
		WHERE id = ANY($1::uuid[])
		ORDER BY username ASC
	`
	return s.query(ctx, "get profiles", q, ids)
}

func (s *DirectoryStore) ListProfiles(ctx context.Context, excludeID, query string, skip, limit int) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	like := "%"
	if query != "" {
		like = "%" + escapeLike(query) + "%"
	}

	const q = `
		SELECT ` + profileColumns + `
		FROM users
		WHERE status = 'active'
		  AND id::text <> $1
		  AND (username ILIKE $2 OR display_name ILIKE $2)
		ORDER BY username ASC
		OFFSET $3
		LIMIT $4
	`
	return s.query(ctx, "list profiles", q, excludeID, like, skip, limit)
}

func (s *DirectoryStore) query(ctx context.Context, op, q string, args ...any) ([]domain.Profile, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return []domain.Profile{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p      domain.Profile
		idUUID pgtype.UUID
		gender string
		avatar pgtype.Text
	)
	if err := row.Scan(&idUUID, &p.Username, &p.DisplayName, &gender, &avatar); err != nil {
		return domain.Profile{}, err
	}
	p.ID = uuidOrEmpty(idUUID)
	p.Gender = domain.Gender(gender)
	p.AvatarPath = textOrEmpty(avatar)
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
