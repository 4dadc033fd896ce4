package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FriendsWebServer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RelationshipsStore struct {
	pool *pgxpool.Pool
}

func NewRelationshipsStore(pool *pgxpool.Pool) *RelationshipsStore {
	return &RelationshipsStore{pool: pool}
}

const relationshipColumns = `id, requester_id, receiver_id, status, blocked_by, created_at, updated_at`

// MutatePair serializes writers on the unordered pair with a transaction-scoped
// advisory lock, so two first-time writers cannot both see "no record".
func (s *RelationshipsStore) MutatePair(ctx context.Context, userA, userB string, fn func(cur *domain.Relationship) (domain.Relationship, error)) (domain.Relationship, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Relationship{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, pairLockKey(userA, userB)); err != nil {
		return domain.Relationship{}, false, fmt.Errorf("lock relationship pair: %w", err)
	}

	const selectQ = `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE (requester_id = $1 AND receiver_id = $2)
		   OR (requester_id = $2 AND receiver_id = $1)
		FOR UPDATE
	`
	var cur *domain.Relationship
	existing, err := scanRelationship(tx.QueryRow(ctx, selectQ, userA, userB))
	switch {
	case err == nil:
		cur = &existing
	case errors.Is(err, pgx.ErrNoRows):
	case isInvalidUUID(err):
		return domain.Relationship{}, false, domain.ErrNotFound
	default:
		return domain.Relationship{}, false, fmt.Errorf("get relationship: %w", err)
	}

	next, err := fn(cur)
	if err != nil {
		return domain.Relationship{}, false, err
	}

	var out domain.Relationship
	if cur == nil {
		out, err = insertRelationship(ctx, tx, next)
	} else {
		out, err = updateRelationship(ctx, tx, cur.ID, next)
	}
	if err != nil {
		return domain.Relationship{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Relationship{}, false, fmt.Errorf("commit tx: %w", err)
	}
	return out, cur == nil, nil
}

func (s *RelationshipsStore) MutateByID(ctx context.Context, id string, fn func(cur domain.Relationship) (domain.Relationship, error)) (domain.Relationship, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Relationship{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectQ = `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE id = $1
		FOR UPDATE
	`
	cur, err := scanRelationship(tx.QueryRow(ctx, selectQ, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Relationship{}, domain.ErrNotFound
		}
		return domain.Relationship{}, fmt.Errorf("get relationship by id: %w", err)
	}

	next, err := fn(cur)
	if err != nil {
		return domain.Relationship{}, err
	}

	out, err := updateRelationship(ctx, tx, cur.ID, next)
	if err != nil {
		return domain.Relationship{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Relationship{}, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func insertRelationship(ctx context.Context, tx pgx.Tx, r domain.Relationship) (domain.Relationship, error) {
	const q = `
		INSERT INTO relationships (requester_id, receiver_id, status, blocked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + relationshipColumns

	out, err := scanRelationship(tx.QueryRow(ctx, q,
		r.RequesterID,
		r.ReceiverID,
		string(r.Status),
		pgtype.FlatArray[string](nonNil(r.BlockedBy)),
		r.CreatedAt,
		r.UpdatedAt,
	))
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23503" {
			return domain.Relationship{}, domain.ErrNotFound
		}
		return domain.Relationship{}, fmt.Errorf("insert relationship: %w", err)
	}
	return out, nil
}

// updateRelationship writes the mutable columns only; id, parties and
// created_at never change after insert.
func updateRelationship(ctx context.Context, tx pgx.Tx, id string, r domain.Relationship) (domain.Relationship, error) {
	const q = `
		UPDATE relationships
		SET status = $2, blocked_by = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + relationshipColumns

	out, err := scanRelationship(tx.QueryRow(ctx, q,
		id,
		string(r.Status),
		pgtype.FlatArray[string](nonNil(r.BlockedBy)),
		r.UpdatedAt,
	))
	if err != nil {
		return domain.Relationship{}, fmt.Errorf("update relationship: %w", err)
	}
	return out, nil
}

func (s *RelationshipsStore) ListAccepted(ctx context.Context, userID string) ([]domain.Relationship, error) {
	const q = `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE status = 'accepted' AND (requester_id = $1 OR receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`
	return s.list(ctx, "list accepted relationships", q, userID)
}

func (s *RelationshipsStore) ListPendingReceived(ctx context.Context, userID string) ([]domain.Relationship, error) {
	const q = `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE status = 'pending' AND receiver_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return s.list(ctx, "list pending relationships", q, userID)
}

func (s *RelationshipsStore) ListBetween(ctx context.Context, viewerID string, otherIDs []string) ([]domain.Relationship, error) {
	if len(otherIDs) == 0 {
		return []domain.Relationship{}, nil
	}
	const q = `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE (requester_id = $1 AND receiver_id = ANY($2::uuid[]))
		   OR (receiver_id = $1 AND requester_id = ANY($2::uuid[]))
		ORDER BY created_at ASC, id ASC
	`
	return s.list(ctx, "list relationships between", q, viewerID, otherIDs)
}

func (s *RelationshipsStore) list(ctx context.Context, op, q string, args ...any) ([]domain.Relationship, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return []domain.Relationship{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.Relationship{}
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return []domain.Relationship{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanRelationship(row pgx.Row) (domain.Relationship, error) {
	var (
		r           domain.Relationship
		idUUID      pgtype.UUID
		requesterID pgtype.UUID
		receiverID  pgtype.UUID
		status      string
		blockedBy   pgtype.FlatArray[string]
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&idUUID, &requesterID, &receiverID, &status, &blockedBy, &createdAt, &updatedAt); err != nil {
		return domain.Relationship{}, err
	}

	r.ID = uuidOrEmpty(idUUID)
	r.RequesterID = uuidOrEmpty(requesterID)
	r.ReceiverID = uuidOrEmpty(receiverID)
	r.Status = domain.RelationshipStatus(status)
	r.BlockedBy = nonNil(textArrayOrEmpty(blockedBy))
	r.CreatedAt = createdAt
	r.UpdatedAt = updatedAt
	return r, nil
}

func pairLockKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "relationship:" + a + ":" + b
}
