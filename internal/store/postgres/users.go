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

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `u.id, u.email, u.username, u.display_name, u.gender, u.avatar_path, u.status, u.created_at, u.updated_at, u.last_login_at`

func (s *UsersStore) CreateUser(ctx context.Context, nu domain.NewUser) (domain.User, error) {
	const q = `
		INSERT INTO users AS u (email, username, display_name, gender, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q,
		nullIfEmpty(nu.Email), nu.Username, nu.DisplayName, string(nu.Gender), nu.PasswordHash,
	))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByLogin matches either username or email, preferring the username.
func (s *UsersStore) GetUserByLogin(ctx context.Context, login string) (domain.UserWithPassword, error) {
	const q = `
		SELECT ` + userColumns + `, u.password_hash
		FROM users u
		WHERE u.username = $1 OR (u.email IS NOT NULL AND u.email = $1)
		ORDER BY (u.username = $1) DESC
		LIMIT 1
	`
	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by login: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	const q = `
		SELECT ` + userColumns + `, u.password_hash
		FROM users u
		WHERE u.email = $1
		LIMIT 1
	`
	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (s *UsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	const q = `
		SELECT ` + userColumns + `, ea.id, ea.email, ea.created_at
		FROM external_accounts ea
		JOIN users u ON u.id = ea.user_id
		WHERE ea.provider = $1 AND ea.provider_id = $2
	`

	var (
		row    userRow
		eaID   pgtype.UUID
		eaMail pgtype.Text
		ea     domain.ExternalAccount
	)
	dest := append(row.targets(), &eaID, &eaMail, &ea.CreatedAt)
	if err := s.pool.QueryRow(ctx, q, provider, providerID).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
		}
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("get user by external account: %w", err)
	}

	u := row.user()
	ea.ID = uuidOrEmpty(eaID)
	ea.UserID = u.ID
	ea.Provider = provider
	ea.ProviderID = providerID
	ea.Email = textOrEmpty(eaMail)
	return u, ea, nil
}

// CreateUserWithExternalAccount inserts the user and its provider link in one
// transaction.
func (s *UsersStore) CreateUserWithExternalAccount(ctx context.Context, nu domain.NewUser, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertUser = `
		INSERT INTO users AS u (email, username, display_name, gender, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	u, err := scanUser(tx.QueryRow(ctx, insertUser,
		nullIfEmpty(nu.Email), nu.Username, nu.DisplayName, string(nu.Gender), nu.PasswordHash,
	))
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, mapUserWriteError(err)
	}

	ea, err := insertExternalAccount(ctx, tx, u.ID, provider, providerID, nu.Email)
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("commit tx: %w", err)
	}
	return u, ea, nil
}

func (s *UsersStore) LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	return insertExternalAccount(ctx, s.pool, userID, provider, providerID, email)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertExternalAccount(ctx context.Context, db queryRower, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	const q = `
		INSERT INTO external_accounts (user_id, provider, provider_id, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	ea := domain.ExternalAccount{UserID: userID, Provider: provider, ProviderID: providerID, Email: email}
	var idUUID pgtype.UUID
	if err := db.QueryRow(ctx, q, userID, provider, providerID, nullIfEmpty(email)).Scan(&idUUID, &ea.CreatedAt); err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return domain.ExternalAccount{}, domain.ErrExternalAccountExists
		}
		return domain.ExternalAccount{}, fmt.Errorf("link external account: %w", err)
	}
	ea.ID = uuidOrEmpty(idUUID)
	return ea, nil
}

type userRow struct {
	id          pgtype.UUID
	email       pgtype.Text
	username    string
	displayName string
	gender      string
	avatarPath  pgtype.Text
	status      domain.UserStatus
	createdAt   time.Time
	updatedAt   time.Time
	lastLoginAt pgtype.Timestamptz
}

// targets matches the order of userColumns.
func (r *userRow) targets() []any {
	return []any{
		&r.id, &r.email, &r.username, &r.displayName, &r.gender,
		&r.avatarPath, &r.status, &r.createdAt, &r.updatedAt, &r.lastLoginAt,
	}
}

func (r *userRow) user() domain.User {
	return domain.User{
		ID:          uuidOrEmpty(r.id),
		Email:       textOrEmpty(r.email),
		Username:    r.username,
		DisplayName: r.displayName,
		Gender:      domain.Gender(r.gender),
		AvatarPath:  textOrEmpty(r.avatarPath),
		Status:      r.status,
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
		LastLoginAt: timestamptzPtr(r.lastLoginAt),
	}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var r userRow
	if err := row.Scan(r.targets()...); err != nil {
		return domain.User{}, err
	}
	return r.user(), nil
}

func scanUserWithPassword(row pgx.Row) (domain.UserWithPassword, error) {
	var (
		r    userRow
		hash string
	)
	if err := row.Scan(append(r.targets(), &hash)...); err != nil {
		return domain.UserWithPassword{}, err
	}
	return domain.UserWithPassword{User: r.user(), PasswordHash: hash}, nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_username_uq":
			return domain.ErrUsernameTaken
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
