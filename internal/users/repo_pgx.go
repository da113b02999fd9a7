package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avolkov/shortlink/internal/errx"
	"github.com/avolkov/shortlink/internal/idgen"
)

const userColumns = "id, username, hashed_password, created_at"

// db abstracts *pgxpool.Pool so the repository can be exercised against
// any pgx-compatible query executor.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	db  db
	ids idgen.Generator
}

// NewRepository creates a Repository backed by Postgres.
func NewRepository(d db, ids idgen.Generator) Repository {
	if ids == nil {
		ids = idgen.NewV7(idgen.WithRetries(1))
	}
	return &repo{db: d, ids: ids}
}

func isUsernameUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" &&
		pgErr.ConstraintName == "users_username_key"
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isUsernameUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.CreatedAt)
	return u, err
}

func (r *repo) Create(ctx context.Context, user User) (User, error) {
	const op = "users.repo.Create"

	if user.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return User{}, errx.E(op, errx.Unavailable, err)
		}
		user.ID = id
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, hashed_password, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING `+userColumns,
		user.ID, user.Username, user.HashedPassword,
	)

	created, err := scanUser(row)
	if err != nil {
		return User{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) GetByUsername(ctx context.Context, username string) (User, error) {
	const op = "users.repo.GetByUsername"

	row := r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username)

	user, err := scanUser(row)
	if err != nil {
		return User{}, mapRepoError(op, err)
	}
	return user, nil
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	const op = "users.repo.GetByID"

	row := r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)

	user, err := scanUser(row)
	if err != nil {
		return User{}, mapRepoError(op, err)
	}
	return user, nil
}
