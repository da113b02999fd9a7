package links

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avolkov/shortlink/internal/errx"
	"github.com/avolkov/shortlink/internal/idgen"
)

const linkColumns = "id, short_code, original_url, owner_id, created_at, last_accessed, expires_at, click_count"

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

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Repository backed by Postgres.
func NewRepository(d db, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 for insert locality.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{db: d, ids: config.IDGenerator}
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	err := row.Scan(&l.ID, &l.ShortCode, &l.OriginalURL, &l.OwnerID,
		&l.CreatedAt, &l.LastAccessed, &l.ExpiresAt, &l.ClickCount)
	return l, err
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "links.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO links (id, short_code, original_url, owner_id, created_at, last_accessed, expires_at, click_count)
		VALUES ($1, $2, $3, $4, now(), now(), $5, 0)
		RETURNING `+linkColumns,
		link.ID, link.ShortCode, link.OriginalURL, link.OwnerID, link.ExpiresAt,
	)

	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "links.repo.GetByCode"

	row := r.db.QueryRow(ctx,
		"SELECT "+linkColumns+" FROM links WHERE short_code = $1", code)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) ResolveAndTrack(ctx context.Context, code string, now time.Time) (Link, error) {
	const op = "links.repo.ResolveAndTrack"

	row := r.db.QueryRow(ctx, `
		UPDATE links
		SET last_accessed = $2, click_count = click_count + 1
		WHERE short_code = $1
		RETURNING `+linkColumns,
		code, now,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) Delete(ctx context.Context, code string) error {
	const op = "links.repo.Delete"

	tag, err := r.db.Exec(ctx, "DELETE FROM links WHERE short_code = $1", code)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("short code not found"))
	}
	return nil
}

func (r *repo) RenameCode(ctx context.Context, oldCode, newCode string) (Link, error) {
	const op = "links.repo.RenameCode"

	row := r.db.QueryRow(ctx, `
		UPDATE links SET short_code = $2
		WHERE short_code = $1
		RETURNING `+linkColumns,
		oldCode, newCode,
	)

	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) FindByOriginalURL(ctx context.Context, originalURL string) ([]Link, error) {
	const op = "links.repo.FindByOriginalURL"

	rows, err := r.db.Query(ctx,
		"SELECT "+linkColumns+" FROM links WHERE original_url = $1 ORDER BY created_at",
		originalURL)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return collectLinks(op, rows)
}

func (r *repo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Link, error) {
	const op = "links.repo.ListByOwner"

	rows, err := r.db.Query(ctx,
		"SELECT "+linkColumns+" FROM links WHERE owner_id = $1 ORDER BY created_at",
		ownerID)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return collectLinks(op, rows)
}

func (r *repo) DeleteExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const op = "links.repo.DeleteExpired"

	rows, err := r.db.Query(ctx, `
		DELETE FROM links
		WHERE short_code IN (
			SELECT short_code FROM links
			WHERE expires_at IS NOT NULL AND expires_at < $1
			LIMIT $2
		)
		RETURNING short_code`,
		now, limit,
	)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return collectCodes(op, rows)
}

func (r *repo) DeleteIdleGuests(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	const op = "links.repo.DeleteIdleGuests"

	rows, err := r.db.Query(ctx, `
		DELETE FROM links
		WHERE short_code IN (
			SELECT short_code FROM links
			WHERE owner_id IS NULL AND last_accessed < $1
			LIMIT $2
		)
		RETURNING short_code`,
		cutoff, limit,
	)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return collectCodes(op, rows)
}

func collectLinks(op string, rows pgx.Rows) ([]Link, error) {
	defer rows.Close()

	var result []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, mapRepoError(op, err)
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}
	return result, nil
}

func collectCodes(op string, rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, mapRepoError(op, err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}
	return codes, nil
}
