package links

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avolkov/shortlink/internal/errx"
)

func TestIsCodeUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "short code unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "links_short_code_key"},
			want: true,
		},
		{
			name: "wrapped unique violation",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "links_short_code_key"}),
			want: true,
		},
		{
			name: "unique violation on another constraint",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"},
			want: false,
		},
		{
			name: "different error code",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "links_short_code_key"},
			want: false,
		},
		{
			name: "not a pg error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCodeUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isCodeUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapRepoError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind errx.Kind
	}{
		{
			name:     "no rows maps to NotFound",
			err:      pgx.ErrNoRows,
			wantKind: errx.NotFound,
		},
		{
			name:     "wrapped no rows maps to NotFound",
			err:      fmt.Errorf("scan: %w", pgx.ErrNoRows),
			wantKind: errx.NotFound,
		},
		{
			name:     "code unique violation maps to Conflict",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "links_short_code_key"},
			wantKind: errx.Conflict,
		},
		{
			name:     "anything else maps to Unavailable",
			err:      errors.New("connection refused"),
			wantKind: errx.Unavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapRepoError("links.repo.Test", tt.err)
			if errx.KindOf(got) != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", errx.KindOf(got), tt.wantKind)
			}
			if errx.OpOf(got) != "links.repo.Test" {
				t.Errorf("OpOf() = %q, want %q", errx.OpOf(got), "links.repo.Test")
			}
		})
	}
}
