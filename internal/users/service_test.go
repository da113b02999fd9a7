package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avolkov/shortlink/internal/errx"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// mockUserRepository implements Repository for testing.
type mockUserRepository struct {
	createFunc        func(ctx context.Context, user User) (User, error)
	getByUsernameFunc func(ctx context.Context, username string) (User, error)
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (User, error)
}

func (m *mockUserRepository) Create(ctx context.Context, user User) (User, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	return user, nil
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	if m.getByUsernameFunc != nil {
		return m.getByUsernameFunc(ctx, username)
	}
	return User{}, errx.E("repo.GetByUsername", errx.NotFound, errors.New("not found"))
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return User{}, errx.E("repo.GetByID", errx.NotFound, errors.New("not found"))
}

func newTestService(t *testing.T, repo Repository, cfg ServiceConfig) Service {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	svc, err := NewService(repo, cfg)
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	return svc
}

func TestNewService(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := NewService(&mockUserRepository{}, ServiceConfig{Secret: "tooshort"})
		if err == nil {
			t.Fatal("NewService() expected error for short secret, got nil")
		}
	})

	t.Run("accepts 32-byte secret", func(t *testing.T) {
		svc, err := NewService(&mockUserRepository{}, ServiceConfig{Secret: testSecret})
		if err != nil {
			t.Fatalf("NewService() unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("NewService() returned nil")
		}
	})
}

func TestServiceRegister(t *testing.T) {
	t.Run("stores a bcrypt hash, never the password", func(t *testing.T) {
		var captured User
		repo := &mockUserRepository{
			createFunc: func(ctx context.Context, user User) (User, error) {
				captured = user
				user.ID = uuid.New()
				return user, nil
			},
		}

		svc := newTestService(t, repo, ServiceConfig{})

		got, err := svc.Register(context.Background(), "alice", "correct horse battery")
		if err != nil {
			t.Fatalf("Register() unexpected error: %v", err)
		}

		if captured.HashedPassword == "correct horse battery" {
			t.Error("password stored in plaintext")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(captured.HashedPassword), []byte("correct horse battery")); err != nil {
			t.Errorf("stored hash does not verify: %v", err)
		}
		if got.ID == uuid.Nil {
			t.Error("returned User.ID is nil")
		}
	})

	t.Run("duplicate username returns Conflict", func(t *testing.T) {
		repo := &mockUserRepository{
			createFunc: func(ctx context.Context, user User) (User, error) {
				return User{}, errx.E("repo.Create", errx.Conflict, errors.New("duplicate username"))
			},
		}

		svc := newTestService(t, repo, ServiceConfig{})

		_, err := svc.Register(context.Background(), "alice", "correct horse battery")
		if err == nil {
			t.Fatal("Register() expected error, got nil")
		}
		if errx.KindOf(err) != errx.Conflict {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Conflict)
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name     string
			username string
			password string
		}{
			{"username too short", "ab", "longenough"},
			{"username too long", strings.Repeat("a", MaxUsernameLength+1), "longenough"},
			{"password too short", "alice", "short"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				createCalls := 0
				repo := &mockUserRepository{
					createFunc: func(ctx context.Context, user User) (User, error) {
						createCalls++
						return user, nil
					},
				}

				svc := newTestService(t, repo, ServiceConfig{})

				_, err := svc.Register(context.Background(), tt.username, tt.password)
				if err == nil {
					t.Fatal("Register() expected error, got nil")
				}
				if errx.KindOf(err) != errx.Invalid {
					t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Invalid)
				}
				if createCalls != 0 {
					t.Errorf("Create called %d times, want 0", createCalls)
				}
			})
		}
	})
}

func TestServiceLoginAndAuthenticate(t *testing.T) {
	userID := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt setup failed: %v", err)
	}

	repo := &mockUserRepository{
		getByUsernameFunc: func(ctx context.Context, username string) (User, error) {
			if username != "alice" {
				return User{}, errx.E("repo.GetByUsername", errx.NotFound, errors.New("not found"))
			}
			return User{ID: userID, Username: "alice", HashedPassword: string(hash)}, nil
		},
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (User, error) {
			if id != userID {
				return User{}, errx.E("repo.GetByID", errx.NotFound, errors.New("not found"))
			}
			return User{ID: userID, Username: "alice"}, nil
		},
	}

	t.Run("round trip: login then authenticate", func(t *testing.T) {
		svc := newTestService(t, repo, ServiceConfig{})

		token, err := svc.Login(context.Background(), "alice", "correct horse battery")
		if err != nil {
			t.Fatalf("Login() unexpected error: %v", err)
		}
		if token == "" {
			t.Fatal("Login() returned empty token")
		}

		user, err := svc.Authenticate(context.Background(), token)
		if err != nil {
			t.Fatalf("Authenticate() unexpected error: %v", err)
		}
		if user.ID != userID {
			t.Errorf("user.ID = %v, want %v", user.ID, userID)
		}
	})

	t.Run("wrong password returns Unauthorized", func(t *testing.T) {
		svc := newTestService(t, repo, ServiceConfig{})

		_, err := svc.Login(context.Background(), "alice", "wrong password")
		if err == nil {
			t.Fatal("Login() expected error, got nil")
		}
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unauthorized)
		}
	})

	t.Run("unknown username returns Unauthorized, not NotFound", func(t *testing.T) {
		svc := newTestService(t, repo, ServiceConfig{})

		_, err := svc.Login(context.Background(), "mallory", "correct horse battery")
		if err == nil {
			t.Fatal("Login() expected error, got nil")
		}
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unauthorized)
		}
	})

	t.Run("expired token returns Unauthorized", func(t *testing.T) {
		issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		// Issue at a frozen time, verify two days later.
		issuer := newTestService(t, repo, ServiceConfig{
			TokenTTL: time.Hour,
			Now:      func() time.Time { return issued },
		})
		verifier := newTestService(t, repo, ServiceConfig{
			TokenTTL: time.Hour,
			Now:      func() time.Time { return issued.Add(48 * time.Hour) },
		})

		token, err := issuer.Login(context.Background(), "alice", "correct horse battery")
		if err != nil {
			t.Fatalf("Login() unexpected error: %v", err)
		}

		_, err = verifier.Authenticate(context.Background(), token)
		if err == nil {
			t.Fatal("Authenticate() expected error for expired token, got nil")
		}
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unauthorized)
		}
	})

	t.Run("token signed with a different secret is rejected", func(t *testing.T) {
		issuer := newTestService(t, repo, ServiceConfig{
			Secret: "another-secret-another-secret-xx",
		})
		verifier := newTestService(t, repo, ServiceConfig{})

		token, err := issuer.Login(context.Background(), "alice", "correct horse battery")
		if err != nil {
			t.Fatalf("Login() unexpected error: %v", err)
		}

		_, err = verifier.Authenticate(context.Background(), token)
		if err == nil {
			t.Fatal("Authenticate() expected error for foreign signature, got nil")
		}
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unauthorized)
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		svc := newTestService(t, repo, ServiceConfig{})

		_, err := svc.Authenticate(context.Background(), "not.a.token")
		if err == nil {
			t.Fatal("Authenticate() expected error, got nil")
		}
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unauthorized)
		}
	})

	t.Run("valid token for a deleted user is rejected", func(t *testing.T) {
		emptyRepo := &mockUserRepository{
			getByUsernameFunc: repo.getByUsernameFunc,
			// getByIDFunc left nil: defaults to NotFound
		}

		svc := newTestService(t, emptyRepo, ServiceConfig{})

		token, err := svc.Login(context.Background(), "alice", "correct horse battery")
		if err != nil {
			t.Fatalf("Login() unexpected error: %v", err)
		}

		_, err = svc.Authenticate(context.Background(), token)
		if err == nil {
			t.Fatal("Authenticate() expected error, got nil")
		}
		if errx.KindOf(err) != errx.Unauthorized {
			t.Errorf("KindOf(err) = %v, want %v", errx.KindOf(err), errx.Unauthorized)
		}
	})
}
