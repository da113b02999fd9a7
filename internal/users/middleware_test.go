package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/avolkov/shortlink/internal/errx"
)

// mockAuthService implements Service for middleware tests.
type mockAuthService struct {
	authenticateFunc func(ctx context.Context, token string) (User, error)
}

func (m *mockAuthService) Register(ctx context.Context, username, password string) (User, error) {
	return User{}, errors.New("not implemented")
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (User, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, token)
	}
	return User{}, errx.E("users.service.Authenticate", errx.Unauthorized, errors.New("invalid token"))
}

func recordingHandler(gotUser **User, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if user, ok := FromContext(r.Context()); ok {
			*gotUser = &user
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	svc := &mockAuthService{
		authenticateFunc: func(ctx context.Context, token string) (User, error) {
			if token == "good-token" {
				return User{ID: userID, Username: "alice"}, nil
			}
			return User{}, errx.E("users.service.Authenticate", errx.Unauthorized, errors.New("invalid token"))
		},
	}

	t.Run("valid token attaches the user", func(t *testing.T) {
		var gotUser *User
		var called bool

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/links", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		RequireAuth(svc)(recordingHandler(&gotUser, &called)).ServeHTTP(rec, req)

		if !called {
			t.Fatal("handler was not called")
		}
		if gotUser == nil || gotUser.ID != userID {
			t.Errorf("user in context = %v, want ID %v", gotUser, userID)
		}
	})

	t.Run("missing header returns 401", func(t *testing.T) {
		var gotUser *User
		var called bool

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/links", nil)
		RequireAuth(svc)(recordingHandler(&gotUser, &called)).ServeHTTP(rec, req)

		if called {
			t.Error("handler should not be called")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("bad token returns 401", func(t *testing.T) {
		var gotUser *User
		var called bool

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/links", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		RequireAuth(svc)(recordingHandler(&gotUser, &called)).ServeHTTP(rec, req)

		if called {
			t.Error("handler should not be called")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestOptionalAuth(t *testing.T) {
	userID := uuid.New()
	svc := &mockAuthService{
		authenticateFunc: func(ctx context.Context, token string) (User, error) {
			if token == "good-token" {
				return User{ID: userID, Username: "alice"}, nil
			}
			return User{}, errx.E("users.service.Authenticate", errx.Unauthorized, errors.New("invalid token"))
		},
	}

	t.Run("no token proceeds as guest", func(t *testing.T) {
		var gotUser *User
		var called bool

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		OptionalAuth(svc)(recordingHandler(&gotUser, &called)).ServeHTTP(rec, req)

		if !called {
			t.Fatal("handler was not called")
		}
		if gotUser != nil {
			t.Errorf("user in context = %v, want none", gotUser)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("invalid token still proceeds as guest", func(t *testing.T) {
		var gotUser *User
		var called bool

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		OptionalAuth(svc)(recordingHandler(&gotUser, &called)).ServeHTTP(rec, req)

		if !called {
			t.Fatal("handler was not called")
		}
		if gotUser != nil {
			t.Errorf("user in context = %v, want none", gotUser)
		}
	})

	t.Run("valid token attaches the user", func(t *testing.T) {
		var gotUser *User
		var called bool

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		OptionalAuth(svc)(recordingHandler(&gotUser, &called)).ServeHTTP(rec, req)

		if !called {
			t.Fatal("handler was not called")
		}
		if gotUser == nil || gotUser.ID != userID {
			t.Errorf("user in context = %v, want ID %v", gotUser, userID)
		}
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard prefix", "Bearer abc123", "abc123"},
		{"lowercase prefix", "bearer abc123", "abc123"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"prefix only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			if got := bearerToken(req); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
