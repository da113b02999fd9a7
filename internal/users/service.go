package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avolkov/shortlink/internal/errx"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8

	DefaultTokenTTL = 24 * time.Hour

	minSecretLength = 32
)

// Service defines account and credential operations.
type Service interface {
	Register(ctx context.Context, username, password string) (User, error)
	Login(ctx context.Context, username, password string) (token string, err error)
	Authenticate(ctx context.Context, token string) (User, error)
}

type service struct {
	repo     Repository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Secret   string // HS256 signing key, at least 32 bytes
	TokenTTL time.Duration
	Now      func() time.Time // test hook
}

// NewService creates a new service instance.
func NewService(repo Repository, config ServiceConfig) (Service, error) {
	if len(config.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}

	ttl := config.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		repo:     repo,
		secret:   []byte(config.Secret),
		tokenTTL: ttl,
		now:      now,
	}, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *service) Register(ctx context.Context, username, password string) (User, error) {
	const op = "users.service.Register"

	if err := validateUsername(username); err != nil {
		return User{}, errx.E(op, errx.Invalid, err)
	}
	if len(password) < MinPasswordLength {
		return User{}, errx.E(op, errx.Invalid,
			fmt.Errorf("password too short (minimum %d characters)", MinPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errx.E(op, errx.Internal, err)
	}

	created, err := s.repo.Create(ctx, User{
		Username:       username,
		HashedPassword: string(hash),
	})
	if err != nil {
		if errx.KindOf(err) == errx.Conflict {
			return User{}, errx.E(op, errx.Conflict, fmt.Errorf("username %q is already taken", username))
		}
		return User{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

// Login verifies the credentials and issues a signed bearer token.
func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	const op = "users.service.Login"

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return "", errx.E(op, errx.Unauthorized, errors.New("invalid credentials"))
		}
		return "", errx.E(op, errx.KindOf(err), err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", errx.E(op, errx.Unauthorized, errors.New("invalid credentials"))
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errx.E(op, errx.Internal, err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to its user.
func (s *service) Authenticate(ctx context.Context, token string) (User, error) {
	const op = "users.service.Authenticate"

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return User{}, errx.E(op, errx.Unauthorized, errors.New("invalid or expired token"))
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return User{}, errx.E(op, errx.Unauthorized, errors.New("malformed token subject"))
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return User{}, errx.E(op, errx.Unauthorized, errors.New("unknown user"))
		}
		return User{}, errx.E(op, errx.KindOf(err), err)
	}
	return user, nil
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return fmt.Errorf("username too short (minimum %d characters)", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username too long (maximum %d characters)", MaxUsernameLength)
	}
	return nil
}
