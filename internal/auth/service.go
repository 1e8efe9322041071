package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cranefleet/cranefleet/internal/shared"
)

const (
	sessionTTL = 12 * time.Hour
	apiTTL     = 365 * 24 * time.Hour
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	FindByLogin(ctx context.Context, login string) (User, error)
	Create(ctx context.Context, u User) (User, error)
}

// Service registers users, checks passwords and mints tokens.
type Service struct {
	repo   RepositoryPort
	secret []byte
	now    func() time.Time
}

// NewService constructs a Service signing tokens with secret.
func NewService(repo RepositoryPort, secret []byte) *Service {
	return &Service{repo: repo, secret: secret, now: time.Now}
}

// Register creates an active account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, login, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{Login: login, PasswordHash: string(hash), IsActive: true})
}

// Login validates credentials and returns a session token and an API token.
func (s *Service) Login(ctx context.Context, login, password string) (TokenPair, error) {
	user, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	session, err := s.mint(user, sessionTTL, false)
	if err != nil {
		return TokenPair{}, err
	}
	api, err := s.mint(user, apiTTL, true)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{SessionToken: session, APIToken: api}, nil
}

type claims struct {
	Login  string `json:"login"`
	APIKey bool   `json:"api_key,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) mint(user User, ttl time.Duration, apiKey bool) (string, error) {
	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Login:  user.Login,
		APIKey: apiKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// Verify parses a bearer token and returns the actor it identifies.
func (s *Service) Verify(tokenString string) (shared.Actor, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return shared.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return shared.Actor{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return shared.Actor{UserID: userID, Login: c.Login, APIKey: c.APIKey}, nil
}
