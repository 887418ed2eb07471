package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brickly26/iMessage/internal/domain/user"
	"github.com/brickly26/iMessage/internal/repository"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type AccessClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// AuthService issues and validates the access tokens that gate every
// other operation. Sessions are stateless: the token itself is the
// session.
type AuthService struct {
	repo    repository.UserRepository
	secret  []byte
	ttl     time.Duration
	log     *logger.Logger
	timeout time.Duration
}

func NewAuthService(repo repository.UserRepository, secret string, ttl time.Duration, log *logger.Logger, timeout time.Duration) *AuthService {
	return &AuthService{repo: repo, secret: []byte(secret), ttl: ttl, log: log, timeout: timeout}
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Register creates a user from an email and password and signs them in.
// The username is claimed separately after registration.
func (s *AuthService) Register(ctx context.Context, email, password string) (user.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, "", fmt.Errorf("%w: invalid email", apperrors.ErrInvalidArgument)
	}
	if len(password) < 8 {
		return user.User{}, "", fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrInvalidArgument)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	u := user.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, &u); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return user.User{}, "", fmt.Errorf("%w: email already registered", apperrors.ErrConflict)
		}
		return user.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return user.User{}, "", err
	}
	s.log.Infof("registered user %s", u.ID)
	return u, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (user.User, string, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return user.User{}, "", ErrInvalidCredentials
		}
		return user.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return user.User{}, "", err
	}
	return u, token, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (user.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.repo.GetByID(ctx, id)
}

func (s *AuthService) issueToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies the signature and expiry and returns the
// user id the token was issued to.
func (s *AuthService) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	if claims.UserID == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	return claims.UserID, nil
}
