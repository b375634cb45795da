// Package auth issues and validates the JWTs that front the wallet API.
// Logout revokes a token by blacklisting it until its natural expiry; the
// blacklist table is authoritative and Redis fronts the hot path.
package auth

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
)

const DefaultTokenTTL = 2 * time.Hour

// RevocationCache fronts the blacklist table. A cache miss is never
// authoritative; the database is still consulted.
type RevocationCache interface {
	MarkTokenRevoked(ctx context.Context, token string, until time.Time) error
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

type Service interface {
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*models.UserClaims, error)
}

type service struct {
	users     repositories.UserRepository
	cache     RevocationCache
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewService(users repositories.UserRepository, cache RevocationCache, jwtSecret string, tokenTTL time.Duration) Service {
	if users == nil {
		panic("user repository is required")
	}
	if jwtSecret == "" {
		panic("jwt secret is required")
	}
	if tokenTTL == 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &service{
		users:     users,
		cache:     cache,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}

	expiresAt := claims.ExpiresAt.Time
	if err := s.users.BlacklistToken(token, expiresAt); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.MarkTokenRevoked(ctx, token, expiresAt); err != nil {
			log.Printf("failed to cache token revocation: %v", err)
		}
	}
	return nil
}

func (s *service) ValidateToken(ctx context.Context, token string) (*models.UserClaims, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if revoked, err := s.cache.IsTokenRevoked(ctx, token); err == nil && revoked {
			return nil, ErrTokenRevoked
		}
	}
	revoked, err := s.users.IsTokenBlacklisted(token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *service) generateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "digital-wallet-api",
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
		},
		UserID: user.ID,
		Email:  user.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *service) parseToken(tokenString string) (*models.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
