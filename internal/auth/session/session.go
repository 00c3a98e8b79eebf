// Package session issues and verifies admin session tokens.
//
// Tokens are HS256 JWTs signed with a shared secret. They gate the mutating
// catalog routes; public reads never require one.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/ppoulin/vitrine/internal/platform/errors"
)

// defaultTTL bounds how long an admin session stays valid.
const defaultTTL = 12 * time.Hour

// sessionEnv holds raw env values before post-parse validation.
type sessionEnv struct {
	Issuer string        `env:"VITRINE_SESSION_ISSUER" envDefault:"vitrine"`
	Secret string        `env:"VITRINE_SESSION_SECRET"`
	TTL    time.Duration `env:"VITRINE_SESSION_TTL"`
}

// Config defines how session tokens are signed and verified.
type Config struct {
	Issuer string
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// Claims captures validated session claims.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LoadConfigFromEnv reads session token configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw sessionEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	secret := strings.TrimSpace(raw.Secret)
	if secret == "" {
		return Config{}, fmt.Errorf("VITRINE_SESSION_SECRET is required")
	}
	ttl := raw.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer: strings.TrimSpace(raw.Issuer),
		Secret: []byte(secret),
		TTL:    ttl,
		Now:    now,
	}, nil
}

// Issue signs a session token for the given admin subject.
func Issue(cfg Config, subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if len(cfg.Secret) == 0 {
		return "", errors.New("session signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := cfg.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token.
func Verify(cfg Config, token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "session token is required")
	}
	if len(cfg.Secret) == 0 {
		return Claims{}, errors.New("session verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return cfg.Secret, nil
	},
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.Wrap(apperrors.CodeAuthTokenExpired, "session token expired", err)
		}
		return Claims{}, apperrors.Wrap(apperrors.CodeAuthTokenInvalid, "session token invalid", err)
	}

	claims := Claims{
		Subject: parsed.Subject,
		Issuer:  parsed.Issuer,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}
