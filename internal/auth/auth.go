// Package auth guards the admin API with HS256 bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

const (
	Issuer         = "stripe-webhook-router"
	RoleAdmin      = "admin"
	DefaultTTL     = 24 * time.Hour
	blacklistKey   = "jwt:blacklist:"
	minSecretBytes = 16
)

// RevocationStore persists revoked tokens. *redis.Client satisfies it.
type RevocationStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Claims identifies an admin caller
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	logger  logging.Logger
	now     func() time.Time
}

// New returns an Auth signing with secret. revoked may be nil, in which case
// tokens cannot be revoked before they expire.
func New(secret string, revoked RevocationStore) (*Auth, error) {
	if len(secret) < minSecretBytes {
		return nil, errors.ConfigError(fmt.Sprintf("admin JWT secret must be at least %d bytes", minSecretBytes)).
			WithContext("secret_length", len(secret))
	}
	return &Auth{
		secret:  []byte(secret),
		ttl:     DefaultTTL,
		revoked: revoked,
		logger:  logging.Component("auth"),
		now:     time.Now,
	}, nil
}

// GenerateJWT issues a token for subject valid for the default TTL
func (a *Auth) GenerateJWT(subject string) (string, error) {
	now := a.now()
	claims := &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateJWT parses token and checks its signature, expiry and revocation
func (a *Auth) ValidateJWT(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.AuthError("token is empty")
	}

	if a.revoked != nil {
		if v, err := a.revoked.Get(ctx, blacklistKey+tokenString); err == nil && v != "" {
			return nil, errors.AuthError("token has been revoked")
		}
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, errors.AuthError("invalid token").WithCause(err)
	}
	if !token.Valid || claims.Role != RoleAdmin {
		return nil, errors.AuthError("invalid token")
	}
	return claims, nil
}

// Revoke blacklists token until it would have expired
func (a *Auth) Revoke(ctx context.Context, tokenString string) error {
	if a.revoked == nil {
		return errors.ConfigError("token revocation requires redis")
	}
	claims, err := a.ValidateJWT(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.revoked.Set(ctx, blacklistKey+tokenString, "1", ttl)
}

// RequireAuth rejects requests without a valid bearer token
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-Admin-Subject")
		tokenString, ok := bearerToken(r)
		if !ok {
			unauthorized(w)
			return
		}

		claims, err := a.ValidateJWT(r.Context(), tokenString)
		if err != nil {
			a.logger.WithContext(r.Context()).Debug("admin token rejected",
				logging.String("path", r.URL.Path),
				logging.Err(err),
			)
			unauthorized(w)
			return
		}

		r.Header.Set("X-Admin-Subject", claims.Subject)
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
}
