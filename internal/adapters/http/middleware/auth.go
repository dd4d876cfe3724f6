package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shepherd/internal/domain/access"
	"shepherd/internal/domain/account"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const actorContextKey contextKey = "actor"

// ErrBadToken is returned for tokens that fail verification.
var ErrBadToken = errors.New("invalid token")

// Claims is the bearer token payload issued by the identity provider.
// The subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig holds the shared HMAC secret and the expected issuer.
type TokenConfig struct {
	Secret []byte
	Issuer string // checked when non-empty
}

// IssueToken signs a token for sub with role, valid for ttl.
// PRE: secret is non-empty; role parses
// POST: returns an HS256 compact JWT
func IssueToken(cfg TokenConfig, sub string, role account.Role, ttl time.Duration, now time.Time) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", errors.New("token secret is empty")
	}
	c := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(cfg.Secret)
}

// ParseToken verifies raw and returns the actor it names.
// POST: only HMAC-signed, unexpired tokens with a subject and a known role pass
func ParseToken(cfg TokenConfig, raw string) (access.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || strings.TrimSpace(c.Subject) == "" {
		return access.Actor{}, ErrBadToken
	}
	role, err := account.ParseRole(c.Role)
	if err != nil {
		return access.Actor{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	return access.Actor{ID: c.Subject, Role: role}, nil
}

// RequireActor returns middleware that resolves the bearer token into an
// actor and rejects the request with 401 when it cannot.
func RequireActor(cfg TokenConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="shepherd"`)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			actor, err := ParseToken(cfg, raw)
			if err != nil {
				slog.Info("auth_event", "event", "token_rejected", "path", r.URL.Path, "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="shepherd", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// ActorFromContext extracts the actor set by RequireActor.
func ActorFromContext(ctx context.Context) (access.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(access.Actor)
	return actor, ok
}

// ContextWithActor returns a context with the given actor set.
func ContextWithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
