// Package auth resolves the calling organization for every API request.
// Production mode requires a bearer JWT (HS256, shared secret) carrying an
// org_id claim; dev mode falls back to the X-Org-ID header so local
// dashboards and curl work without minting tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type contextKey string

const orgContextKey contextKey = "pulse_org_id"

// Claims is the token payload accepted by the API
type Claims struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier parses and validates API tokens and carries the dev-mode policy
type Verifier struct {
	secret     []byte
	devMode    bool
	defaultOrg string
	log        zerolog.Logger
}

// NewVerifier builds a verifier from the shared signing secret.
// In dev mode the secret may be empty; requests then resolve their org from
// the X-Org-ID header or the configured default.
func NewVerifier(secret string, devMode bool, defaultOrg string, log zerolog.Logger) *Verifier {
	return &Verifier{
		secret:     []byte(secret),
		devMode:    devMode,
		defaultOrg: defaultOrg,
		log:        log.With().Str("component", "auth").Logger(),
	}
}

// ParseToken validates a raw bearer token and returns its claims
func (v *Verifier) ParseToken(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.OrgID == "" {
		return nil, errors.New("token missing org_id claim")
	}

	return claims, nil
}

// Sign mints a token for the given org. Used by tests and dev tooling.
func (v *Verifier) Sign(orgID, userID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OrgID:  orgID,
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}

// Middleware resolves the org for the request and stores it in the context.
// Requests that cannot be resolved are rejected with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, err := v.resolveOrg(r)
		if err != nil {
			v.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Unauthorized request")
			writeUnauthorized(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOrgID(r.Context(), orgID)))
	})
}

// resolveOrg extracts the organization from bearer token or dev headers
func (v *Verifier) resolveOrg(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		claims, err := v.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return "", fmt.Errorf("invalid bearer token: %w", err)
		}
		return claims.OrgID, nil
	}

	if v.devMode {
		if org := r.Header.Get("X-Org-ID"); org != "" {
			return org, nil
		}
		if v.defaultOrg != "" {
			return v.defaultOrg, nil
		}
	}

	return "", errors.New("missing bearer token")
}

// WithOrgID returns a context carrying the resolved organization
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgContextKey, orgID)
}

// OrgID returns the organization stored in the context, empty when absent
func OrgID(ctx context.Context) string {
	if org, ok := ctx.Value(orgContextKey).(string); ok {
		return org
	}
	return ""
}

// writeUnauthorized writes the API error envelope for auth failures
func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": err.Error(),
			"code":    "UNAUTHORIZED",
		},
	})
}
