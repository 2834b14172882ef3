package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"attendance.service/pkg/telemetry"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AdminScope grants access to other employees' data and to privileged routes.
const AdminScope = "attendance:admin"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// AuthConfig holds the HS256 verification parameters.
type AuthConfig struct {
	Secret string
	Issuer string
}

// Claims is the identity extracted from a bearer token.
type Claims struct {
	EmployeeID string
	Scopes     map[string]struct{}
	ExpiresAt  time.Time
}

// IsAdmin reports whether the caller holds the admin scope.
func (c *Claims) IsAdmin() bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[AdminScope]
	return ok
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(token string, cfg AuthConfig) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		EmployeeID: subject,
		Scopes:     normalizeScopes(claims["scopes"]),
		ExpiresAt:  exp.Time,
	}, nil
}

func normalizeScopes(value interface{}) map[string]struct{} {
	out := make(map[string]struct{})
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok && str != "" {
				out[str] = struct{}{}
			}
		}
	case string:
		for _, str := range strings.Fields(v) {
			out[str] = struct{}{}
		}
	}
	return out
}

type claimsKey struct{}

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext retrieves claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// Auth rejects requests without a valid bearer token and records the caller
// on the context, the active span and the request logger.
type Auth struct {
	Config AuthConfig
}

func NewAuth(cfg AuthConfig) Auth {
	return Auth{Config: cfg}
}

func (a Auth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			unauthorized(w, ErrMissingToken)
			return
		}

		claims, err := ParseToken(token, a.Config)
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
			unauthorized(w, err)
			return
		}

		ctx := WithClaims(r.Context(), claims)
		ctx = telemetry.WithEmployeeID(ctx, claims.EmployeeID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", claims.EmployeeID))
		l := log.Ctx(ctx).With().Str("employeeId", claims.EmployeeID).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	msg := ErrInvalidToken.Error()
	if errors.Is(err, ErrMissingToken) {
		msg = ErrMissingToken.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="attendance"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
