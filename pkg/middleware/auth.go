package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/weiawesome/wes-io-live/chat-client/pkg/jwt"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/response"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

var ErrMissingToken = errors.New("missing bearer token")

// TokenValidator checks an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

type claimsKey struct{}

// AuthMiddleware validates JWT bearer tokens.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if err != nil {
			response.Unauthorized(w, r, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches claims when a token is presented. A request
// with no token passes through; an invalid one is rejected.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authenticate(r)
		if errors.Is(err, ErrMissingToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			response.Unauthorized(w, r, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*jwt.Claims, error) {
	token, ok := BearerToken(r)
	if !ok {
		return nil, ErrMissingToken
	}
	claims, err := m.validator.ValidateToken(token)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Debug().Err(err).Msg("token rejected")
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get(AuthHeaderKey)
	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	return token, token != ""
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey{}, claims)
	l := log.Ctx(ctx).With().Str(log.FieldUserID, claims.UserID).Logger()
	return log.WithLogger(ctx, l)
}

// GetClaims returns the claims attached by the middleware, if any.
func GetClaims(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims, ok
}

// GetUserID extracts the user ID from the request context.
func GetUserID(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok {
		return claims.UserID
	}
	return ""
}

// GetUsername extracts the username from the request context.
func GetUsername(ctx context.Context) string {
	if claims, ok := GetClaims(ctx); ok {
		return claims.Username
	}
	return ""
}
