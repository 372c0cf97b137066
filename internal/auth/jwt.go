package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey struct{}

// JWTAuth verifies HS256 bearer tokens issued by the identity provider. The
// token subject is the user id. A JWTAuth without a secret is disabled and
// accepts every request.
type JWTAuth struct {
	secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret)}
}

func (a *JWTAuth) Enabled() bool {
	return len(a.secret) > 0
}

// Verify parses token and returns its user id: the sub claim, or the userId
// claim when sub is empty.
func (a *JWTAuth) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		sub, _ = claims["userId"].(string)
	}
	if sub == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return sub, nil
}

// TokenFromRequest reads the bearer token from the Authorization header, or
// from the access_token query parameter for websocket upgrades where browsers
// cannot set headers.
func TokenFromRequest(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return r.URL.Query().Get("access_token")
}

// Authenticate verifies the request token and stores the user id in the
// returned request's context. When auth is disabled the request is returned
// as is.
func (a *JWTAuth) Authenticate(r *http.Request) (*http.Request, error) {
	if !a.Enabled() {
		return r, nil
	}
	userID, err := a.Verify(TokenFromRequest(r))
	if err != nil {
		return r, err
	}
	return r.WithContext(WithUserID(r.Context(), userID)), nil
}

// SetUnauthorizedHeaders sets the WWW-Authenticate challenge.
func (a *JWTAuth) SetUnauthorizedHeaders(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// Authorize reports whether the caller may act on userID. Without an
// authenticated user in ctx every id is allowed.
func Authorize(ctx context.Context, userID string) bool {
	subject, ok := UserIDFromContext(ctx)
	return !ok || subject == userID
}
