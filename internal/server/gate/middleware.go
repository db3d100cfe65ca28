package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	tokenKey
)

// TokenFromRequest reads the token cookie first, then the bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(common.TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return BearerToken(r.Header.Get("Authorization"))
}

// BearerToken extracts the credential of an "Authorization: Bearer" value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth rejects unauthenticated requests with 401 and stores the
// claims and the presented token in the request context.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		claims, err := g.Authenticate(r.Context(), token)
		if err != nil {
			status, msg := rejection(err)
			if errors.Is(err, common.ErrTokenRevoked) {
				ClearCookie(w)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejection(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrTokenMissing):
		return http.StatusUnauthorized, "Authentication token is missing. Please log in."
	case errors.Is(err, common.ErrTokenRevoked):
		return http.StatusUnauthorized, "Invalid token."
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired. Please log in again."
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token. Please log in again."
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// SetCookie hands token to a browser client.
func SetCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the token cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// TokenFromContext returns the raw token accepted by RequireAuth.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
