package middleware

import (
	"net/http"
	"strings"

	"github.com/luisromero-dev/storefront-backend/api/responses"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
	"github.com/luisromero-dev/storefront-backend/pkg/logger"
)

const guestTokenHeader = "X-Guest-Token"

// GuestSession requires the anonymous cart token header and seeds the
// context with it. The token is an opaque client-generated identifier; the
// server never mints one.
func GuestSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(guestTokenHeader))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-Guest-Token header required"))
				return
			}

			w.Header().Set(guestTokenHeader, token)
			next.ServeHTTP(w, r.WithContext(WithGuestToken(r.Context(), token)))
		})
	}
}
