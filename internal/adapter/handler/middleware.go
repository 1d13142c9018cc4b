package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserIDMiddleware trusts the X-User-ID header set by the auth proxy in front
// of the service and rejects requests without it.
func UserIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallbackTokenHeader carries the shared secret of the payment gateway.
const CallbackTokenHeader = "X-Callback-Token"

// CallbackTokenMiddleware admits only requests presenting token. With no
// token configured every request is refused.
func CallbackTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				respondError(w, http.StatusForbidden, "callbacks_disabled", "payment callbacks are not enabled")
				return
			}
			if !validCallbackToken(token, r.Header.Get(CallbackTokenHeader)) {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid callback token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validCallbackToken(want, got string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
