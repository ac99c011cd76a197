package http

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier resolves a bearer credential to a customer id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type ctxKey int

const callerIDKey ctxKey = iota

// Authenticator rejects requests without a valid bearer token and
// stores the resolved customer id on the request context.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or malformed credential"})
				return
			}
			callerID, err := verifier.Verify(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credential"})
				return
			}
			ctx := context.WithValue(r.Context(), callerIDKey, callerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func callerID(ctx context.Context) string {
	id, _ := ctx.Value(callerIDKey).(string)
	return id
}
