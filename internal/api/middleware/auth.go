package middleware

import (
	"context"
	"net/http"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UsernameCtxKey contextKey = "username"
)

type TokenVerifier interface {
	VerifyToken(token string) (*model.Principal, error)
}

// Authenticator admits requests carrying a valid "Authorization: Bearer"
// token. No Authorization header answers 401; a header with another scheme
// or a bad token answers 403.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := jwtauth.TokenFromHeader(r)
			if token == "" && r.Header.Get("Authorization") != "" {
				common.RespondWithError(w, http.StatusForbidden, "Invalid token")
				return
			}

			principal, err := verifier.VerifyToken(token)
			if err != nil {
				common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserIDCtxKey, principal.UserID)
			ctx = context.WithValue(ctx, UsernameCtxKey, principal.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameCtxKey).(string)
	return username, ok
}
