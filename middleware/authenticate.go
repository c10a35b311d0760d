package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const bracketContextKey contextKey = "ticket_bracket_id"

// RequireTicket accepts "Authorization: Bearer <ticket>" and stores the
// ticket's bracket id in the request context.
func RequireTicket(issuer *TicketIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			bracketID, err := issuer.Parse(strings.TrimSpace(token))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), bracketContextKey, bracketID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetTicketBracketIDFromContext(ctx context.Context) (int, error) {
	id, ok := ctx.Value(bracketContextKey).(int)
	if !ok {
		return 0, errors.New("ticket bracket id not found in context")
	}
	return id, nil
}
