package http

import (
	"context"
	"net/http"

	"expenses/internal/auth"
	"expenses/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth resolves the bearer token to a user id and stores it in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.BearerToken(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		userID, err := s.auth.Authenticate(r.Context(), raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next(w, r.WithContext(ctx))
	})
}

// userID returns the authenticated user id; empty outside requireAuth.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
