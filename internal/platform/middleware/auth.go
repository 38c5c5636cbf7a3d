package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "caseflow/pkg/domain"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	ActorID   string
	Role      string
	ActorName string
}

type contextKeyActor struct{}

// ContextKeyActor is exported for use in handler tests.
var ContextKeyActor = contextKeyActor{}

// GetActor retrieves the authenticated actor from the context. The zero
// Actor (nil ID) means no authenticated actor is present.
func GetActor(ctx context.Context) id.Actor {
	actor, ok := ctx.Value(ContextKeyActor).(id.Actor)
	if !ok {
		return id.Actor{}
	}
	return actor
}

// WithActor injects an actor into the context. Handler tests use this to
// bypass the JWT middleware.
func WithActor(ctx context.Context, actor id.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequireAuth validates the bearer token and stores the resulting actor in
// the request context. Requests without a valid token get 401.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			actorID, err := id.ParseActorID(claims.ActorID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed actor id",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid token subject")
				return
			}
			role, err := id.ParseRole(claims.Role)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unknown role",
					"role", claims.Role,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid token role")
				return
			}

			actor := id.Actor{ID: actorID, Role: role, Name: claims.ActorName}
			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
