package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"notely-server/internal/domain"
	"notely-server/internal/identity"
	"notely-server/pkg/response"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	userKey      contextKey = "user"
	requestIDKey contextKey = "requestID"
	logStateKey  contextKey = "logState"
)

// UserDirectory finds or creates the local user for a verified identity.
type UserDirectory interface {
	GetOrCreate(ctx context.Context, profile domain.NewUser) (*domain.User, error)
}

// AuthMiddleware requires a bearer credential, resolves it to an external
// identity and attaches the matching local user to the request. Failures
// before resolution never reach the resolver or the directory.
func AuthMiddleware(resolver identity.Resolver, directory UserDirectory, timeout time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			resolveCtx, cancel := context.WithTimeout(r.Context(), timeout)
			ident, err := resolver.Resolve(resolveCtx, parts[1])
			cancel()
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					logger.Debug("credential rejected", "request_id", GetRequestID(r), "error", err)
					response.Unauthorized(w, "Invalid token")
					return
				}
				logger.Error("identity resolution failed", "request_id", GetRequestID(r), "error", err)
				response.InternalError(w, "Internal server error")
				return
			}

			user, err := directory.GetOrCreate(r.Context(), domain.NewUser{
				ExternalID: ident.SubjectID,
				Email:      ident.Email,
				Name:       ident.Name,
				AvatarURL:  ident.AvatarURL,
			})
			if err != nil {
				logger.Error("user lookup failed",
					"request_id", GetRequestID(r),
					"external_id", ident.SubjectID,
					"error", err,
				)
				response.InternalError(w, "Internal server error")
				return
			}

			setLoggedUser(r.Context(), user.ID)

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUser returns the local user attached by AuthMiddleware, or nil.
func GetUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(userKey).(*domain.User)
	return user
}
