package user

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dbarbosa-dev/user-identity-service/app/observability/metrics"
	"github.com/dbarbosa-dev/user-identity-service/internal/api/auth"
)

const lastAccessTimeout = 5 * time.Second

// TrackLastAccess returns middleware that stamps the authenticated caller's
// lastAccess timestamp after each request. The update is fire-and-forget: it
// runs on its own goroutine with a context detached from the request, its
// outcome never surfaces to the client, and failures are only logged and
// counted. Requests without an authenticated caller are untouched.
func TrackLastAccess(svc UserService, logger *slog.Logger, m *metrics.AppMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			if m != nil {
				m.UserRequestsTotal.Add(r.Context(), 1)
			}

			userIDStr, ok := auth.GetUserIDFromContext(r.Context())
			if !ok || userIDStr == "" {
				return
			}
			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return
			}

			if m != nil {
				m.LastAccessUpdatesTotal.Add(r.Context(), 1)
			}

			// Detached from the request lifecycle: the response has already
			// been written and must not wait on this update.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), lastAccessTimeout)
				defer cancel()

				if err := svc.RecordAccess(ctx, userID); err != nil {
					logger.Warn("Failed to update user lastAccess",
						slog.String("userID", userID.String()),
						slog.Any("error", err),
					)
					if m != nil {
						m.LastAccessFailuresTotal.Add(ctx, 1)
					}
				}
			}()
		})
	}
}
