package handler

import (
	"net/http"

	"github.com/formwork/platform/internal/infra"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthHandler reports liveness plus the depth of the action queue, so
// operators can spot a stalled worker fleet from the health probe alone.
func HealthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := infra.HealthCheck(r.Context(), pool); err != nil {
			RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}

		var queueDepth int64
		row := pool.QueryRow(r.Context(), `SELECT count(*) FROM action_jobs`)
		if err := row.Scan(&queueDepth); err != nil {
			queueDepth = -1
		}

		RespondJSON(w, http.StatusOK, map[string]any{
			"status":      "healthy",
			"queue_depth": queueDepth,
		})
	}
}
