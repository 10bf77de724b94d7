package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection-pool section of the health payload.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
	Healthy       bool  `json:"healthy"`
}

// Stats summarizes the pool for the health payload.
func Stats(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
		Healthy:       s.TotalConns() > 0,
	}
}

// HealthHandler reports the service identity, the current registry size, and
// the snapshot store's reachability. A nil pool means the registry runs
// purely in memory; that is healthy, not degraded.
func HealthHandler(version string, pool *pgxpool.Pool, records func(context.Context) int) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		body := map[string]any{
			"status":  "ok",
			"version": version,
		}
		if records != nil {
			body["records"] = records(ctx)
		}
		if pool == nil {
			body["snapshots"] = "disabled"
			return c.JSON(http.StatusOK, body)
		}

		stats := Stats(pool)
		if err := pool.Ping(ctx); err != nil {
			stats.Healthy = false
			body["status"] = "degraded"
			body["snapshots"] = "unreachable"
			body["error"] = err.Error()
			body["pool"] = stats
			return c.JSON(http.StatusServiceUnavailable, body)
		}

		body["snapshots"] = "ok"
		body["pool"] = stats
		return c.JSON(http.StatusOK, body)
	}
}
