package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const pingTimeout = 3 * time.Second

// Pinger is the part of the pool the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PoolStats struct {
	TotalConns    int32 `json:"totalConns"`
	IdleConns     int32 `json:"idleConns"`
	AcquiredConns int32 `json:"acquiredConns"`
	MaxConns      int32 `json:"maxConns"`
}

// HealthReport is the body of both health endpoints.
type HealthReport struct {
	Status      string     `json:"status"`
	Environment string     `json:"environment,omitempty"`
	Timestamp   string     `json:"timestamp"`
	LatencyMS   int64      `json:"latencyMs,omitempty"`
	Pool        *PoolStats `json:"pool,omitempty"`
}

// HealthHandler pings Postgres and answers 503 when it is unreachable.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return readiness(pool, func() *PoolStats {
		s := pool.Stat()
		return &PoolStats{
			TotalConns:    s.TotalConns(),
			IdleConns:     s.IdleConns(),
			AcquiredConns: s.AcquiredConns(),
			MaxConns:      s.MaxConns(),
		}
	})
}

func readiness(p Pinger, stats func() *PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		report := HealthReport{
			Status:    "ok",
			Timestamp: start.UTC().Format(time.RFC3339),
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if stats != nil {
			report.Pool = stats()
		}
		if err != nil {
			zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("database ping failed")
			report.Status = "unavailable"
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}

// LivenessHandler answers without touching the database.
func LivenessHandler(env string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthReport{
			Status:      "ok",
			Environment: env,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
