package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/campusbridge/lti-outcomes/internal/logger"
	"github.com/campusbridge/lti-outcomes/internal/version"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HandleHealth godoc
//
//	@Summary	Liveness and database readiness check
//	@Tags		Common
//	@Produce	json
//	@Success	200	{string}	string	"healthy"
//	@Failure	503	{string}	string	"database unreachable"
//	@Router		/health [get]
func HandleHealth(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.ContextRequestLogger(r.Context()).Error("health check database ping failed",
				slog.String("error", err.Error()))
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}
}

// HandleVersion godoc
//
//	@Summary	Build information
//	@Tags		Common
//	@Produce	json
//	@Success	200	{object}	version.Info
//	@Router		/version [get]
func HandleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(version.Get()); err != nil {
			logger.ContextRequestLogger(r.Context()).Error("failed to encode version response",
				slog.String("error", err.Error()))
		}
	}
}
