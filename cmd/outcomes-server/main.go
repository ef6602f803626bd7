package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/campusbridge/lti-outcomes/internal/config"
	"github.com/campusbridge/lti-outcomes/internal/database"
	"github.com/campusbridge/lti-outcomes/internal/logger"
	"github.com/campusbridge/lti-outcomes/internal/server"
	"github.com/campusbridge/lti-outcomes/internal/version"
)

//	@title			outcomes-server
//	@description	outcomes-server implements the LTI 1.1 Basic Outcomes and memberships services for external learning tools
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	Protocol-level failures (bad signatures, forged sourcedIds, unusable scores)
//	@description	are reported in-band as POX failure envelopes with HTTP 200, as the LTI 1.1
//	@description	specification requires.
//	@description
//	@description	## Request Limits
//	@description	All endpoints are protected by:
//	@description	- **Rate limiting**: Configurable requests per second (see env vars) - default 100 rps (set to 0 to disable)
//	@description	- **Request size limits**: Configurable (see env vars) - default 1MB
//	@description
//	@description	## Authentication & Authorization
//	@description
//	@description	The service endpoint does not use session credentials. Every request is
//	@description	body-signed with OAuth 1.0 HMAC-SHA1 using the shared secret registered for
//	@description	the consumer key; grade messages additionally carry a salted, tamper-evident
//	@description	sourcedId naming the (instance, user, launch) the grade belongs to.
//	@description
//	@license.name	MIT

//	@servers.url			https://outcomes.example.com
//	@servers.description	Production server
//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@accept		xml
//	@produce	xml

//	@tag.name			Outcomes
//	@tag.description	LTI 1.1 Basic Outcomes service endpoint

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, version)

func main() {
	cmd := &cobra.Command{
		Use:   "outcomes-server",
		Short: "LTI Basic Outcomes service server",
		Long:  `outcomes-server implements the LTI 1.1 Basic Outcomes grade passback and memberships services`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.Duration("OAUTH_TIMESTAMP_WINDOW", cfg.OAuthTimestampWindow),
		slog.Bool("DEBUG_EXTENSIONS", cfg.DebugExtensions),
	)

	dbCtx, dbCancel := context.WithTimeout(context.Background(), cfg.DatabasePingTimeout)
	defer dbCancel()

	if err := database.Migrate(dbCtx, cfg.DatabaseURL); err != nil {
		appLogger.Error("Failed to apply database migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		appLogger.Error("Failed to parse database URL", slog.String("error", err.Error()))
		os.Exit(1)
	}

	poolConfig.MaxConns = cfg.DBMaxConnections
	poolConfig.MinConns = cfg.DBMinConnections
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pool, err := pgxpool.NewWithConfig(dbCtx, poolConfig)
	if err != nil {
		appLogger.Error("Unable to create connection pool", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err = pool.Ping(dbCtx); err != nil {
		appLogger.Error("Error pinging database via pool", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("connected to PostgreSQL")

	queries := database.New(pool)

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := server.NewServer(
		pool,
		queries,
		cfg,
		appLogger,
	)

	defer server.DatabaseShutdown()

	if err := server.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("server shutdown complete")
	return nil
}
