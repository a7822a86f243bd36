// Command gatewayd runs a demo HTTP server behind the goGate gateway.
//
// Configuration comes from GOGATE_* environment variables (and a .env
// file), or from a YAML file passed with -config. Without a reachable Redis
// outside production mode an embedded miniredis is used. With
// GOGATE_POSTGRES_DSN set, tenants and roles are read from PostgreSQL;
// otherwise a single demo tenant is served from memory.
//
// Routes:
//
//	GET  /healthz                  liveness
//	GET  /metrics                  Prometheus exposition
//	GET  /api/csrf                 issue the CSRF cookie
//	POST /internal/sessions        open a session (service credentials)
//	POST /internal/sessions/mfa    mark a session MFA-verified (service credentials)
//	POST /api/auth/logout          end the current session
//	GET  /api/me                   the authenticated identity
//	GET  /api/appointments         requires appointment:read
//	POST /api/admin/settings       requires settings:update, MFA by path
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/pgstore"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/tenant"
)

const demoTenant = "demo"

func main() {
	var (
		addr       = flag.String("addr", ":8080", "listen address")
		configPath = flag.String("config", "", "optional YAML configuration file")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*addr, *configPath, logger); err != nil {
		logger.Error("gatewayd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(addr, configPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	rdb, closeRedis, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	b := goGate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithAuditSink(goGate.NewSlogSink(logger))

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.Open(ctx, pgstore.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		b.WithTenantProvider(tenant.NewPostgresProvider(pool)).
			WithRoleProvider(permission.NewPostgresRoleProvider(pool))
		logger.Info("tenants and roles served from postgres")
	} else {
		roles := permission.NewStaticRoleProvider(permission.RoleCustomer)
		roles.Assign(demoTenant, "admin", permission.RoleAdmin)
		roles.Assign(demoTenant, "staff", permission.RoleStaff)
		b.WithTenantProvider(tenant.NewStaticProvider(tenant.Context{
			ID:     demoTenant,
			Name:   "Demo Salon",
			Plan:   tenant.PlanProfessional,
			Active: true,
		})).WithRoleProvider(roles)
		logger.Info("serving demo tenant from memory", slog.String("tenant", demoTenant))
	}

	gw, err := b.Build()
	if err != nil {
		return err
	}
	defer gw.Close()

	report, _ := json.Marshal(gw.SecurityReport())
	logger.Info("gateway ready", slog.String("security_report", string(report)))

	srv := &http.Server{
		Addr:              addr,
		Handler:           routes(gw, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func loadConfig(path string) (goGate.Config, error) {
	if path != "" {
		return goGate.LoadConfigFile(path)
	}
	return goGate.LoadConfigFromEnv()
}

func connectRedis(ctx context.Context, cfg goGate.Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := client.Ping(pingCtx).Err()
	if err == nil {
		logger.Info("using redis", slog.String("addr", cfg.Redis.Addr))
		return client, func() { _ = client.Close() }, nil
	}
	_ = client.Close()
	if cfg.Security.ProductionMode {
		return nil, nil, err
	}

	mr, mrErr := miniredis.Run()
	if mrErr != nil {
		return nil, nil, mrErr
	}
	logger.Warn("redis unreachable, using embedded miniredis",
		slog.String("addr", cfg.Redis.Addr),
		slog.String("error", err.Error()))
	client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}
