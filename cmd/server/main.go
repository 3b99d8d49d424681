package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"wardgate/internal/analytics"
	"wardgate/internal/approval"
	"wardgate/internal/audit"
	"wardgate/internal/auth"
	"wardgate/internal/catalog"
	"wardgate/internal/grants"
	"wardgate/internal/grants/workers/sweeper"
	"wardgate/internal/platform/config"
	"wardgate/internal/platform/httpserver"
	"wardgate/internal/platform/logger"
	"wardgate/internal/platform/metrics"
	"wardgate/internal/resolver"
	"wardgate/internal/roles"
	"wardgate/internal/seeder"
	httptransport "wardgate/internal/transport/http"
	"wardgate/pkg/secrets"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	mx := metrics.New()
	cat := catalog.Default()

	if cfg.JWTSigningKey == "" {
		key, err := secrets.Generate()
		if err != nil {
			log.Error("failed to generate signing key", "error", err)
			os.Exit(1)
		}
		cfg.JWTSigningKey = key
		log.Warn("no signing key configured, generated an ephemeral one; tokens will not survive restarts")
	}

	log.Info("initializing wardgate",
		"addr", cfg.Addr,
		"sweep_interval", cfg.SweepInterval.String(),
		"postgres", cfg.DatabaseURL != "",
	)

	var (
		roleStore     roles.Store
		grantStore    grants.Store
		approvalStore approval.Store
		auditStore    audit.Store
		userStore     auth.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		roleStore = roles.NewPostgres(db)
		grantStore = grants.NewPostgres(db)
		approvalStore = approval.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		userStore = auth.NewPostgres(db)
	} else {
		roleStore = roles.NewInMemoryStore()
		grantStore = grants.NewInMemoryStore()
		approvalStore = approval.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		userStore = auth.NewInMemoryStore()
	}

	roleSvc, err := roles.NewService(roleStore, cat, roles.WithLogger(log))
	if err != nil {
		log.Error("failed to build role service", "error", err)
		os.Exit(1)
	}
	grantMgr, err := grants.NewManager(grantStore, cat,
		grants.WithLogger(log),
		grants.WithMetrics(mx),
	)
	if err != nil {
		log.Error("failed to build grant manager", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenService(cfg.JWTSigningKey, "wardgate", cfg.TokenTTL)
	authSvc, err := auth.NewService(userStore, tokens,
		auth.WithLogger(log),
		auth.WithMetrics(mx),
	)
	if err != nil {
		log.Error("failed to build auth service", "error", err)
		os.Exit(1)
	}

	auditPub := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(1024),
		audit.WithPublisherLogger(log),
	)
	defer auditPub.Close()

	resolverSvc, err := resolver.NewService(roleSvc, grantMgr, authSvc, cat,
		resolver.WithLogger(log),
		resolver.WithMetrics(mx),
		resolver.WithEmitter(auditPub),
	)
	if err != nil {
		log.Error("failed to build resolver", "error", err)
		os.Exit(1)
	}

	engine, err := approval.NewEngine(approvalStore, grantMgr, resolverSvc, cat,
		approval.WithLogger(log),
		approval.WithMetrics(mx),
	)
	if err != nil {
		log.Error("failed to build approval engine", "error", err)
		os.Exit(1)
	}
	grantMgr.AttachWorkflow(engine)

	analyticsSvc, err := analytics.NewService(auditStore, grantMgr, roleSvc, cat,
		analytics.WithLogger(log),
	)
	if err != nil {
		log.Error("failed to build analytics service", "error", err)
		os.Exit(1)
	}

	if cfg.SeedDemoData {
		if err := seeder.New(authSvc, roleSvc, log).Run(context.Background()); err != nil {
			log.Error("demo seed failed", "error", err)
			os.Exit(1)
		}
	}

	sweep, err := sweeper.New(grantMgr,
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithLogger(log),
		sweeper.WithMetrics(mx),
	)
	if err != nil {
		log.Error("failed to build sweeper", "error", err)
		os.Exit(1)
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		if err := sweep.Start(sweepCtx); err != nil && err != context.Canceled {
			log.Error("sweeper stopped", "error", err)
		}
	}()

	handler := httptransport.NewHandler(authSvc, grantMgr, engine, roleSvc, resolverSvc, analyticsSvc, log)
	router := httptransport.NewRouter(handler, tokens, log)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
