package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/auth"
	"agent-console/internal/calls"
	"agent-console/internal/clock"
	"agent-console/internal/config"
	"agent-console/internal/console"
	"agent-console/internal/crmapi"
	"agent-console/internal/httpapi"
	"agent-console/internal/reporting"
	"agent-console/internal/telephony"
	"agent-console/pkg/logger"
	"agent-console/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var (
		db        *sql.DB
		callRepo  calls.Repository = calls.NewMemoryRepo()
		auditRepo audit.Repository = audit.NewMemoryRepo()
		lineGuard console.LineGuard
	)
	if cfg.DB.Enabled() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		callRepo = calls.NewPostgresRepo(db)
		auditRepo = audit.NewPostgresRepo(db)
	} else {
		log.Warn("DB_HOST not set, call history and audit are kept in memory")
	}

	if cfg.Redis.Enabled() {
		var rdb *redis.Client
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		lock := utils.NewLineLock(rdb, cfg.Console.AgentNumber, cfg.Console.InstanceID, cfg.Console.LineLockTTL)
		reclaimCtx, cancelReclaim := context.WithTimeout(rootCtx, 2*time.Second)
		reclaimed, reclaimErr := lock.Reclaim(reclaimCtx)
		cancelReclaim()
		if reclaimErr != nil {
			log.Warn("line lock reclaim failed", "err", reclaimErr)
		} else if reclaimed {
			log.Info("reclaimed line hold left by an earlier run", "instance", cfg.Console.InstanceID)
		}
		lineGuard = lock
	}

	// Background workers stop after the HTTP server has drained.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	runWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(workerCtx)
		}()
	}

	recordWriter := calls.NewWriter(callRepo, cfg.Console.RecordWriteBuffer, log)
	auditQueue := audit.NewQueue(audit.NewService(auditRepo), cfg.Console.RecordWriteBuffer, log)
	runWorker(recordWriter.Run)
	runWorker(auditQueue.Run)

	crm := crmapi.New(cfg.CRM.BaseURL, cfg.CRM.Token, cfg.CRM.Timeout)
	loop := console.NewLoop(crm, console.CallOptions{
		CallerID:  cfg.Telephony.CallerID,
		Record:    cfg.Telephony.Record,
		Callbacks: cfg.Telephony.CallbackURLs,
	}, log)
	loop.Bind(console.New(console.Config{
		AgentNumber:      cfg.Console.AgentNumber,
		EmployeeID:       cfg.Console.EmployeeID,
		EndedGrace:       cfg.Console.EndedGrace,
		SubmitCloseDelay: cfg.Console.SubmitCloseDelay,
		Tick:             cfg.Console.DurationTick,
		GuardRefresh:     cfg.Console.LineLockTTL / 3,
	}, console.Deps{
		Clock:   loop.Clock(clock.Real{}),
		Log:     log,
		Records: recordWriter,
		Audit:   auditQueue,
		Guard:   lineGuard,
	}))

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(workerCtx) }()

	events := telephony.NewAgentFilter(cfg.Console.AgentNumber, loop, log)
	if cfg.Telephony.PushURL != "" {
		push := telephony.NewPushClient(cfg.Telephony.PushURL, cfg.CRM.Token, events, log)
		runWorker(push.Run)
	} else {
		log.Info("TELEPHONY_PUSH_URL not set, events arrive on the webhook only")
	}

	h := httpapi.Handlers{
		Auth:        authManager,
		Console:     loop,
		Reports:     reporting.NewService(callRepo),
		DB:          db,
		AgentNumber: cfg.Console.AgentNumber,
		DevLogin:    !cfg.IsProduction(),
	}
	webhook := telephony.WebhookHandler{Secret: cfg.Telephony.WebhookSecret, Sink: events}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerPublicRoutes(r, h, webhook)
	registerAuthRoutes(r, h)
	registerProtectedRoutes(r, h, auth.RequireAccessToken(authManager), cfg.Console.AgentNumber)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "agent_number", cfg.Console.AgentNumber)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-loopDone:
		log.Error("console loop stopped", "err", err)
	}
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Writers flush what is buffered once their context ends.
	stopWorkers()
	workers.Wait()
}
