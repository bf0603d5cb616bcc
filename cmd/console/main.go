// The console binary serves the MyPts admin dashboard API: supply
// operations against the hub, exchange-rate management, consistency
// verification, and the periodic verification scheduler.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"mypts/internal/auth"
	"mypts/internal/currency"
	"mypts/internal/handler"
	"mypts/internal/hub"
	"mypts/internal/middleware"
	"mypts/internal/rates"
	"mypts/internal/repository/postgres"
	"mypts/internal/scheduler"
	"mypts/internal/supply"
	"mypts/internal/verifier"
	"mypts/pkg/cache"
	"mypts/pkg/config"
	"mypts/pkg/logger"
	"mypts/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("mypts-console")
	val := validator.New()

	log.Info("Starting MyPts admin console", map[string]interface{}{
		"port": cfg.Server.Port,
		"hub":  cfg.Hub.BaseURL,
	})

	// Redis backs the rate snapshot cache and the scheduler preferences.
	// The console degrades gracefully without it.
	var redisCache *cache.RedisCache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, running without distributed cache", map[string]interface{}{
			"error": err.Error(),
		})
		redisCache = nil
	}

	// Console audit store. Operations proceed without it, but every attempt
	// should normally be recorded.
	var auditStore supply.AuditStore
	var auditRepo *postgres.AuditRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatal("Failed to connect to database", map[string]interface{}{
				"error": err.Error(),
			})
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		defer db.Close()
		auditRepo = postgres.NewAuditRepository(db)
		auditStore = auditRepo
	} else {
		log.Warn("DATABASE_URL not set, console audit trail disabled", nil)
	}

	// Credential boundary: the external auth system issues and refreshes
	// tokens; the console just carries them.
	tokens := auth.NewRemoteProvider(cfg.Auth.RefreshURL, os.Getenv("HUB_TOKEN"), cfg.Hub.Timeout)

	hubClient := hub.NewClient(cfg.Hub.BaseURL, cfg.Hub.Timeout, tokens, log)

	ledger := supply.NewLedger()
	ops := supply.NewService(hubClient, ledger, auditStore, log)

	// Prime the mirror; the hub may not be up yet, which is fine.
	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Hub.Timeout)
	if _, err := ops.Refresh(startCtx); err != nil {
		log.Warn("Initial supply state fetch failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cancel()

	var snapshotCache rates.SnapshotCache
	if redisCache != nil {
		snapshotCache = rates.NewRedisSnapshotCache(redisCache)
	}
	rateSource := rates.NewService(
		[]rates.Provider{rates.NewHTTPProvider(cfg.Rates.BaseURL, cfg.Rates.Timeout)},
		snapshotCache,
		cfg.Rates.CacheTTL,
		log,
	)

	valueService := currency.NewService(hubClient, rateSource, log)
	verifyService := verifier.NewService(hubClient, log)

	verifyHandler := handler.NewVerifyHandler(verifyService, log)

	var prefsStore scheduler.PrefsStore
	if redisCache != nil {
		prefsStore = scheduler.NewRedisPrefsStore(redisCache)
	} else {
		prefsStore = scheduler.NewMemoryPrefsStore()
	}
	sched := scheduler.New(verifyService, prefsStore, log, verifyHandler.BroadcastResult)
	if cfg.Scheduler.DefaultEnabled && sched.Status().State == scheduler.StateDisabled {
		if err := sched.Enable(cfg.Scheduler.DefaultIntervalMinutes); err != nil {
			log.Warn("Failed to enable default verification schedule", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	defer sched.Stop()

	supplyHandler := handler.NewSupplyHandler(ops, val, log)
	valueHandler := handler.NewValueHandler(valueService, log)
	schedulerHandler := handler.NewSchedulerHandler(sched, log)

	authMw := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)

	r := mux.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"mypts-console"}`))
	}).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMw.Authenticate)

	// Read surface.
	api.HandleFunc("/supply", supplyHandler.GetState).Methods("GET")
	api.HandleFunc("/supply/logs", supplyHandler.SupplyLogs).Methods("GET")
	api.HandleFunc("/value", valueHandler.GetValue).Methods("GET")
	api.HandleFunc("/value/rates/preview", valueHandler.PreviewRates).Methods("GET")
	api.HandleFunc("/verify/stream", verifyHandler.Stream).Methods("GET")
	api.HandleFunc("/scheduler", schedulerHandler.GetConfig).Methods("GET")
	if auditRepo != nil {
		api.HandleFunc("/audit", handler.NewAuditHandler(auditRepo, log).List).Methods("GET")
	}

	// Mutations are admin-only.
	admin := api.NewRoute().Subrouter()
	admin.Use(authMw.RequireAdmin)
	admin.HandleFunc("/supply/issue", supplyHandler.Issue).Methods("POST")
	admin.HandleFunc("/supply/release-from-holding", supplyHandler.ReleaseFromHolding).Methods("POST")
	admin.HandleFunc("/supply/rebalance-reserve", supplyHandler.RebalanceReserve).Methods("POST")
	admin.HandleFunc("/supply/move-to-reserve", supplyHandler.MoveToReserve).Methods("POST")
	admin.HandleFunc("/supply/max-supply", supplyHandler.SetMaxSupply).Methods("PUT")
	admin.HandleFunc("/supply/value", supplyHandler.UpdateValue).Methods("PUT")
	admin.HandleFunc("/value/rates/sync", valueHandler.SyncRates).Methods("POST")
	admin.HandleFunc("/verify", verifyHandler.Verify).Methods("POST")
	admin.HandleFunc("/verify/reconcile", verifyHandler.Reconcile).Methods("POST")
	admin.HandleFunc("/scheduler", schedulerHandler.UpdateConfig).Methods("PUT")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Admin console started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down admin console...", nil)

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Admin console forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Admin console stopped gracefully", nil)
}
