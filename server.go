package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bpopendata/budget_backend/cache"
	"github.com/bpopendata/budget_backend/config"
	"github.com/bpopendata/budget_backend/middlewares"
	"github.com/bpopendata/budget_backend/models"
	"github.com/bpopendata/budget_backend/models/analytics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const defaultPort = "8080"

// Set once startup finishes connecting the database; handlers return 503
// until then.
var engine *analytics.Engine

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Correlation-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middlewares.CorrelationMiddleware())

	var memory *cache.Memory
	var redisStore *cache.Redis

	router.GET("/healthz", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if engine == nil {
			status["status"] = "starting"
		}
		if db := config.GetDB(); db != nil {
			if sqlDB, derr := db.DB(); derr == nil {
				if err := sqlDB.PingContext(c.Request.Context()); err != nil {
					status["database"] = "degraded"
				} else {
					status["database"] = "ok"
				}
			}
		}
		if memory != nil {
			status["cache_items"] = memory.Len()
			status["cache_bytes"] = memory.Bytes()
		}
		if redisStore != nil {
			if err := redisStore.Ping(c.Request.Context()); err != nil {
				status["redis"] = "degraded"
			} else {
				status["redis"] = "ok"
			}
		}
		c.JSON(http.StatusOK, status)
	})

	router.POST("/analytics/entities", entityAggregatesHandler)
	router.POST("/analytics/entities/export", entityAggregatesExportHandler)
	router.POST("/analytics/classifications", classificationAggregatesHandler)
	router.POST("/analytics/series", periodSeriesHandler)
	router.POST("/analytics/line-items", lineItemsHandler)
	router.GET("/entities", searchEntitiesHandler)
	router.GET("/entities/:cui", getEntityHandler)
	router.GET("/uats/:id", getTerritorialUnitHandler)
	router.POST("/admin/cache/clear", clearCacheHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start listening first; DB/Redis connect after so a slow dependency
	// never delays the health endpoint.
	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	config.ConnectDatabaseWithRetry()

	// AutoMigrate can run DDL that blocks the read tables; allow skipping it
	// on startup and running migrations as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	rdb := config.NewRedisClient(startupCtx)
	cancelStartup()

	logger := config.GetLogger()

	var err error
	memory, err = cache.NewMemory(
		config.IntFromEnv("CACHE_L1_MAX_ITEMS", 2048),
		config.Int64FromEnv("CACHE_L1_MAX_BYTES", 64<<20),
		config.SecondsFromEnv("ANALYTICS_CACHE_TTL_SECONDS", 120*time.Second),
	)
	if err != nil {
		log.Fatalf("failed to build tier-1 cache: %v", err)
	}
	redisStore = cache.NewRedis(rdb, "analytics:", config.SecondsFromEnv("ANALYTICS_CACHE_TTL_SECONDS", 120*time.Second))

	var store cache.Store = cache.NewTiered(memory, redisStore, logger)
	if rdb == nil {
		// Tier-1-only mode; NewRedis tolerates the nil client but the
		// tiered composition can skip the hop entirely.
		store = cache.NewTiered(memory, nil, logger)
	}

	engine = analytics.NewEngine(config.GetDB(), store, logger)
	log.Printf("analytics engine ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("redis close: %v", err)
		}
	}
	log.Println("bye")
}
