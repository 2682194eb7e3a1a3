package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/arjun/forestwatch/internal/api"
	"github.com/arjun/forestwatch/internal/classify"
	"github.com/arjun/forestwatch/internal/config"
	"github.com/arjun/forestwatch/internal/llm"
	"github.com/arjun/forestwatch/internal/logging"
	"github.com/arjun/forestwatch/internal/ratelimit"
	"github.com/arjun/forestwatch/internal/service"
	"github.com/arjun/forestwatch/internal/source"
	"github.com/arjun/forestwatch/internal/store"
)

const (
	verifyRateLimit  = 10
	verifyRateWindow = time.Hour
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Error("db open failed", "error", err)
		return
	}
	// simple ping + wait (db might be starting in docker)
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Info("waiting for db", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("could not connect to db", "error", err)
		return
	}

	if err := store.RunMigrations(db); err != nil {
		logger.Error("migrations failed", "error", err)
		return
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	repo := store.NewPgStore(db)

	classifierClient := llm.NewClient(cfg.AI.Endpoint, cfg.AI.Model, cfg.AI.APIKey, nil)
	visionClient := llm.NewClient(cfg.Vision.Endpoint, cfg.Vision.Model, cfg.Vision.APIKey, nil)

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb), verifyRateLimit, verifyRateWindow, logger)

	svc := service.NewService(service.Deps{
		Repo:       repo,
		Classifier: classify.New(classifierClient, logger),
		Limiter:    limiter,
		News:       source.NewNewsClient(cfg.News.BaseURL, cfg.News.APIKey, nil, logger),
		Glad:       source.NewGladClient(cfg.GFW.BaseURL, cfg.GFW.APIKey, nil, logger),
		Fires:      source.NewFirmsClient(cfg.Firms.BaseURL, cfg.Firms.APIKey, nil, logger),
		Vision:     visionClient,
		Logger:     logger,
	})

	handler := api.NewHandler(svc, logger)

	router := gin.Default()
	api.RegisterRoutes(router, handler)

	logger.Info("listening", "port", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Error("server failed", "error", err)
	}
}
