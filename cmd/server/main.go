package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ysakura/event-campaign-backend/internal/capacity"
	"github.com/ysakura/event-campaign-backend/internal/config"
	"github.com/ysakura/event-campaign-backend/internal/database"
	"github.com/ysakura/event-campaign-backend/internal/handler"
	"github.com/ysakura/event-campaign-backend/internal/logger"
	"github.com/ysakura/event-campaign-backend/internal/middleware"
	"github.com/ysakura/event-campaign-backend/internal/notify"
	"github.com/ysakura/event-campaign-backend/internal/queue"
	"github.com/ysakura/event-campaign-backend/internal/repository"
	"github.com/ysakura/event-campaign-backend/internal/router"
	"github.com/ysakura/event-campaign-backend/internal/service"
)

func main() {
	// .env is optional; in containers configuration comes from real
	// environment variables.
	_ = godotenv.Load()
	cfg := config.Load()

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// The counter store is optional: a nil client disables the fast
	// admission path and every request falls through to MySQL.
	rdb := config.NewRedisClient()
	counter := capacity.NewCounter(rdb)

	occurrences := repository.NewOccurrenceRepo(db)
	registrations := repository.NewRegistrationRepo(db)
	campaigns := repository.NewCampaignRepo(db)
	gifts := repository.NewGiftRepo(db)
	memberGifts := repository.NewMemberGiftRepo(db)

	admission := service.NewAdmissionService(db, occurrences, registrations, counter)
	allocation := service.NewAllocationService(db, campaigns, gifts, memberGifts, registrations)

	// Warm the occupancy counters from the writer of record so the
	// fast path reflects committed registrations after a restart.
	if err := admission.Seed(context.Background()); err != nil {
		logger.Warn("capacity seed failed", zap.Error(err))
	}

	// Winner notifications are delivered off the request path by a
	// broker consumer feeding the push gateway.
	go queue.StartWinnerConsumer(notify.NewHTTPPushSender(cfg.PushEndpoint))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewReadCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, &handler.HealthHandler{Counter: counter})
	router.RegisterRegistration(e,
		handler.NewRegistrationHandler(admission),
		handler.NewCapacityHandler(admission, occurrences, counter),
		limit, cache)
	router.RegisterAllocation(e, handler.NewAllocationHandler(allocation), limit)
	router.RegisterBrowse(e, &handler.BrowseHandler{
		Campaigns:     campaigns,
		Gifts:         gifts,
		Occurrences:   occurrences,
		Registrations: registrations,
		MemberGifts:   memberGifts,
	}, cache)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
