package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/xavierau/event-platform-sub006/config"
	"github.com/xavierau/event-platform-sub006/internal/cache"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/database"
	"github.com/xavierau/event-platform-sub006/internal/handler"
	"github.com/xavierau/event-platform-sub006/internal/queue"
	"github.com/xavierau/event-platform-sub006/internal/repository"
	"github.com/xavierau/event-platform-sub006/internal/router"
	"github.com/xavierau/event-platform-sub006/internal/service"
	"github.com/xavierau/event-platform-sub006/internal/worker"
	"github.com/xavierau/event-platform-sub006/migrations"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	defer logger.Sync()
	log := logger.WithComponent("main")

	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Server.AutoMigrate {
		if err := migrations.Apply(ctx, pool); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	eventQueue, closeQueue, err := newEventQueue(ctx, cfg, rdb)
	if err != nil {
		log.Fatal("Failed to initialize event queue", zap.Error(err))
	}
	defer closeQueue()

	availabilityCache := cache.NewNoopAvailabilityCache()
	if cfg.Cache.Enabled {
		availabilityCache = cache.NewRedisAvailabilityCache(rdb, cfg.Cache.TTL)
	}

	clk := clock.NewSystem()
	txManager := database.NewTxManager(pool)

	ticketRepo := repository.NewTicketDefinitionRepository(pool)
	occurrenceRepo := repository.NewEventOccurrenceRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	holdRepo := repository.NewTicketHoldRepository(pool)
	allocationRepo := repository.NewHoldAllocationRepository(pool)
	linkRepo := repository.NewPurchaseLinkRepository(pool)
	accessRepo := repository.NewPurchaseLinkAccessRepository(pool)
	purchaseRepo := repository.NewPurchaseLinkPurchaseRepository(pool)

	ledger := service.NewInventoryLedger(ticketRepo, occurrenceRepo, bookingRepo, allocationRepo, availabilityCache)
	holdService := service.NewTicketHoldService(txManager, holdRepo, allocationRepo, linkRepo, occurrenceRepo, ledger, eventQueue, clk)
	linkService := service.NewPurchaseLinkService(txManager, linkRepo, holdRepo, allocationRepo, ticketRepo, userRepo, accessRepo, purchaseRepo, eventQueue, clk)
	purchaseService := service.NewPurchaseService(txManager, linkRepo, holdRepo, allocationRepo, ticketRepo, occurrenceRepo, transactionRepo, bookingRepo, purchaseRepo, accessRepo, eventQueue, clk)

	if err := worker.NewAvailabilityWorker(availabilityCache, eventQueue).Start(ctx); err != nil {
		log.Fatal("Failed to start availability worker", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(cfg, router.Handlers{
		Holds:        handler.NewHoldHandler(holdService, linkService, clk, cfg.Server.PublicBaseURL),
		Links:        handler.NewPurchaseLinkHandler(linkService, clk, cfg.Server.PublicBaseURL),
		Public:       handler.NewPublicLinkHandler(linkService, purchaseService),
		Availability: handler.NewAvailabilityHandler(ledger),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		}),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// newEventQueue 依設定選擇 domain event 的傳遞方式
func newEventQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client) (queue.EventQueue, func(), error) {
	noop := func() {}

	switch cfg.Queue.Driver {
	case config.QueueDriverMemory:
		return queue.NewMemoryEventQueue(cfg.Queue.BufferSize), noop, nil
	case config.QueueDriverAMQP:
		q, err := queue.NewAMQPEventQueue(cfg.Queue.AMQPURL, cfg.Queue.AMQPQueue)
		if err != nil {
			return nil, noop, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		hostname, _ := os.Hostname()
		q, err := queue.NewRedisStreamEventQueue(ctx, rdb, hostname, nil)
		if err != nil {
			return nil, noop, err
		}
		return q, noop, nil
	}
}
