package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"parking_network/internal/api"
	"parking_network/internal/api/middleware"
	"parking_network/internal/config"
	"parking_network/internal/intake"
	"parking_network/internal/lock"
	"parking_network/internal/logger"
	"parking_network/internal/report"
	"parking_network/internal/repository"
	"parking_network/internal/repository/docrepo"
	"parking_network/internal/repository/memory"
	"parking_network/internal/repository/mongostore"
	"parking_network/internal/repository/rest"
	"parking_network/internal/repository/sqlstore"
	"parking_network/internal/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx := context.Background()

	// 3. Record store
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("cannot open record store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	log.Info("record store ready", zap.String("driver", cfg.StoreDriver))

	// 4. Per-key locker
	var locker lock.Locker
	var redisClient *redis.Client
	switch cfg.LockDriver {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("cannot reach redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		locker = lock.NewRedis(redisClient, cfg.LockTTL)
	case "", "local":
		locker = lock.NewLocal()
	default:
		log.Fatal("unknown LOCK_DRIVER", zap.String("driver", cfg.LockDriver))
	}
	log.Info("locker ready", zap.String("driver", cfg.LockDriver))

	// 5. Repositories
	cityRepo := docrepo.NewCityRepository(store, cfg.StoreTimeout)
	bookingRepo := docrepo.NewBookingRepository(store, cfg.StoreTimeout)
	managerRepo := docrepo.NewManagerRepository(store, cfg.StoreTimeout)
	userRepo := docrepo.NewUserRepository(store, cfg.StoreTimeout)

	// 6. Services
	authService := service.NewAuthService(cfg.JWTSecret, cfg.JWTTokenTTL)
	authorizer := service.NewAuthorizer(managerRepo)
	inventoryService := service.NewInventoryService(cityRepo, locker, authorizer, log)
	bookingService := service.NewBookingService(bookingRepo, inventoryService, locker, authorizer, cfg.StrictCheckout, log)

	var archiver service.HistoryArchiver
	if cfg.ArchiveS3Bucket != "" {
		s3Archiver, err := report.NewS3Archiver(ctx, report.S3Config{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.ArchiveS3Bucket,
			Endpoint:  cfg.ArchiveS3Endpoint,
			PathStyle: cfg.ArchiveS3PathStyle,
		})
		if err != nil {
			log.Fatal("cannot configure ticket history archive", zap.Error(err))
		}
		archiver = s3Archiver
		log.Info("ticket history archive enabled", zap.String("bucket", cfg.ArchiveS3Bucket))
	}
	queryService := service.NewQueryService(inventoryService, bookingService, userRepo, authorizer, report.NewPDFRenderer(), archiver, log)

	// 7. Reservation intake
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	if cfg.SQSReservationQueueURL == "" {
		log.Warn("SQS_RESERVATION_QUEUE_URL not set, reservation intake disabled")
	} else {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(ctx, awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatal("cannot load AWS SDK config", zap.Error(err))
		}
		consumer := intake.NewSQSConsumer(sqs.NewFromConfig(awsSDKCfg), cfg.SQSReservationQueueURL, bookingService, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(consumerCtx)
		}()
	}

	// 8. HTTP router
	authMiddleware := middleware.NewAuthMiddleware(authService, log)
	router := api.SetupRouter(inventoryService, bookingService, queryService, authMiddleware, cfg.RateLimitPerMin, log)

	// 9. HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced server shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("reservation intake did not stop in time")
	}

	if err := store.Close(shutdownCtx); err != nil {
		log.Error("closing record store", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.RecordStore, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return memory.NewStore(), nil
	case "postgres":
		return sqlstore.OpenPostgres(ctx, cfg)
	case "sqlite":
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	case "mongo":
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "rest":
		return rest.New(cfg.RestStoreURL, &http.Client{Timeout: cfg.StoreTimeout}), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
