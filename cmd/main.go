package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/askhat/vpn-shop-bot/internal/api"
	"github.com/askhat/vpn-shop-bot/internal/bot"
	"github.com/askhat/vpn-shop-bot/internal/config"
	"github.com/askhat/vpn-shop-bot/internal/events"
	"github.com/askhat/vpn-shop-bot/internal/gateway"
	"github.com/askhat/vpn-shop-bot/internal/interfaces"
	"github.com/askhat/vpn-shop-bot/internal/metrics"
	"github.com/askhat/vpn-shop-bot/internal/panel"
	"github.com/askhat/vpn-shop-bot/internal/repository"
	"github.com/askhat/vpn-shop-bot/internal/service"
	"github.com/askhat/vpn-shop-bot/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}
	cfg := config.MustLoad()

	if err := telemetry.Init("vpn-shop-bot", cfg.Env, cfg.Telemetry.OTLPEndpoint); err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting VPN shop bot")

	price, err := decimal.NewFromString(cfg.Plan.Price)
	if err != nil {
		telemetry.Logger.Fatal("invalid plan price", zap.String("price", cfg.Plan.Price), zap.Error(err))
	}

	// Transaction store
	var store interfaces.TransactionStore
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			telemetry.Logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		pg := repository.NewPostgresStore(db)
		if err := pg.InitDB(); err != nil {
			telemetry.Logger.Fatal("failed to initialize database", zap.Error(err))
		}
		store = pg
	default:
		fs, err := repository.NewFileStore(cfg.Storage.Path)
		if err != nil {
			telemetry.Logger.Fatal("failed to open transaction store", zap.Error(err))
		}
		store = fs
	}

	// Per-transaction locking: Redis when configured, in-process otherwise.
	var locks service.Locker = service.NewKeyedMutex()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		locks = service.NewRedisLocker(redisClient)
	}

	// Transition events
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
	}

	returnURL := cfg.Bot.WebhookURL
	if returnURL == "" {
		returnURL = "https://t.me/" + cfg.Bot.Name
	}

	gatewayClient := gateway.NewClient(
		cfg.Gateway.BaseURL, cfg.Gateway.ShopID, cfg.Gateway.SecretKey,
		price, cfg.Plan.Currency, returnURL,
	)
	panelClient := panel.NewClient(
		cfg.Panel.BaseURL, cfg.Panel.APIKey,
		cfg.Panel.InboundID, cfg.Plan.DaysValid, cfg.Plan.TrafficGB,
	)

	orchestrator := service.NewOrchestrator(
		store, gatewayClient, panelClient,
		locks, publisher, metrics.NewPurchaseMetrics(), telemetry.Logger,
	)

	tgBot, err := bot.New(cfg, orchestrator, telemetry.Logger)
	if err != nil {
		telemetry.Logger.Fatal("failed to create telegram bot", zap.Error(err))
	}
	go tgBot.Start()

	// Ops HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(store, orchestrator),
	}
	go func() {
		telemetry.Logger.Info("ops server starting", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("failed to start ops server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down...")
	tgBot.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("ops server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Exited")
}
