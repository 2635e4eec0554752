package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/netwarden/netwarden/internal/config"
	"github.com/netwarden/netwarden/internal/handlers"
	"github.com/netwarden/netwarden/internal/repository"
	"github.com/netwarden/netwarden/internal/service"
	"github.com/netwarden/netwarden/pkg/cache"
	"github.com/netwarden/netwarden/pkg/database"
	"github.com/netwarden/netwarden/pkg/logger"
	"github.com/netwarden/netwarden/pkg/messaging"
	"github.com/netwarden/netwarden/pkg/middleware"
)

func main() {
	// Инициализация логгера
	log := logger.NewLogger("alerting-service")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключение к MongoDB
	mongoDB, err := database.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongoDB.Close()

	db := mongoDB.GetDatabase()

	// Создание индексов
	if err := setupIndexes(ctx, db); err != nil {
		log.WithError(err).Error("Failed to setup indexes")
	}

	// Подключение к Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	// Подключение к RabbitMQ
	rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer rabbitmq.Close()

	if err := rabbitmq.SetupTopology(); err != nil {
		log.WithError(err).Fatal("Failed to setup messaging topology")
	}

	// Инициализация репозиториев
	ruleRepo := repository.NewRuleRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	muteRepo := repository.NewMuteRepository(db)

	// Инициализация источника метрик
	metricSource, err := service.NewPrometheusSource(cfg.Prometheus.URL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Prometheus source")
	}

	// Инициализация сервисов
	alertStore := service.NewAlertStore(alertRepo, log)
	cooldown := service.NewCooldownTracker()
	mutes := service.NewMuteRegistry(muteRepo, log)
	router := service.NewNotificationRouter(channelRepo, redisCache, cfg.Cache.ChannelTTL, log)
	dispatcher := service.NewChannelDispatcher(cfg.Dispatch.Concurrency, cfg.Dispatch.SendTimeout, log)

	engine := service.NewAlertEngine(
		ruleRepo, channelRepo, alertRepo,
		alertStore, cooldown, mutes, router, dispatcher,
		metricSource, rabbitmq, log,
		service.EngineConfig{
			Interval:     cfg.Evaluation.Interval,
			PassTimeout:  cfg.Evaluation.PassTimeout,
			Concurrency:  cfg.Evaluation.Concurrency,
			StaleAfter:   cfg.Evaluation.StaleAfter,
			RetentionAge: cfg.Retention.ResolvedMaxAge,
		},
	)

	// Запуск движка алертинга
	go engine.Run(ctx)

	// Инициализация обработчиков
	handler := handlers.NewAlertingHandler(engine, log)

	// Запуск HTTP сервера
	go startHTTPServer(cfg, handler, log)

	// Ожидание сигнала завершения
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down alerting service...")
	cancel()
	time.Sleep(2 * time.Second)
}

func startHTTPServer(cfg *config.Config, handler *handlers.AlertingHandler, log *logger.Logger) {
	router := gin.Default()
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		router.Use(limiter.Middleware())
	}

	// API routes
	v1 := router.Group("/api/v1/alerting")
	handler.RegisterRoutes(v1)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.WithField("port", cfg.Service.HTTPPort).Info("Starting HTTP server")
	if err := router.Run(fmt.Sprintf(":%d", cfg.Service.HTTPPort)); err != nil {
		log.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func setupIndexes(ctx context.Context, db *mongo.Database) error {
	// alerts indexes
	alertIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "rule_id", Value: 1},
				{Key: "host_id", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "opened_at", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "last_seen_at", Value: 1},
			},
		},
	}
	if _, err := db.Collection("alerts").Indexes().CreateMany(ctx, alertIndexes); err != nil {
		return err
	}

	// alert_rules index
	rulesIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "enabled", Value: 1}},
	}
	if _, err := db.Collection("alert_rules").Indexes().CreateOne(ctx, rulesIndex); err != nil {
		return err
	}

	// alert_mutes indexes
	muteIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "rule_id", Value: 1},
				{Key: "host_id", Value: 1},
			},
		},
	}
	if _, err := db.Collection("alert_mutes").Indexes().CreateMany(ctx, muteIndexes); err != nil {
		return err
	}

	// notification_channels index
	channelIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := db.Collection("notification_channels").Indexes().CreateOne(ctx, channelIndex); err != nil {
		return err
	}

	return nil
}
