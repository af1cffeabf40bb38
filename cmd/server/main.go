package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goride-payments/internal/config"
	handlers "goride-payments/internal/handlers/shared"
	"goride-payments/internal/middleware"
	"goride-payments/internal/repositories/interfaces"
	mongorepo "goride-payments/internal/repositories/mongodb"
	pgrepo "goride-payments/internal/repositories/postgres"
	"goride-payments/internal/services"
	"goride-payments/internal/utils"
	"goride-payments/pkg/cache"
	"goride-payments/pkg/database"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/metrics"
	"goride-payments/pkg/payment"
	"goride-payments/pkg/sms"
	"goride-payments/pkg/websocket"
	"goride-payments/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := database.NewPostgresDB(&database.PostgresConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Database.AutoMigrate {
		if err := database.NewMigrator(pg.DB, log).Up(ctx); err != nil {
			return err
		}
	}

	m := metrics.New()

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			IdleTimeout:  cfg.Redis.IdleTimeout,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
	}

	var auditRepo interfaces.CallbackAuditRepository
	if cfg.Mongo.Enabled() {
		mongoDB, err := database.NewMongoDB(&database.MongoConfig{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Username:       cfg.Mongo.Username,
			Password:       cfg.Mongo.Password,
			AuthSource:     cfg.Mongo.AuthSource,
			MaxPoolSize:    cfg.Mongo.MaxPoolSize,
			MinPoolSize:    cfg.Mongo.MinPoolSize,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			SocketTimeout:  cfg.Mongo.SocketTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		defer mongoDB.Close()

		if err := database.EnsureCallbackAuditIndexes(ctx, mongoDB.Database); err != nil {
			log.WithError(err).Warn("Failed to ensure callback audit indexes")
		}
		auditRepo = mongorepo.NewCallbackAuditRepository(mongoDB.Database)
	}

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	publisher := newPublisher(cfg, redisCache, hub)
	defer publisher.Close()

	smsProvider, err := newSMSProvider(ctx, cfg.SMS)
	if err != nil {
		return err
	}

	provider := newMpesaProvider(cfg, redisCache, log)

	paymentRepo := pgrepo.NewPaymentRepository(pg.DB)
	rideRepo := pgrepo.NewRideRepository(pg.DB)

	notificationService := services.NewNotificationService(smsProvider, services.NotificationConfig{
		Enabled:  cfg.Mpesa.SendReceiptSMS,
		From:     cfg.SMS.DefaultFrom,
		Currency: cfg.App.Currency,
	}, log)
	paymentService := services.NewPaymentService(provider, paymentRepo, rideRepo, publisher, m, log,
		services.PaymentServiceConfig{DefaultDescription: cfg.Mpesa.DefaultDesc})
	callbackService := services.NewCallbackService(paymentRepo, auditRepo, publisher, notificationService, m, log)
	statusService := services.NewStatusService(paymentRepo, rideRepo)
	rideService := services.NewRideService(rideRepo, publisher, log)

	paymentHandler := handlers.NewPaymentHandler(paymentService, callbackService, statusService, log, cfg.Mpesa.MaxCallbackBytes)
	rideHandler := handlers.NewRideHandler(rideService, statusService, log)

	if redisCache != nil {
		relay := websocket.NewRedisRelay(redisCache, utils.ChannelPaymentResolved, hub, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.WithError(err).Error("Payment event relay stopped")
			}
		}()
	}
	stream := websocket.NewHandler(hub, func(ctx context.Context, rideID int64) (interface{}, error) {
		return statusService.GetLatestPaymentForBooking(ctx, rideID)
	}, websocket.Options{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		WriteTimeout:      cfg.WebSocket.WriteTimeout,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.Security.CORSAllowedOrigins,
	}, log)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log, m))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	v1 := router.Group("/api/v1")
	{
		routes.SetupPaymentRoutes(v1, paymentHandler, rideHandler, stream,
			middleware.CallbackSourceRequired(cfg.Mpesa.CallbackAllowedIPs, log))
	}

	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pg.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "version": cfg.App.Version})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": cfg.App.Version})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newMpesaProvider(cfg *config.Config, redisCache *cache.RedisCache, log *logger.Logger) *payment.MpesaProvider {
	httpClient := &http.Client{Timeout: cfg.Mpesa.RequestTimeout}
	baseURL := cfg.Mpesa.ResolvedBaseURL()

	tokenConfig := &payment.TokenSourceConfig{
		BaseURL:        baseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		EarlyExpiry:    cfg.Mpesa.TokenExpiryWindow,
	}
	if redisCache != nil && cfg.Mpesa.ShareTokenInRedis {
		tokenConfig.Cache = redisCache
		tokenConfig.CacheKey = utils.CacheMpesaTokenKey
	}

	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.WithError(err).Warnf("Unknown timezone %q, using local time for STK timestamps", cfg.App.Timezone)
		location = nil
	}

	return payment.NewMpesaProvider(&payment.MpesaConfig{
		BaseURL:         baseURL,
		ShortCode:       cfg.Mpesa.ShortCode,
		PassKey:         cfg.Mpesa.PassKey,
		CallbackURL:     cfg.Mpesa.CallbackURL,
		TransactionType: cfg.Mpesa.TransactionType,
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		Location:        location,
	}, payment.NewMpesaTokenSource(tokenConfig, httpClient), httpClient)
}

// newPublisher fans events out to Kafka and to stream clients. With Redis the clients are
// reached through the relay on every instance, without it only through the local hub.
func newPublisher(cfg *config.Config, redisCache *cache.RedisCache, hub *websocket.Hub) *events.MultiPublisher {
	var kafka, stream events.Publisher
	if cfg.Kafka.Enabled() {
		kafka = events.NewKafkaProducer(&events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			ClientID:     cfg.Kafka.ClientID,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			RequiredAcks: cfg.Kafka.RequiredAcks,
		})
	}
	if redisCache != nil {
		stream = events.NewRedisPublisher(redisCache, utils.ChannelPaymentResolved)
	} else {
		stream = websocket.NewHubPublisher(hub)
	}
	return events.NewMultiPublisher(kafka, stream)
}

func newSMSProvider(ctx context.Context, cfg *config.SMSConfig) (sms.SMSProvider, error) {
	switch cfg.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
	case "aws":
		provider, err := sms.NewAWSSNSProvider(ctx, sms.AWSSNSOptions{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SenderID:        cfg.DefaultFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure aws sns: %w", err)
		}
		return provider, nil
	default:
		return sms.NopProvider{}, nil
	}
}
