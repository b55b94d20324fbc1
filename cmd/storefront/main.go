package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/consumer"
	"github.com/fjod/go_cart/storefront/internal/events"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/mail"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/toast"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("storefront service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var redisClient *redis.Client
	if cfg.StorageBackend == config.BackendRedis || cfg.CatalogCacheTTL > 0 {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		closers = append(closers, func() { _ = client.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			if cfg.StorageBackend == config.BackendRedis {
				return fmt.Errorf("redis connection failed: %w", err)
			}
			log.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
		} else {
			redisClient = client
			log.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))
		}
	}

	kv, closeKV, err := openStorage(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeKV)

	bus := events.NewBus()
	calc := pricing.Calculator{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingRate:          cfg.ShippingRate,
		HandlingFee:           cfg.HandlingFee,
	}
	manager := cart.NewManager(storage.NewPersistent(kv, log), bus, calc, log, cfg.SessionIdleTTL)
	closers = append(closers, func() { _ = manager.Close() })

	toasts := toast.NewCenter(bus, cfg.ToastLifetime, cfg.ToastCap)
	closers = append(closers, toasts.Close)

	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	if cfg.KafkaEnabled() {
		sink := events.NewKafkaSink(cfg.EventsTopic, log, cfg.KafkaBrokers...)
		sink.Attach(bus)
		orderConsumer := consumer.NewOrderConsumer(manager, cfg.OrdersTopic, cfg.ConsumerGroup, log, cfg.KafkaBrokers...)
		closers = append(closers, sink.Close, orderConsumer.Close)

		wg.Add(2)
		go func() {
			defer wg.Done()
			sink.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			orderConsumer.Run(ctx)
		}()
		log.Info("kafka enabled",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("events_topic", cfg.EventsTopic),
			slog.String("orders_topic", cfg.OrdersTopic))
	}

	var cache catalog.Cache
	if redisClient != nil && cfg.CatalogCacheTTL > 0 {
		cache = catalog.NewRedisCache(redisClient, cfg.CatalogCacheTTL)
	}
	catalogClient := catalog.NewClient(catalog.Config{
		Domain:     cfg.ShopifyDomain,
		Token:      cfg.ShopifyToken,
		APIVersion: cfg.ShopifyAPIVersion,
		RPS:        cfg.CatalogRPS,
	}, log)
	catalogService := catalog.NewService(catalogClient, cache, log)
	if cfg.ShopifyDomain == "" {
		log.Warn("SHOPIFY_DOMAIN not set, catalog endpoints will return empty lists")
	}

	submitter, closeOrders, err := openOrders(cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeOrders)

	var mailer mail.Mailer = mail.Nop{}
	if cfg.SendGridAPIKey != "" {
		mailer = mail.NewSendGrid(cfg.SendGridAPIKey, cfg.SendGridHost, cfg.MailFrom, cfg.MailFromName)
	} else {
		log.Warn("SENDGRID_API_KEY not set, order confirmations will not be mailed")
	}
	checkoutService := checkout.NewService(manager, submitter, mailer, log)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate session secret: %w", err)
		}
		log.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	router := h.NewRouter(h.RouterConfig{
		Carts:          h.NewCartHandler(manager, cfg.RequestTimeout, log),
		Products:       h.NewProductHandler(catalogService, cfg.RequestTimeout),
		Checkout:       h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout, log),
		Notifications:  h.NewNotificationHandler(toasts),
		Events:         h.NewEventsHandler(bus, manager, log),
		Sessions:       h.NewSessions(secret, cfg.SessionTTL, cfg.SecureCookies, log),
		RequestTimeout: cfg.RequestTimeout,
		MaxRequestBody: cfg.MaxRequestBody,
		Log:            log,
	})

	// WriteTimeout stays zero so the event stream is not cut; handlers carry their own timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "storefront"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront service starting", slog.String("port", cfg.HTTPPort), slog.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log *slog.Logger) (storage.KV, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		log.Info("using redis storage", slog.String("addr", cfg.RedisAddr))
		return storage.NewRedisKV(redisClient, cfg.RedisTTL), func() {}, nil

	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		db, err := storage.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		kv := storage.NewMongoKV(db)
		if err := kv.CreateIndexes(connectCtx); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info("connected to MongoDB", slog.String("database", cfg.MongoDBName))
		return kv, func() {
			_ = db.Client().Disconnect(context.Background())
		}, nil

	case config.BackendSQLite:
		kv, err := storage.NewSQLiteKV(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := kv.RunMigrations(); err != nil {
			_ = kv.Close()
			return nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		log.Info("using sqlite storage", slog.String("path", cfg.SQLitePath))
		return kv, func() { _ = kv.Close() }, nil

	default:
		log.Warn("using in-memory storage, state is lost on restart")
		return storage.NewMemoryKV(), func() {}, nil
	}
}

func openOrders(cfg *config.Config, log *slog.Logger) (orders.Submitter, func(), error) {
	if cfg.OrdersBackend == config.OrdersPostgres {
		store, err := orders.NewPostgresStore(orders.Credentials{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("orders migrations: %w", err)
		}
		log.Info("orders recorded in postgres", slog.String("host", cfg.Postgres.Host))
		return store, func() { _ = store.Close() }, nil
	}

	log.Info("orders submitted over http", slog.String("url", cfg.OrdersURL))
	return orders.NewRESTSubmitter(cfg.OrdersURL, cfg.RequestTimeout, circuitbreaker.DefaultConfig(), log), func() {}, nil
}
