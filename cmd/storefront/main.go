package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/config"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/gomail.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("close failed", "error", err)
			}
		}
	}()

	var redisClient *redis.Client
	if cfg.Store.Backend == config.BackendRedis || cfg.Cart.Backend == config.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, redisClient)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", "addr", cfg.Redis.Addr)
	}

	docs, err := openDocumentStore(cfg, redisClient, log)
	if err != nil {
		return err
	}
	if c, ok := docs.(io.Closer); ok {
		closers = append(closers, c)
	}

	cartStorage, closeCarts, err := openCartStorage(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeCarts)

	products := catalog.NewStore(docs, log)
	view := catalog.NewView(catalog.Filter{})
	unwatch, err := catalog.Watch(ctx, products, view)
	if err != nil {
		return fmt.Errorf("failed to watch catalog: %w", err)
	}
	defer unwatch()

	carts := cart.NewService(cartStorage, log)
	lookup := orders.NewLookup(docs, log)

	notifier, closeNotifier := buildNotifier(cfg, lookup, log)
	defer closeNotifier()

	service := orders.NewService(docs, carts, notifier, log)
	service.SetNotifyTimeout(cfg.Notify.Timeout)

	timeout := cfg.HTTP.RequestTimeout
	router := h.NewRouter(h.RouterConfig{
		Catalog:            h.NewCatalogHandler(products, view, log, timeout),
		Cart:               h.NewCartHandler(carts, products, log, timeout),
		Checkout:           h.NewCheckoutHandler(service, carts, log, timeout),
		Orders:             h.NewOrdersHandler(lookup, log, cfg.Notify.TrackingURL, timeout),
		Admin:              h.NewAdminHandler(service, lookup, log, timeout),
		Log:                log,
		JWTSecret:          []byte(cfg.JWTSecret),
		SecureCookies:      cfg.HTTP.SecureCookies,
		RequestTimeout:     timeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront starting", "port", cfg.HTTP.Port,
			"store_backend", cfg.Store.Backend, "cart_backend", cfg.Cart.Backend)
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

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openDocumentStore(cfg config.Config, redisClient *redis.Client, log *slog.Logger) (store.DocumentStore, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return store.NewRedisStore(redisClient), nil
	case config.BackendPostgres:
		cred := &store.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
		}
		pg, err := store.NewPostgresStore(cred, log)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(cred); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		log.Warn("using in-memory document store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func openCartStorage(ctx context.Context, cfg config.Config, redisClient *redis.Client, log *slog.Logger) (cart.Storage, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch cfg.Cart.Backend {
	case config.BackendRedis:
		return cart.NewRedisStorage(redisClient, cfg.Cart.TTL), noop, nil
	case config.BackendMongo:
		db, err := cart.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cart.MongoOptions{
			MaxPoolSize:            uint64(cfg.Mongo.MaxPoolSize),
			MinPoolSize:            uint64(cfg.Mongo.MinPoolSize),
			ConnectTimeout:         cfg.Mongo.ConnectTimeout,
			ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		disconnect := closerFunc(func() error {
			return db.Client().Disconnect(context.Background())
		})
		storage := cart.NewMongoStorage(db)
		if err := storage.CreateIndexes(ctx); err != nil {
			disconnect.Close()
			return nil, nil, fmt.Errorf("failed to create cart indexes: %w", err)
		}
		log.Info("connected to mongodb", "db", cfg.Mongo.Database)
		return storage, disconnect, nil
	default:
		return cart.NewMemoryStorage(), noop, nil
	}
}

// buildNotifier fans out to Kafka and e-mail when configured, each behind its
// own circuit breaker. The returned func releases the Kafka writer.
func buildNotifier(cfg config.Config, lookup *orders.Lookup, log *slog.Logger) (orders.Notifier, func()) {
	var members notify.Multi
	closeFn := func() {}

	if len(cfg.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.Kafka.Brokers...)
		members = append(members, notify.NewBreakerNotifier(kn, breakerSettings(cfg, "kafka"), log))
		closeFn = func() {
			if err := kn.Close(); err != nil {
				log.Warn("close kafka writer failed", "error", err)
			}
		}
		log.Info("order events enabled", "brokers", cfg.Kafka.Brokers, "topic", notify.OrderCreatedTopic)
	}

	if cfg.SMTP.Enabled() {
		dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		en := notify.NewEmailNotifier(dialer, lookup, notify.EmailSettings{
			From:        cfg.SMTP.From,
			TrackingURL: cfg.Notify.TrackingURL,
		})
		members = append(members, notify.NewBreakerNotifier(en, breakerSettings(cfg, "email"), log))
		log.Info("order confirmation mail enabled", "smtp_host", cfg.SMTP.Host)
	}

	if len(members) == 0 {
		return notify.Nop{}, closeFn
	}
	return members, closeFn
}

func breakerSettings(cfg config.Config, name string) notify.BreakerSettings {
	return notify.BreakerSettings{
		Name:        name + "-notifier",
		MaxFailures: cfg.Notify.BreakerFailures,
		OpenTimeout: cfg.Notify.BreakerTimeout,
	}
}
