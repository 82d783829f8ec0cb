package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kioskpos/internal/config"
	"kioskpos/internal/events"
	"kioskpos/internal/httpapi"
	"kioskpos/internal/hub"
	"kioskpos/internal/models"
	"kioskpos/internal/store"
	"kioskpos/internal/store/memory"
	"kioskpos/internal/store/postgres"
	"kioskpos/internal/telemetry"
	"kioskpos/internal/turn"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "order-service"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(serviceName, telemetry.Options{
		Endpoint: cfg.OTELEndpoint,
		Insecure: cfg.OTELInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	st, closeStore := openStore(cfg)
	defer closeStore()

	if cfg.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		user, created, err := st.EnsureUser(ctx, store.EnsureUserInput{
			Name:     cfg.AdminName,
			Email:    cfg.AdminEmail,
			Role:     models.RoleAdmin,
			Password: cfg.AdminPassword,
		})
		cancel()
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			log.Printf("bootstrap admin created email=%s user_id=%s", user.Email, user.UserID)
		}
	}

	realtime := hub.New()
	publisher := events.Multi{realtime}
	if broker := openBroker(cfg); broker != nil {
		publisher = append(publisher, broker)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("events close error: %v", err)
		}
	}()

	clock := turn.NewClock(cfg.Location())
	handler := httpapi.NewHandler(st, httpapi.Options{
		Clock:      clock,
		Publisher:  publisher,
		SessionTTL: cfg.SessionTTL,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		DevicePerMinute: cfg.DeviceRateLimitPerMinute,
		DeviceBurst:     cfg.DeviceRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", hub.Handler(realtime, "/realtime"))
	mux.Handle("/", limiter.Middleware(handler.Routes()))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(mux), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s business_tz=%s", serviceName, server.Addr, clock.Location())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openStore uses Postgres when DB_DSN is set and the in-memory store
// otherwise. The memory store only suits a single instance.
func openStore(cfg config.Config) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		st, err := memory.NewStore(memory.Options{SnapshotPath: cfg.SnapshotPath})
		if err != nil {
			log.Fatalf("memory store: %v", err)
		}
		log.Printf("store=memory snapshot=%q", cfg.SnapshotPath)
		return st, func() {}
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	log.Printf("store=postgres")
	return postgres.NewStore(pool, postgres.Options{}), pool.Close
}

func openBroker(cfg config.Config) events.Publisher {
	switch cfg.EventsDriver {
	case "", "none":
		return nil
	case "nats":
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.EventsTopic)
		if err != nil {
			log.Printf("events driver=nats disabled: %v", err)
			return nil
		}
		return publisher
	case "amqp", "rabbitmq":
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsTopic)
		if err != nil {
			log.Printf("events driver=amqp disabled: %v", err)
			return nil
		}
		return publisher
	default:
		log.Printf("unknown EVENTS_DRIVER=%s, broker publishing disabled", cfg.EventsDriver)
		return nil
	}
}
