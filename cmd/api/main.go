package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-user-registration/internal/config"
	"github.com/go-user-registration/internal/infrastructure/broker"
	"github.com/go-user-registration/internal/infrastructure/codestore"
	"github.com/go-user-registration/internal/infrastructure/console"
	"github.com/go-user-registration/internal/infrastructure/dynamo"
	"github.com/go-user-registration/internal/infrastructure/postgres"
	transporthttp "github.com/go-user-registration/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo, closeUsers, err := newUserRepo(ctx, cfg)
	if err != nil {
		log.Fatalf("user store: %v", err)
	}
	defer closeUsers()

	codes, closeCodes, err := newCodeStore(ctx, cfg)
	if err != nil {
		log.Fatalf("code store: %v", err)
	}
	defer closeCodes()

	publisher, closePublisher, err := newPublisher(ctx, cfg, codes)
	if err != nil {
		log.Fatalf("publisher: %v", err)
	}
	defer closePublisher()

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		UserRepo:  userRepo,
		CodeStore: codes,
		Publisher: publisher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func newUserRepo(ctx context.Context, cfg *config.Config) (transporthttp.UserRepository, func(), error) {
	switch cfg.UserStore {
	case config.UserStoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		// Creates the users table if it doesn't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewUserRepo(client, cfg.DynamoTables.Users), func() {}, nil
	case config.UserStorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Bootstrap(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewUserRepo(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown USER_STORE %q", cfg.UserStore)
	}
}

// codeStore is what both the HTTP layer and the serializer need.
type codeStore interface {
	transporthttp.CodeStore
	broker.CodeReader
}

func newCodeStore(ctx context.Context, cfg *config.Config) (codeStore, func(), error) {
	switch cfg.CodeStore {
	case config.CodeStoreMemory:
		mem := codestore.NewMemory(cfg.CodeTTL)
		mem.StartSweeper(ctx, time.Minute)
		return mem, func() {}, nil
	case config.CodeStoreRedis:
		client, err := codestore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store := codestore.NewRedis(client, cfg.CodeTTL)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Printf("WARN: closing redis client: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown CODE_STORE %q", cfg.CodeStore)
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, codes broker.CodeReader) (transporthttp.EventPublisher, func(), error) {
	ser := broker.NewSerializer(codes, nil)
	switch cfg.EventPublisher {
	case config.PublisherConsole:
		return console.NewPublisher(ser, nil), func() {}, nil
	case config.PublisherRabbitMQ:
		if err := cfg.ValidateBroker(); err != nil {
			return nil, nil, err
		}
		p := broker.NewPublisher(broker.PublisherDeps{Config: cfg.Broker, Serializer: ser})
		if err := p.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				log.Printf("WARN: closing publisher: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown EVENT_PUBLISHER %q", cfg.EventPublisher)
	}
}
