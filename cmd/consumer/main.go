package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-user-registration/internal/application/delivery"
	"github.com/go-user-registration/internal/config"
	"github.com/go-user-registration/internal/infrastructure/broker"
	"github.com/go-user-registration/internal/infrastructure/smtp"
	"github.com/joho/godotenv"
)

func main() {
	purge := flag.Bool("purge", false, "purge the queue and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ValidateBroker(); err != nil {
		log.Fatalf("broker config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *purge {
		if err := purgeQueue(ctx, cfg); err != nil {
			log.Fatalf("purge: %v", err)
		}
		return
	}

	var mail delivery.Mailer
	if cfg.SMTP.Enabled {
		mail = smtp.NewMailer(cfg.SMTP)
	} else {
		log.Println("SMTP disabled, verification codes are logged only")
	}

	consumer := broker.NewConsumer(broker.ConsumerDeps{
		Config:  cfg.Broker,
		Handler: delivery.NewHandler(mail),
	})

	log.Printf("Consumer starting on queue %s (env=%s)", cfg.Broker.Queue, cfg.AppEnv)
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("consumer: %v", err)
	}
	log.Println("Consumer stopped")
}

func purgeQueue(ctx context.Context, cfg *config.Config) error {
	// The consumer may still be running; keep its binding in place.
	bc := cfg.Broker
	bc.KeepBindingOnClose = true
	p := broker.NewPublisher(broker.PublisherDeps{Config: bc})
	if err := p.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("WARN: closing publisher: %v", err)
		}
	}()
	n, err := p.PurgeQueue(ctx)
	if err != nil {
		return err
	}
	log.Printf("Purged %d messages from %s", n, cfg.Broker.Queue)
	return nil
}
