package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/microblog/cmd/server"
	"example.com/microblog/cmd/worker"
	appkafka "example.com/microblog/internal/broker"
	config "example.com/microblog/internal/init"
	"example.com/microblog/internal/mailer"
	"example.com/microblog/internal/store"
	"example.com/microblog/internal/token"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Postgres store, running pending migrations
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}
	defer st.Close()

	// Mail delivery pipeline: bounded queue drained by a worker pool
	ml := mailer.New(mailer.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		Sender:    cfg.MailSender,
		Workers:   cfg.MailWorkers,
		QueueSize: cfg.MailQueueSize,
	})
	defer ml.Close()

	// Token signer shared by session auth and password resets
	signer := token.NewSigner(cfg.JWTSecret)

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Run application depending on selected mode
	switch mode {
	case "server":
		// HTTP API that publishes post-created events
		kafkaWriter, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer kafkaWriter.Close()

		server.Run(ctx, st, kafkaWriter, ml, signer, cfg)
	case "worker":
		// Consumes post-created events and emails followers
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		defer kafkaReader.Close()

		w := worker.New(st, kafkaReader, ml, 0, 0)
		w.Run(ctx)
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}
