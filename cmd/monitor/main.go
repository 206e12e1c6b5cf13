package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/api"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/config"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/database"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/detector"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/kafka"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/notifier"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/pipeline"
	"github.com/Capitan-Parrot/site-safety-monitor/internal/s3"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Main: init...")
	_ = godotenv.Load()

	// Чтение конфига; любая ошибка здесь фатальна — процесс не стартует
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация базы данных (опционально)
	var db *database.Database
	if cfg.Postgres.DSN != "" {
		db, err = database.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatal(err)
		}
		if err := db.Init(ctx); err != nil {
			log.Fatal(err)
		}
		defer db.Close()
	}

	// Инициализация s3 для снапшотов (опционально)
	var snapshots pipeline.SnapshotStore
	if cfg.Minio.Endpoint != "" {
		s3Client, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey)
		if err != nil {
			log.Fatalf("Failed connect to MinIO: %v", err)
		}
		snapshots = s3Client
	}

	// Каналы доставки уведомлений
	var senders notifier.Fanout
	if cfg.Notifier.WebhookURL != "" {
		senders = append(senders, notifier.NewWebhookSender(cfg.Notifier.WebhookURL, cfg.Notifier.WebhookToken))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AlertTopic != "" {
		kafkaSender, err := notifier.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka alert producer: %v", err)
		}
		defer kafkaSender.Close()
		senders = append(senders, kafkaSender)
	}
	if len(senders) == 0 {
		log.Fatal("Main: no notification channel configured")
	}

	var deliveryLog notifier.DeliveryLog
	if db != nil {
		deliveryLog = db
	}
	dispatcher := notifier.NewDispatcher(senders, deliveryLog, notifier.Options{
		QueueCapacity:  cfg.Notifier.QueueCapacity,
		OverflowPolicy: cfg.Notifier.OverflowPolicy,
		RetryLimit:     cfg.Notifier.RetryLimit,
		BackoffBase:    cfg.Notifier.BackoffBase.Std(),
		BackoffCap:     cfg.Notifier.BackoffCap.Std(),
	})
	go dispatcher.Run(ctx)

	// Heartbeats раннеров стримов (опционально)
	var heartbeats pipeline.HeartbeatSender
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.HeartbeatTopic != "" {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.HeartbeatTopic)
		if err != nil {
			log.Fatalf("Failed to create Kafka heartbeat producer: %v", err)
		}
		defer producer.Close()
		heartbeats = producer
	}

	registry := pipeline.NewRegistry()
	deps := pipeline.Deps{
		Detector: detector.NewClient(cfg.Detection.Endpoint,
			cfg.Detection.ConfidenceThreshold, cfg.Detection.LabelThresholds),
		Gate:       detector.NewGate(cfg.Detection.MaxConcurrent),
		Sink:       dispatcher,
		Registry:   registry,
		Snapshots:  snapshots,
		Heartbeats: heartbeats,
	}
	if db != nil {
		deps.AlertLog = db
	}
	supervisor := pipeline.NewSupervisor(cfg, deps)

	// Настройка роутера статусного API
	handlers := api.NewHandlers(registry, db)
	server := &http.Server{Addr: cfg.API.Addr, Handler: handlers.Router()}
	go func() {
		log.Printf("Starting status API server on %s", cfg.API.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Status API server error: %v", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(done)
	}()

	// Wait for shutdown signal or all streams finishing
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("Main: shutdown signal received")
		cancel()
		<-done
	case <-done:
	}

	server.Shutdown(context.Background())
	log.Println("Main: bye")
}
