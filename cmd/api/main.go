package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/prayer/internal/api"
	"example.com/prayer/internal/auth"
	"example.com/prayer/internal/config"
	"example.com/prayer/internal/consumer"
	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/events"
	"example.com/prayer/internal/notify"
	"example.com/prayer/internal/outbox"
	"example.com/prayer/internal/persistence/memory"
	persistence "example.com/prayer/internal/persistence/postgres"
	httptransport "example.com/prayer/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := notify.NewHub()
	var wg sync.WaitGroup

	var service *domain.Service
	if cfg.PostgresURL == "" {
		log.Printf("POSTGRES_URL not set; using in-memory store")
		service = domain.NewService(memory.NewRepository(),
			domain.WithCooldown(cfg.Cooldown),
			domain.WithNotifier(hub),
		)
	} else {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		service = domain.NewService(persistence.NewRepository(pool), domain.WithCooldown(cfg.Cooldown))

		notifyHandler := consumer.NewNotifyHandler(hub)
		var writer outbox.MessageWriter
		if cfg.UsesKafka() {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()
			writer = producer

			groupID := cfg.KafkaGroupPrefix + "-" + uuid.NewString()
			reader := consumer.NewReader(cfg.KafkaBrokers, events.Topic, groupID)
			proc := consumer.NewProcessor(reader, notifyHandler)

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer reader.Close()

				log.Printf("consumer started (topic=%s, group=%s)", events.Topic, groupID)
				if err := proc.Run(ctx); err != nil && err != context.Canceled {
					log.Printf("consumer stopped with error: %v", err)
				}
			}()
		} else {
			log.Printf("KAFKA_BROKERS not set; delivering outbox events in-process")
			writer = consumer.NewLoopbackWriter(notifyHandler)
		}

		var registry outbox.SchemaRegistrar = outbox.StaticRegistry{}
		if cfg.SchemaRegistryURL != "" {
			registry = outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		}

		dispatcher := outbox.NewDispatcher(pool, writer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
		defer dispatcher.Wait()

		replayer := outbox.NewReplayer(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, log.New(os.Stderr, "[dlq] ", log.LstdFlags))
		wg.Add(1)
		go func() {
			defer wg.Done()
			replayer.Run(ctx, cfg.DLQPollInterval, cfg.OutboxBatchSize)
		}()
	}

	passwordHash := cfg.AdminPasswordHash
	if passwordHash == "" {
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Fatalf("admin password: %v", err)
		}
		passwordHash = hash
	}
	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	sessions, err := auth.NewAuthenticator(authCfg, passwordHash, cfg.AdminSessionTTL)
	if err != nil {
		log.Fatalf("admin authenticator: %v", err)
	}

	handler := api.NewHandler(service, sessions, notify.NewStreamHandler(hub, cfg.StreamKeepalive))
	logger := log.New(os.Stderr, "", log.LstdFlags)

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.RequestLogger(logger)(httptransport.CORS(cfg.CORSOrigin)(api.NewRouter(handler, authCfg))),
	)
	// Streams end with the root context so Shutdown is not held open by SSE clients.
	server.BaseContext = func(net.Listener) context.Context { return ctx }

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("prayer api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	wg.Wait()
}
