package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/educonnect/push-engine/internal/dispatch"
	"github.com/educonnect/push-engine/pkg/config"
	"github.com/educonnect/push-engine/pkg/messaging"
	"github.com/educonnect/push-engine/pkg/monitoring"
	"github.com/educonnect/push-engine/pkg/observability"
)

func main() {
	cfg, err := config.Load(os.Getenv("PUSH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "dispatcher",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.OTLPEndpoint,
		Environment:    cfg.Environment,
	})
	if err != nil {
		log.Fatalf("Failed to init tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	amqpCfg := messaging.DefaultConfig()
	amqpCfg.URL = cfg.AMQPURL
	amqpClient, err := messaging.NewRabbitMQClient(amqpCfg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer amqpClient.Close()

	if _, err := amqpClient.DeclareQueueWithDLQ(dispatch.PushQueue); err != nil {
		log.Fatalf("Failed to declare push queue: %v", err)
	}

	var email dispatch.EmailSender
	if cfg.ResendAPIKey != "" {
		email = dispatch.NewResendEmailService(cfg.ResendAPIKey, cfg.FromEmail)
	}

	router := dispatch.NewRouter(amqpClient, email)

	consumer := messaging.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "push-dispatcher")
	defer consumer.Close()

	monitoring.StartMetricsServer(cfg.MetricsAddr)

	log.Printf("Dispatcher started, consuming %s", cfg.KafkaTopic)

	consumer.Consume(ctx, func(key string, value []byte) error {
		var event dispatch.Event
		if err := json.Unmarshal(value, &event); err != nil {
			log.Printf("Dropping malformed platform event: %v", err)
			return nil
		}
		return router.Route(ctx, &event)
	})
}
