package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/educonnect/push-engine/internal/bridge"
	"github.com/educonnect/push-engine/internal/push"
	"github.com/educonnect/push-engine/internal/tray"
	"github.com/educonnect/push-engine/pkg/config"
	"github.com/educonnect/push-engine/pkg/database"
	"github.com/educonnect/push-engine/pkg/jsonutil"
	"github.com/educonnect/push-engine/pkg/messaging"
	"github.com/educonnect/push-engine/pkg/monitoring"
	"github.com/educonnect/push-engine/pkg/observability"
)

// Queue names the worker consumes from and publishes to.
const (
	backgroundQueue  = "push.background"
	trayDisplayQueue = "tray.display"
)

func main() {
	cfg, err := config.Load(os.Getenv("PUSH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger("push-worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "push-worker",
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

	for _, q := range []string{backgroundQueue, trayDisplayQueue} {
		if _, err := amqpClient.DeclareQueue(q); err != nil {
			log.Fatalf("Failed to declare queue %s: %v", q, err)
		}
	}
	if _, err := amqpClient.DeclareQueueWithDLQ("push.messages"); err != nil {
		log.Fatalf("Failed to declare push queue: %v", err)
	}

	opts := push.WorkerOptions{}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts.Dedup = push.NewRedisDeduper(rdb, 24*time.Hour)
	}

	var repo *push.Repository
	if cfg.PostgresDSN != "" {
		db, err := database.Connect(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate delivery log schema: %v", err)
		}
		repo = push.NewRepository(db)
		opts.Repo = repo
	}

	hub := bridge.NewHub(bridge.NewSessionVerifier(cfg.JWTSecret), nil, logger)
	opts.Bridge = hub

	notificationTray := tray.NewMemory(amqpClient, trayDisplayQueue)

	classifier := push.NewClassifier(push.Defaults{
		AppName: cfg.AppName,
		Icon:    cfg.IconURL,
	})
	presenter := push.NewPresenter(notificationTray, cfg.IconURL, repo)
	resolver, err := push.NewResolver(cfg.Origin)
	if err != nil {
		log.Fatalf("Invalid application origin: %v", err)
	}

	worker := push.NewWorker(classifier, presenter, resolver, notificationTray, hub, logger, opts)

	// Install and activate before consuming: every already-open window is
	// claimed by this worker generation before the first push is handled.
	if err := worker.Install(ctx); err != nil {
		log.Fatalf("Worker install failed: %v", err)
	}
	if err := worker.Activate(ctx); err != nil {
		log.Fatalf("Worker activate failed: %v", err)
	}

	go amqpClient.Consume(ctx, "push.messages", func(body []byte) error {
		return worker.HandlePush(ctx, body)
	})
	go amqpClient.Consume(ctx, backgroundQueue, func(body []byte) error {
		var msg push.BackgroundMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			// Same containment as the raw push path: drop, keep consuming.
			log.Printf("Dropping malformed background message: %v", err)
			return nil
		}
		return worker.HandleBackgroundMessage(ctx, &msg)
	})

	monitoring.StartMetricsServer(cfg.MetricsAddr)

	router := newRouter(worker, hub, notificationTray, repo, amqpClient)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: otelhttp.NewHandler(router, "push-worker"),
	}

	go func() {
		log.Printf("Push worker listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down push worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

func newRouter(worker *push.Worker, hub *bridge.Hub, notificationTray *tray.Memory, repo *push.Repository, health interface{ IsHealthy() bool }) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/ws", hub.ServeWS)

	r.HandleFunc("/v1/notifications/click", func(w http.ResponseWriter, req *http.Request) {
		var ev push.ClickEvent
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid click event")
			return
		}
		if err := worker.HandleClick(req.Context(), ev); err != nil {
			jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to resolve click")
			return
		}
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/debug/status", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]any{
			"state":      worker.State().String(),
			"generation": worker.Generation(),
			"windows":    hub.Size(),
			"unread":     notificationTray.Len(),
			"healthy":    health.IsHealthy(),
		}
		if repo != nil {
			if recent, err := repo.RecentDeliveries(req.Context(), 20); err == nil {
				status["recent"] = recent
			}
		}
		jsonutil.WriteJSON(w, http.StatusOK, status)
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/debug/test", func(w http.ResponseWriter, req *http.Request) {
		var msg push.BackgroundMessage
		if req.Body != nil {
			// An empty or invalid body still produces a default test notification.
			_ = json.NewDecoder(req.Body).Decode(&msg)
		}
		if err := worker.HandleBackgroundMessage(req.Context(), &msg); err != nil {
			jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to deliver test notification")
			return
		}
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
	}).Methods(http.MethodPost)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "active",
			"service": "push-worker",
			"date":    time.Now().Format(time.DateTime),
		})
	}).Methods(http.MethodGet)

	return r
}
