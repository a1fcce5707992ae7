package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-sync/internal/api"
	"chat-sync/internal/channel"
	"chat-sync/internal/config"
	"chat-sync/internal/observability"
	"chat-sync/internal/ops"
	"chat-sync/internal/session"
	"chat-sync/internal/telemetry"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_FILE", "chat-sync.yaml"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, "chat-sync", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	var audit *telemetry.AuditEmitter
	if cfg.AMQPURL != "" {
		publisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("amqp disabled: %v", err)
		} else {
			defer publisher.Close()
			observability.SetPublisher(publisher)
			audit = telemetry.NewAuditEmitter(publisher, "sync_events.audit", "chat-sync", cfg.Environment)
			log.Printf("amqp connected exchange=%s", cfg.AMQPExchange)
		}
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.Token)
	transport := channel.NewConn(cfg.ChannelURL, cfg.Token)

	sess := session.New(session.Config{
		UserID:  cfg.UserID,
		RoomAPI: client,
		MsgAPI:  client,
		UserAPI: client,
		Channel: transport,
		Audit:   audit,
	})
	if err := sess.Start(ctx); err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	log.Printf("session started user=%s rooms=%d", sess.UserID, sess.Rooms.Len())

	router := ops.NewRouter(sess, audit, cfg.DebugRoutes)
	server := &http.Server{Addr: cfg.OpsAddr, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops server error: %v", err)
		}
	}()
	log.Printf("ops server listening on %s", cfg.OpsAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	if err := sess.Close(); err != nil {
		log.Printf("session close: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
