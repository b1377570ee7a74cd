package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"collab-service/internal/blob"
	"collab-service/internal/config"
	"collab-service/internal/db"
	"collab-service/internal/handlers"
	"collab-service/internal/health"
	"collab-service/internal/middleware"
	"collab-service/internal/observability"
	"collab-service/internal/rabbitmq"
	"collab-service/internal/repositories"
	"collab-service/internal/services"
	"collab-service/internal/session"
	"collab-service/internal/telemetry"
	"collab-service/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("collab-service stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg.Logging))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Service, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	status := rabbitmq.Describe(publisher)
	slog.Info("event publisher ready", "mode", status.Mode, "reason", status.Reason)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRouteKey, cfg.Service.Name, cfg.Service.Environment)

	var tracker middleware.SessionTracker
	if cfg.Redis.URL != "" {
		t, err := session.Dial(ctx, cfg.Redis.URL, cfg.Redis.SessionTTL)
		if err != nil {
			slog.Warn("redis unavailable, reconciling on every request", "err", err)
		} else {
			defer t.Close()
			tracker = t
		}
	}

	store, err := blob.New(cfg.Blob)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	groupRepo := repositories.NewGroupRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub(publisher)
	logger := slog.Default()
	dispatcher := services.NewDispatcher(notificationRepo, publisher, hub, logger.With("component", "notifications"))
	messageSvc := services.NewMessageService(groupRepo, groupMessageRepo, store, dispatcher, hub, logger.With("component", "messages"))
	chatSvc := services.NewChatService(chatRepo, messageRepo, userRepo, store, dispatcher, hub, logger.With("component", "chats"))
	membershipSvc := services.NewMembershipService(groupRepo, userRepo, store, dispatcher, hub, logger.With("component", "membership"))
	searchSvc := services.NewSearchService(userRepo, groupRepo)

	if err := membershipSvc.EnsureDefaultGroups(ctx, cfg.DefaultGroups); err != nil {
		return err
	}

	if !cfg.Service.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.Service.Name), observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	healthServer := health.NewServer(database, 15*time.Second)
	router.GET("/healthz", func(c *gin.Context) {
		if err := healthServer.Probe(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if local, ok := store.(*blob.LocalStore); ok {
		router.Static(cfg.Blob.PublicPath, local.Dir())
	}

	api := router.Group("/", middleware.AuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer), middleware.ReconcileMiddleware(membershipSvc, tracker))
	handlers.NewGroupHandler(messageSvc, membershipSvc, audit, cfg.Blob.MaxBytes).Register(api)
	handlers.NewChatHandler(chatSvc, cfg.Blob.MaxBytes).Register(api)
	handlers.NewNotificationHandler(dispatcher, audit).Register(api)
	handlers.NewSearchHandler(searchSvc).Register(api)
	handlers.RegisterDebugRoutes(api, audit, hub, cfg.Service.Debug)

	api.GET("/ws/groups/:group_id", ws.NewGroupWebSocketHandler(hub, messageSvc).Handle)
	api.GET("/ws/chats/:chat_id", ws.NewChatWebSocketHandler(hub, chatSvc).Handle)
	api.GET("/ws/notifications", ws.NewNotificationWebSocketHandler(hub).Handle)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		slog.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		return healthServer.Serve(lis)
	})
	g.Go(func() error {
		healthServer.Watch(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		healthServer.Stop(sctx)
		return httpServer.Shutdown(sctx)
	})

	return g.Wait()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
