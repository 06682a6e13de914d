package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"messenger-service/internal/access"
	grpcserver "messenger-service/internal/grpc"
	"messenger-service/internal/handlers"
	"messenger-service/internal/locator"
	"messenger-service/internal/logger"
	"messenger-service/internal/maintenance"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const healthInterval = 15 * time.Second

// ServeCommand runs the HTTP API, the websocket hub, the gRPC health server
// and the maintenance job consumer.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the messenger API",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracer(ctx, a.cfg.Service.Name, a.cfg.Tracing.Endpoint)
		if err != nil {
			logger.Log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Service.HTTPAddr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	health := grpcserver.NewServer(map[string]grpcserver.Probe{
		"messenger.database": a.pingDatabase,
		"messenger.calls":    a.callsAvailable,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return health.Serve(gctx, a.cfg.Service.GRPCAddr, healthInterval)
	})
	g.Go(func() error {
		return consumeJobs(gctx, a)
	})
	return g.Wait()
}

// consumeJobs runs dispatched maintenance jobs. Without AMQP it only waits for shutdown.
func consumeJobs(ctx context.Context, a *app) error {
	consumer, err := rabbitmq.NewConsumer(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange, a.cfg.AMQP.JobsQueue,
		maintenance.JobEndCalls, maintenance.JobPurgeThreads)
	if err != nil {
		logger.Log.Warn("maintenance jobs disabled", zap.Error(err))
		<-ctx.Done()
		return nil
	}
	defer consumer.Close()
	return consumer.Run(ctx, a.runner.HandleJob)
}

func newRouter(a *app) *gin.Engine {
	if !a.cfg.Service.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := a.cfg
	audit := telemetry.NewAuditEmitter(a.publisher, cfg.AMQP.AuditRoutingKey, cfg.Service.Name, cfg.Service.Environment)
	resolver := access.NewResolver(a.participants, a.messages, a.directory, a.lockout, cfg.Features)
	verifier := middleware.NewTokenVerifier(cfg.Auth.JWTSecret, a.directory)
	hub := ws.NewHub(a.publisher)

	threadHandler := handlers.NewThreadHandler(a.threads, a.participants, a.messages, resolver, a.directory, a.callService, hub, a.push, audit, cfg.Threads.IndexCount)
	messageHandler := handlers.NewMessageHandler(a.threads, a.messages, resolver, a.store, hub, a.push, audit, cfg.Threads.MessageIndexCount)
	reactionHandler := handlers.NewReactionHandler(messageHandler, a.reactions, hub, a.push)
	callHandler := handlers.NewCallHandler(a.threads, a.calls, resolver, a.callService, audit)
	locatorHandler := handlers.NewLocatorHandler(locator.New(a.directory, a.threads))
	statusHandler := handlers.NewStatusHandler(a.threads)
	wsHandler := ws.NewHandler(hub, verifier)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Service.Name))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())
	router.Use(handlers.WithAudit(audit))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, audit, verifier, cfg.Service.Debug)

	api := router.Group("/", middleware.AuthMiddleware(verifier))
	api.GET("/status", statusHandler.ProviderStatus)
	api.GET("/privates/recipient/:alias/:id", locatorHandler.LocateRecipient)

	api.GET("/threads", threadHandler.ListThreads)
	api.GET("/threads/:thread_id", threadHandler.ShowThread)
	api.GET("/threads/:thread_id/participants", threadHandler.ListParticipants)
	api.POST("/threads/:thread_id/participants", threadHandler.AddParticipants)
	api.POST("/threads/:thread_id/read", threadHandler.MarkRead)

	api.GET("/threads/:thread_id/messages", messageHandler.ListMessages)
	api.POST("/threads/:thread_id/messages", messageHandler.PostMessage)
	api.GET("/threads/:thread_id/messages/:message_id", messageHandler.ShowMessage)
	api.PUT("/threads/:thread_id/messages/:message_id", messageHandler.UpdateMessage)
	api.DELETE("/threads/:thread_id/messages/:message_id", messageHandler.DeleteMessage)
	api.GET("/threads/:thread_id/messages/:message_id/history", messageHandler.MessageHistory)
	api.POST("/threads/:thread_id/images", messageHandler.PostImage)
	api.POST("/threads/:thread_id/documents", messageHandler.PostDocument)
	api.POST("/threads/:thread_id/audio", messageHandler.PostAudio)

	api.GET("/threads/:thread_id/messages/:message_id/reactions", reactionHandler.ListReactions)
	api.POST("/threads/:thread_id/messages/:message_id/reactions", reactionHandler.PostReaction)
	api.DELETE("/threads/:thread_id/messages/:message_id/reactions/:reaction_id", reactionHandler.DeleteReaction)

	api.GET("/threads/:thread_id/calls", callHandler.ListCalls)
	api.POST("/threads/:thread_id/calls", callHandler.StartCall)
	api.GET("/threads/:thread_id/calls/:call_id", callHandler.ShowCall)
	api.POST("/threads/:thread_id/calls/:call_id/setup", callHandler.CompleteSetup)
	api.POST("/threads/:thread_id/calls/:call_id/join", callHandler.JoinCall)
	api.POST("/threads/:thread_id/calls/:call_id/leave", callHandler.LeaveCall)
	api.POST("/threads/:thread_id/calls/:call_id/end", callHandler.EndCall)
	api.GET("/threads/:thread_id/calls/:call_id/participants", callHandler.ListParticipants)
	api.GET("/threads/:thread_id/calls/:call_id/participants/:participant_id", callHandler.ShowParticipant)
	api.POST("/threads/:thread_id/calls/:call_id/participants/:participant_id/kick", callHandler.KickParticipant)

	return router
}
