package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/agora/internal/analytics"
	"github.com/lalith-99/agora/internal/api"
	"github.com/lalith-99/agora/internal/config"
	"github.com/lalith-99/agora/internal/db"
	"github.com/lalith-99/agora/internal/engine"
	"github.com/lalith-99/agora/internal/middleware"
	"github.com/lalith-99/agora/internal/models"
	"github.com/lalith-99/agora/internal/notify"
	"github.com/lalith-99/agora/internal/observ"
	"github.com/lalith-99/agora/internal/realtime"
	"github.com/lalith-99/agora/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres and Redis
	//
	// Startup has no parent deadline, so Background() is the right
	// root context here. Per-request deadlines come later.
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	// ---------------------------------------------------------------
	// 4. Create repositories
	//
	// Every store shares the one pool; pgxpool is goroutine-safe.
	// ---------------------------------------------------------------
	pool := database.Pool()
	communityStore := postgres.NewCommunityStore(pool)
	discussionStore := postgres.NewDiscussionStore(pool)
	replyStore := postgres.NewReplyStore(pool)
	voteStore := postgres.NewVoteStateStore(pool)
	analyticsStore := postgres.NewAnalyticsStore(pool)

	// ---------------------------------------------------------------
	// 5. Assemble the engine
	//
	// The hub serves local subscriptions; the bridge wraps it so change
	// events also cross nodes over Redis pub/sub. Writers publish
	// through the bridge and never notice the difference.
	// ---------------------------------------------------------------
	aggregator := analytics.NewAggregator(analyticsStore, rdb, logger)
	hub := realtime.NewHub(discussionStore, logger)
	bridge := realtime.NewBridge(rdb, hub, logger)
	notifier := notify.NewDispatcher(rdb, logger)

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	go func() {
		if err := bridge.Run(bridgeCtx); err != nil && bridgeCtx.Err() == nil {
			logger.Error("change bridge stopped", zap.Error(err))
		}
	}()

	votes := engine.NewVoteProcessor(voteStore, aggregator, notifier, bridge, logger)
	lifecycle := engine.NewLifecycle(
		communityStore, discussionStore, replyStore,
		communityStore, // the community store doubles as the role service
		aggregator, notifier, bridge, logger,
	)

	// ---------------------------------------------------------------
	// 6. Handlers and routes
	// ---------------------------------------------------------------
	communityHandler := api.NewCommunityHandler(lifecycle, aggregator, logger)
	discussionHandler := api.NewDiscussionHandler(lifecycle, hub, logger)
	replyHandler := api.NewReplyHandler(lifecycle, logger)
	voteHandler := api.NewVoteHandler(votes, logger)
	subscribeHandler := api.NewSubscribeHandler(hub, logger)

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	// Health check is public so load balancers can reach it.
	srv.GET("/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.POST("/communities", communityHandler.Create)
	v1.POST("/communities/:id/members", communityHandler.Join)
	v1.GET("/communities/:id/discussions", discussionHandler.List)
	v1.GET("/communities/:id/discussions/pinned", discussionHandler.ListPinned)
	v1.GET("/communities/:id/analytics", communityHandler.Analytics)
	v1.GET("/communities/:id/analytics/live", communityHandler.LiveDashboard)
	v1.GET("/communities/:id/subscribe", subscribeHandler.Stream)

	v1.POST("/discussions", discussionHandler.Create)
	v1.GET("/discussions/:id", discussionHandler.Get)
	v1.PATCH("/discussions/:id", discussionHandler.Update)
	v1.DELETE("/discussions/:id", discussionHandler.Delete)
	v1.POST("/discussions/:id/pin", discussionHandler.SetFlag("pin"))
	v1.POST("/discussions/:id/lock", discussionHandler.SetFlag("lock"))
	v1.POST("/discussions/:id/feature", discussionHandler.SetFlag("feature"))
	v1.POST("/discussions/:id/status", discussionHandler.Transition)
	v1.POST("/discussions/:id/votes", voteHandler.Cast(models.ItemDiscussion))
	v1.POST("/discussions/:id/replies", replyHandler.Create)
	v1.GET("/discussions/:id/replies", replyHandler.List)

	v1.PATCH("/replies/:id", replyHandler.Update)
	v1.DELETE("/replies/:id", replyHandler.Delete)
	v1.POST("/replies/:id/votes", voteHandler.Cast(models.ItemReply))

	logger.Info("starting Agora",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)
	return srv.Run(":" + cfg.Port)
}
