package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreconfig "github.com/AzielCF/postpilot/core/config"
	"github.com/AzielCF/postpilot/ui/rest"
	"github.com/AzielCF/postpilot/ui/rest/middleware"
	"github.com/AzielCF/postpilot/ui/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the scheduling engine over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global

	fiberConfig := fiber.Config{
		EnableTrustedProxyCheck: true,
		Network:                 "tcp",
		AppName:                 "PostPilot Scheduling Engine",
		ServerHeader:            "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Account-ID, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        1000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	if cfg.App.Debug {
		app.Use(logger.New())
	}

	apiGroup := app.Group(cfg.App.BasePath + "/api")

	if len(cfg.App.BasicAuth) > 0 {
		account := make(map[string]string)
		for _, basicAuth := range cfg.App.BasicAuth {
			ba := strings.Split(basicAuth, ":")
			if len(ba) != 2 {
				logrus.Fatalln("Basic auth is not valid, please use the following format <user>:<secret>")
			}
			account[ba[0]] = ba[1]
		}
		apiGroup.Use(basicauth.New(basicauth.Config{
			Users: account,
			Next: func(c *fiber.Ctx) bool {
				// Allow CORS preflight without credentials.
				return c.Method() == fiber.MethodOptions
			},
		}))
	} else {
		logrus.Warn("[REST] APP_BASIC_AUTH not set, API is unauthenticated")
	}

	// Background machinery: scheduler loop, cron maintenance, websocket hub.
	engineCtx, stopEngine := context.WithCancel(context.Background())
	scheduler.StartLoop(engineCtx)
	cronRunner := startCronJobs(engineCtx)
	go websocket.RunHub()

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}

		stopEngine()
		if cronRunner != nil {
			<-cronRunner.Stop().Done()
		}
		StopApp()
	}()

	rest.InitRestPost(apiGroup, postUsecase)
	rest.InitRestAnalytics(apiGroup, analyticsUsecase)
	rest.InitRestAI(apiGroup, aiUsecase)
	rest.InitRestPreview(apiGroup, previewFetcher)
	rest.InitRestHealth(apiGroup, db, vkClient)
	apiGroup.Get("/workers/stats", rest.GetWorkerPoolStats)

	// Websocket event feed
	websocket.RegisterRoutes(apiGroup)

	// 404 handler for the API group
	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
}

// startCronJobs schedules the fixed-cadence maintenance work: keeping the
// materialization horizon topped up and running the analytics watcher.
func startCronJobs(ctx context.Context) *cron.Cron {
	cfg := coreconfig.Global
	runner := cron.New()

	if _, err := runner.AddFunc(cfg.Scheduler.HorizonCron, func() { extendAllHorizons(ctx) }); err != nil {
		logrus.Fatalf("Invalid SCHEDULER_HORIZON_CRON %q: %v", cfg.Scheduler.HorizonCron, err)
	}
	if _, err := runner.AddFunc(cfg.Scheduler.AnalyticsCron, func() {
		if err := analyticsUsecase.RunWatcher(ctx); err != nil {
			logrus.WithError(err).Error("[ANALYTICS] Watcher run failed")
		}
	}); err != nil {
		logrus.Fatalf("Invalid SCHEDULER_ANALYTICS_CRON %q: %v", cfg.Scheduler.AnalyticsCron, err)
	}

	runner.Start()
	return runner
}

func extendAllHorizons(ctx context.Context) {
	posts, err := ledger.ListRecurringPosts(ctx)
	if err != nil {
		logrus.WithError(err).Error("[SCHEDULER] Failed to list recurring posts for horizon upkeep")
		return
	}

	total := 0
	for _, post := range posts {
		added, err := ledger.ExtendHorizon(ctx, post.AccountID, post.ID)
		if err != nil {
			logrus.WithError(err).Errorf("[SCHEDULER] Horizon upkeep failed for post %s", post.ID)
			continue
		}
		total += added
	}

	if total > 0 {
		logrus.Infof("[SCHEDULER] Horizon upkeep materialized %d instances", total)
		scheduler.Wake(ctx)
	}
}
