package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	coreconfig "github.com/AzielCF/postpilot/core/config"
	coreDB "github.com/AzielCF/postpilot/core/database"
	domainAI "github.com/AzielCF/postpilot/domains/ai"
	domainAnalytics "github.com/AzielCF/postpilot/domains/analytics"
	domainPost "github.com/AzielCF/postpilot/domains/post"
	"github.com/AzielCF/postpilot/infrastructure/notify"
	"github.com/AzielCF/postpilot/infrastructure/social"
	"github.com/AzielCF/postpilot/infrastructure/valkey"
	aiClient "github.com/AzielCF/postpilot/integrations/ai"
	"github.com/AzielCF/postpilot/pkg/linkpreview"
	"github.com/AzielCF/postpilot/pkg/pubworker"
	"github.com/AzielCF/postpilot/pkg/utils"
	"github.com/AzielCF/postpilot/scheduling/application"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/repository"
	"github.com/AzielCF/postpilot/ui/websocket"
	"github.com/AzielCF/postpilot/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var (
	db         *gorm.DB
	ledgerRepo *repository.LedgerGormRepository
	vkClient   *valkey.Client
	serverID   string

	eventSink   *notify.Fanout
	ledger      *application.Ledger
	dispatcher  *application.Dispatcher
	scheduler   *application.Scheduler
	publishPool *pubworker.PublishWorkerPool

	postUsecase      domainPost.IPostUsecase
	analyticsUsecase domainAnalytics.IAnalyticsUsecase
	aiUsecase        domainAI.IAIUsecase
	previewFetcher   *linkpreview.Fetcher
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postpilot",
	Short: "Recurring social post scheduling engine",
	Long: `Schedules one-off and recurring social posts, materializes them into
publishable instances and pushes them to the configured platforms over http api.`,
}

func init() {
	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig applies viper overrides so container deployments can pass
// settings that were not present when the .env file was read.
func initEnvConfig() {
	viper.AutomaticEnv()

	cfg := coreconfig.Global
	if envPort := viper.GetString("app_port"); envPort != "" {
		cfg.App.Port = envPort
	}
	if viper.IsSet("app_debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if envBasicAuth := viper.GetString("app_basic_auth"); envBasicAuth != "" {
		cfg.App.BasicAuth = strings.Split(envBasicAuth, ",")
	}
	if envDriver := viper.GetString("db_driver"); envDriver != "" {
		cfg.Database.Driver = envDriver
	}
	if envName := viper.GetString("db_name"); envName != "" {
		cfg.Database.Name = envName
	}
	if viper.IsSet("valkey_enabled") {
		cfg.Database.ValkeyEnabled = viper.GetBool("valkey_enabled")
	}
	if viper.IsSet("social_stub_mode") {
		cfg.Social.StubMode = viper.GetBool("social_stub_mode")
	}
}

func initFlags() {
	cfg := coreconfig.Global

	rootCmd.PersistentFlags().StringVarP(
		&cfg.App.Port,
		"port", "p",
		cfg.App.Port,
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&cfg.App.Debug,
		"debug", "d",
		cfg.App.Debug,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&cfg.App.BasicAuth,
		"basic-auth", "b",
		cfg.App.BasicAuth,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.App.BasePath,
		"base-path", "",
		cfg.App.BasePath,
		`base path for subpath deployment --base-path <string> | example: --base-path="/postpilot"`,
	)

	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.Driver,
		"db-driver", "",
		cfg.Database.Driver,
		`database driver --db-driver <string> | example: --db-driver="sqlite" or --db-driver="postgres"`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.Name,
		"db-name", "",
		cfg.Database.Name,
		`database file path (sqlite) or database name (postgres) --db-name <string>`,
	)

	rootCmd.PersistentFlags().BoolVarP(
		&cfg.Social.StubMode,
		"stub-social", "",
		cfg.Social.StubMode,
		`record synthetic post ids instead of calling the platforms --stub-social <true/false>`,
	)

	rootCmd.PersistentFlags().IntVarP(
		&cfg.WorkerPool.Size,
		"publish-workers", "",
		cfg.WorkerPool.Size,
		`number of concurrent publish workers --publish-workers <number> | example: --publish-workers=20`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&cfg.WorkerPool.QueueSize,
		"publish-queue-size", "",
		cfg.WorkerPool.QueueSize,
		`queue size per publish worker --publish-queue-size <number> | example: --publish-queue-size=1000`,
	)
}

func initApp() {
	cfg := coreconfig.Global

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(cfg.Paths.Storages, 0o755); err != nil {
		logrus.Errorln(err)
	}

	ctx := context.Background()

	var err error
	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}

	ledgerRepo = repository.NewLedgerGormRepository(db)
	if err := ledgerRepo.Init(ctx); err != nil {
		logrus.Fatalf("Failed to init post ledger: %v", err)
	}

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)

	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("Failed to connect to Valkey: %v", err)
		}
		logrus.Infof("[APP] Valkey connected, coordinating as %s", serverID)
	}

	// Event sinks. The websocket hub is fed directly only without Valkey;
	// with Valkey it relays the shared events channel instead.
	eventSink = notify.NewFanout(notify.LogSink{})
	if len(cfg.Notify.WebhookURLs) > 0 {
		eventSink.Add(notify.NewWebhookSink(cfg.Notify.WebhookURLs, cfg.Notify.WebhookSecret))
	}
	if vkClient != nil {
		eventSink.Add(notify.NewValkeySink(vkClient))
		websocket.SetValkeyClient(vkClient)
	} else {
		eventSink.Add(websocket.Sink{})
	}

	publishers := social.BuildPublishers(cfg.Social)

	defaultHorizon := common.HorizonPolicy{Kind: common.HorizonByDays, Value: cfg.Scheduler.HorizonDays}
	if cfg.Scheduler.HorizonDays <= 0 {
		defaultHorizon = common.HorizonPolicy{Kind: common.HorizonByCount, Value: cfg.Scheduler.HorizonCount}
	}

	ledger = application.NewLedger(ledgerRepo, nil, defaultHorizon)
	dispatcher = application.NewDispatcher(ledgerRepo, publishers, eventSink, cfg.Scheduler.PublishTimeout, nil)
	publishPool = pubworker.GetGlobalPool()
	scheduler = application.NewScheduler(ledgerRepo, vkClient, dispatcher, publishPool, cfg.Scheduler.Lookahead, nil)

	postUsecase = usecase.NewPostService(ledger, dispatcher, scheduler)
	analyticsUsecase, err = usecase.NewAnalyticsService(
		db,
		ledgerRepo,
		eventSink,
		cfg.Scheduler.AnalyticsThreshold,
		cfg.Scheduler.ReminderWindow,
		nil,
	)
	if err != nil {
		logrus.Fatalf("Failed to init analytics service: %v", err)
	}
	aiUsecase = usecase.NewAIService(aiClient.NewClient(cfg.AI.GeminiAPIKey, cfg.AI.Model))
	previewFetcher = linkpreview.NewFetcher()
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the worker pool and connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	pubworker.StopGlobalPool()

	if vkClient != nil {
		vkClient.Close()
	}

	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
