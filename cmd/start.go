package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crm-sync/core/loader"
	"crm-sync/core/logger"
	"crm-sync/core/metrics"
	"crm-sync/core/middleware/auth"
	"crm-sync/core/middleware/rayid"
	"crm-sync/feature/audit"
	"crm-sync/feature/conflicts"
	"crm-sync/feature/integrity"
	"crm-sync/feature/poll"
	"crm-sync/feature/records"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync server",
	Long: `Starts the HTTP server, the poll scheduler (when sync.poll_interval_seconds
is set) and the background sync job workers.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Wire configuration, logger, store and engines
		a, err := bootstrap()
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		defer a.close()
		logg := a.logger
		zap.ReplaceGlobals(logg)

		if err := a.cfg.Server.Validate(); err != nil {
			logg.Fatal("Invalid server configuration", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 2. Report archive (optional)
		reports, err := a.reportStore(ctx)
		if err != nil {
			logg.Fatal("Failed to initialize storage", zap.Error(err))
		}
		if reports == nil {
			logg.Warn("Storage disabled, audit reports are kept in run history only")
		}

		// 3. Features
		pollService := poll.NewService(a.integration, a.checkpoints, a.history, a.cfg.Sync.PollLookback(), logg)
		var scheduler *poll.Scheduler
		if interval := a.cfg.Sync.PollInterval(); interval > 0 {
			scheduler, err = poll.NewScheduler(pollService, a.integration.Names(), interval, logg)
			if err != nil {
				logg.Fatal("Failed to create poll scheduler", zap.Error(err))
			}
		}

		mgr := loader.NewManager()
		mgr.Register(audit.NewFeature(a.integration, a.history, reports, a.cfg.Storage.Bucket, logg))
		mgr.Register(conflicts.NewFeature(a.integration, a.runner, logg))
		mgr.Register(poll.NewFeature(pollService, scheduler))
		mgr.Register(integrity.NewFeature(integrity.Options{
			DB:     a.db,
			Models: records.Models(),
			Client: reports,
			Bucket: a.cfg.Storage.Bucket,
			Region: a.cfg.Storage.Region,
			Local:  a.store,
			Remote: a.remote,
			Types:  a.integration.Names(),
		}, logg))

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
			ReadTimeout:           a.cfg.Server.ReadTimeout(),
			WriteTimeout:          a.cfg.Server.WriteTimeout(),
		})

		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Request logging with the ray id
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth, scrapes of the metrics endpoint pass without a key
		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey, Skip: []string{metrics.Path}}))
		metrics.Register(app)

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		if scheduler != nil {
			if err := scheduler.Start(ctx); err != nil {
				logg.Fatal("Failed to start poll scheduler", zap.Error(err))
			}
		}

		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
			if err := app.Listen(a.cfg.Server.Addr()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		if scheduler != nil {
			_ = scheduler.Stop()
		}
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
