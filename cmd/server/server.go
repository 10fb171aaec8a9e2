package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/marcvidal/linkshortener/cmd"
	"github.com/marcvidal/linkshortener/internal/api"
	"github.com/marcvidal/linkshortener/internal/cache"
	"github.com/marcvidal/linkshortener/internal/config"
	"github.com/marcvidal/linkshortener/internal/geo"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/monitor"
	"github.com/marcvidal/linkshortener/internal/qrcode"
	"github.com/marcvidal/linkshortener/internal/repository"
	"github.com/marcvidal/linkshortener/internal/services"
	"github.com/marcvidal/linkshortener/internal/shortcode"
	"github.com/marcvidal/linkshortener/internal/uaparse"
	"github.com/marcvidal/linkshortener/internal/workers"
)

// RunServerCmd represents the 'run-server' Cobra command, the entry point for
// launching the application server.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the link shortener API server and its background processes.",
	Long: `This command initializes the database, wires the resolution cache and the
business services, starts the asynchronous click workers and the URL monitor,
then launches the HTTP server.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// Database
		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.AutoMigrate(&models.Link{}, &models.Click{}); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		// Repositories
		linkRepo := repository.NewLinkRepository(db)
		clickRepo := repository.NewClickRepository(db)
		log.Println("Repositories initialized.")

		// Resolution cache
		resolutionCache, err := cache.New(cfg.Cache.Capacity)
		if err != nil {
			log.Fatalf("Failed to create resolution cache: %v", err)
		}

		// Best-effort collaborators: geo lookup (optional) and UA parsing
		locator, err := geo.Open(cfg.GeoIP.DatabasePath)
		if err != nil {
			log.Printf("Warning: GeoIP disabled: %v", err)
		}
		var geoLocator geo.Locator
		if locator != nil {
			geoLocator = locator
			defer locator.Close()
			log.Printf("GeoIP database loaded from %s.", cfg.GeoIP.DatabasePath)
		}

		// Business services
		generator := shortcode.NewGenerator(cfg.ShortCode.Length)
		qrService := qrcode.NewService(cfg.QRCode.Dir, cfg.QRCode.Size)
		linkService := services.NewLinkService(linkRepo, clickRepo, generator, resolutionCache, qrService, cfg.Server.BaseURL)
		recorder := services.NewRecorderService(clickRepo, linkRepo, resolutionCache, geoLocator, uaparse.NewParser())
		analyticsService := services.NewAnalyticsService(linkRepo, clickRepo)
		log.Println("Business services initialized.")

		// Click events channel and worker pool. The resolver enqueues without
		// blocking; the workers do the actual recording off the hot path.
		clickEvents := make(chan models.ClickEvent, cfg.Analytics.BufferSize)
		resolver := services.NewResolverService(linkRepo, resolutionCache, clickEvents)
		workersDone := workers.StartClickWorkers(cfg.Analytics.WorkerCount, clickEvents, recorder)
		log.Printf("Click events channel initialized with a buffer of %d. %d click worker(s) started.",
			cfg.Analytics.BufferSize, cfg.Analytics.WorkerCount)

		// URL monitor
		monitorInterval := time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute
		urlMonitor := monitor.NewUrlMonitor(linkRepo, monitorInterval)
		go urlMonitor.Start()
		log.Printf("URL monitor started with an interval of %v.", monitorInterval)

		// Gin router and API handlers
		router := gin.Default()
		api.SetupRoutes(router, api.Deps{
			Links:             linkService,
			Resolver:          resolver,
			Analytics:         analyticsService,
			QR:                qrService,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
			DefaultWindowDays: cfg.Analytics.DefaultWindowDays,
		})
		log.Println("API routes configured.")

		serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}

		// Start the HTTP server in a goroutine so it does not block
		go func() {
			log.Printf("Starting server on %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		// Graceful shutdown: wait for SIGINT/SIGTERM
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutdown signal received. Stopping server...")

		// Stop accepting requests, then drain the click channel so already
		// queued events still get recorded.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		close(clickEvents)
		workersDone.Wait()

		log.Println("Server stopped cleanly.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
