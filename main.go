package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/duongdev/comma-sync/config"
	"github.com/duongdev/comma-sync/fleet"
	"github.com/duongdev/comma-sync/ledger"
	"github.com/duongdev/comma-sync/logging"
	"github.com/duongdev/comma-sync/media"
	"github.com/duongdev/comma-sync/scratch"
	"github.com/duongdev/comma-sync/transfer"
	"github.com/duongdev/comma-sync/uploading"
	"github.com/duongdev/comma-sync/web/handlers"
)

func main() {
	flags := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Override(config.Overrides{
		FleetURL:          flags.fleetURL,
		FleetToken:        flags.fleetToken,
		BotToken:          flags.botToken,
		ChatID:            flags.chatID,
		ClipsDir:          flags.clipsDir,
		ScratchDir:        flags.scratchDir,
		LedgerPath:        flags.ledgerPath,
		DeleteAfterUpload: flags.deleteAfterUpload,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.CreateLogger(logging.LogLevel(cfg.LogLevel), cfg.LogDir, "comma-sync")
	logger.Info("Starting comma-sync",
		"clips_dir", cfg.ClipsDir,
		"scratch_dir", cfg.ScratchDir,
		"chunk_cap_bytes", cfg.ChunkCapBytes,
		"nominal_window_seconds", cfg.NominalWindowSeconds)

	if err := os.MkdirAll(cfg.ClipsDir, 0755); err != nil {
		log.Fatalf("Failed to create clips directory: %v", err)
	}

	db, err := ledger.OpenDB(cfg.LedgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger database: %v", err)
	}
	defer db.Close()

	progressLedger, err := ledger.NewSQLiteProgressLedger(db)
	if err != nil {
		log.Fatalf("Failed to initialize progress ledger: %v", err)
	}

	guard := scratch.NewGuard(logger, cfg.ScratchDir, cfg.ScratchBudgetBytes)
	if err := guard.EnsureDir(); err != nil {
		log.Fatalf("Failed to create scratch directory: %v", err)
	}
	// Chunks left behind by a previous run are unaccounted for; the ledger
	// already knows how far their streams got.
	guard.CleanOrphans()

	prober := media.NewFFmpegProber(logger)
	extractor := media.NewFFmpegRangeExtractor(logger, cfg.ScratchDir)

	transport := uploading.NewTelegramTransport(cfg.BotToken, time.Duration(cfg.SendTimeoutSeconds)*time.Second)
	queue := uploading.NewUploadQueue(logger, transport, progressLedger, cfg.ChatID,
		cfg.QueueBufferSize,
		time.Duration(cfg.SendTimeoutSeconds)*time.Second,
		time.Duration(cfg.DrainTimeoutSeconds)*time.Second)

	stopChan := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go queue.Start(stopChan, &wg)

	orchestrator := transfer.NewOrchestrator(logger, prober, extractor, guard, queue, progressLedger, transfer.Options{
		CapBytes:          cfg.ChunkCapBytes,
		WindowSeconds:     cfg.NominalWindowSeconds,
		ShrinkStepSeconds: cfg.ShrinkStepSeconds,
		DeleteAfterUpload: cfg.DeleteAfterUpload,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uploadPoller := transfer.NewUploadPoller(logger, cfg.ClipsDir, orchestrator, progressLedger,
		time.Duration(cfg.UploadPollSeconds)*time.Second)

	var pollerWg sync.WaitGroup
	pollerWg.Add(1)
	go func() {
		defer pollerWg.Done()
		uploadPoller.Run(ctx)
	}()

	var downloadPoller *transfer.DownloadPoller
	if cfg.FleetURL != "" {
		fleetClient := fleet.NewClient(cfg.FleetURL, cfg.FleetToken, 5*time.Minute)
		downloadPoller = transfer.NewDownloadPoller(logger, fleetClient, cfg.ClipsDir, progressLedger,
			time.Duration(cfg.DownloadPollSeconds)*time.Second)
		pollerWg.Add(1)
		go func() {
			defer pollerWg.Done()
			downloadPoller.Run(ctx)
		}()
	} else {
		logger.Info("No fleet URL configured, remote download disabled")
	}

	var statusServer *http.Server
	if cfg.StatusAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())

		statusHandler := handlers.NewStatusHandler(logger, queue, uploadPoller, downloadPoller, progressLedger)
		statusHandler.RegisterRoutes(router)

		statusServer = &http.Server{Addr: cfg.StatusAddr, Handler: router}
		go func() {
			logger.Info("Status server listening", "addr", cfg.StatusAddr)
			if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Status server failed", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, stopping")

	cancel()
	pollerWg.Wait()

	// Let the in-flight item finish; the ledger makes a cut-off harmless.
	close(stopChan)
	wg.Wait()

	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down status server", "error", err)
		}
	}

	logger.Info("comma-sync stopped")
}
