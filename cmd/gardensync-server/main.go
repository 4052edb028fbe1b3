package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/gardensync/internal/chainclient"
	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/draftstore"
	"github.com/bobmcallan/gardensync/internal/eventbus"
	"github.com/bobmcallan/gardensync/internal/httpapi"
	"github.com/bobmcallan/gardensync/internal/indexerclient"
	"github.com/bobmcallan/gardensync/internal/jobrunner"
	"github.com/bobmcallan/gardensync/internal/jobstore"
	"github.com/bobmcallan/gardensync/internal/lease"
	"github.com/bobmcallan/gardensync/internal/mediauploader"
	"github.com/bobmcallan/gardensync/internal/mergeview"
	"github.com/bobmcallan/gardensync/internal/onlinesignal"
	"github.com/bobmcallan/gardensync/internal/queuecontroller"
	"github.com/bobmcallan/gardensync/internal/signerauth"
	"github.com/bobmcallan/gardensync/internal/storage"
	"github.com/bobmcallan/gardensync/internal/storage/badger"
	surrealstore "github.com/bobmcallan/gardensync/internal/storage/surrealdb"
)

func main() {
	configPath := os.Getenv("GARDENSYNC_CONFIG")

	config, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(config.Logging.Level)

	badgerStore, err := badger.NewStore(logger, config.Storage.Draft.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open draft store")
	}
	drafts := draftstore.New(badgerStore.DB(), logger)

	ctx := context.Background()
	surrealDB, err := surrealstore.Connect(ctx, logger, config.Storage.Job)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to job store")
	}
	jobs := jobstore.New(surrealDB, logger)
	leases := lease.New(surrealDB, logger)

	blobStore, err := storage.NewBlobStore(logger, &storage.BlobStoreConfig{
		Backend: config.Storage.Blob.Backend,
		File:    storage.FileBlobConfig{BasePath: config.Storage.Blob.Path},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize media blob store")
	}
	media := mediauploader.New(blobStore, logger)

	chain := chainclient.New(config.Chain.BaseURL,
		chainclient.WithLogger(logger),
		chainclient.WithTimeout(config.Chain.GetTimeout()),
		chainclient.WithRateLimit(config.Chain.RateLimit),
	)
	indexer := indexerclient.New(config.Indexer.BaseURL,
		indexerclient.WithLogger(logger),
		indexerclient.WithTimeout(config.Indexer.GetTimeout()),
		indexerclient.WithRateLimit(config.Indexer.RateLimit),
	)

	online := onlinesignal.New(config.Chain.BaseURL, logger)
	online.Start(30 * time.Second)
	defer online.Stop()

	signers := signerauth.NewRegistry()

	runner := jobrunner.New(jobs, indexer, media, config.Chain.RecipientAddress, logger)

	bus := eventbus.New(logger)
	wshub := eventbus.NewWSHub(bus, logger)
	go wshub.Run()
	defer wshub.Stop()

	queue := queuecontroller.New(drafts, jobs, leases, chain, online, runner, bus, logger)
	queue.Start(ctx)
	defer queue.Stop()

	merge := mergeview.New(indexer, jobs)

	server := httpapi.NewServer(drafts, queue, merge, bus, wshub, signers, config, logger)

	common.PrintBanner(config, logger)

	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	badgerStore.Close()
	surrealDB.Close(shutdownCtx)

	common.PrintShutdownBanner(logger)
}
