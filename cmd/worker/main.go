package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookcircle/backend/internal/bookmeta"
	"github.com/bookcircle/backend/internal/config"
	"github.com/bookcircle/backend/internal/db"
	"github.com/bookcircle/backend/internal/repositories"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	offerRepo := repositories.NewBookOfferRepo(pool)
	parser := bookmeta.NewParser(cfg.OpenLibraryBaseURL, cfg.BookFetchTimeout, cfg.BookFetchRetries, log)

	log.Info("worker started")

	enrichTicker := time.NewTicker(cfg.EnrichInterval)
	defer enrichTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-enrichTicker.C:
			runMetadataEnrichment(ctx, offerRepo, parser, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runMetadataEnrichment fills in author and cover image for offers that
// were listed with an Open Library ID but incomplete details.
func runMetadataEnrichment(ctx context.Context, offerRepo *repositories.BookOfferRepo, parser *bookmeta.Parser, cfg *config.Config, log *zap.Logger) {
	offers, err := offerRepo.ListMissingMetadata(ctx, cfg.EnrichBatchSize)
	if err != nil {
		log.Error("failed to list offers for enrichment", zap.Error(err))
		return
	}

	for _, offer := range offers {
		meta, err := parser.FetchAndParse(ctx, *offer.OpenLibraryID)
		if err != nil {
			log.Warn("failed to fetch book metadata",
				zap.String("offer_id", offer.ID.String()),
				zap.String("open_library_id", *offer.OpenLibraryID),
				zap.Error(err),
			)
			continue
		}

		if err := offerRepo.UpdateMetadata(ctx, offer.ID, meta.Author, meta.CoverImageURL); err != nil {
			log.Error("failed to update offer metadata", zap.String("offer_id", offer.ID.String()), zap.Error(err))
			continue
		}

		log.Info("offer metadata enriched",
			zap.String("offer_id", offer.ID.String()),
			zap.String("open_library_id", *offer.OpenLibraryID),
		)

		time.Sleep(1 * time.Second) // rate limiting
	}
}
