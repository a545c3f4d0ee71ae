package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/talenthub/apiserver/config"
	"github.com/talenthub/apiserver/internal/cache"
	"github.com/talenthub/apiserver/internal/db"
	"github.com/talenthub/apiserver/internal/mq"
	"github.com/talenthub/apiserver/internal/services"
	"github.com/talenthub/apiserver/internal/store"
)

// RunWorker consumes profile reindex events until ctx is cancelled.
func RunWorker(ctx context.Context, cfg config.Config) error {
	if cfg.MQ.Backend == "" {
		return errors.New("worker requires MQ_BACKEND")
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dbConn.Close()

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fmt.Errorf("open mq: %w", err)
	}
	defer broker.Close()

	rdb := cache.NewClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	indexer := services.NewIndexer(
		store.NewProfileRepository(dbConn),
		store.NewSearchRepository(dbConn),
		cache.New(rdb, logger),
		logger,
	)

	logger.Printf("[Worker] consuming %s via %s", mq.ChannelProfileReindex, cfg.MQ.Backend)
	err = mq.SubscribeJSON(ctx, broker, mq.ChannelProfileReindex, func(ctx context.Context, event mq.ProfileReindexEvent) error {
		if err := indexer.HandleReindex(ctx, event); err != nil {
			logger.Printf("[Worker] reindex %s failed: %v", event.ProfileID, err)
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
