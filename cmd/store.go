package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-tracker/internal/classify"
	"github.com/sells-group/funding-tracker/internal/dedupe"
	"github.com/sells-group/funding-tracker/internal/pipeline"
	"github.com/sells-group/funding-tracker/internal/resolve"
	"github.com/sells-group/funding-tracker/internal/store"
)

func initStore(ctx context.Context) (store.Gateway, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "funding.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCoordinator wires the full processing stack on top of an open gateway.
func initCoordinator(ctx context.Context, gw store.Gateway) (*pipeline.Coordinator, error) {
	resolver, err := resolve.NewResolver(ctx, gw, cfg.Resolve.SimilarityThreshold, cfg.Resolve.AliasSeeds)
	if err != nil {
		return nil, eris.Wrap(err, "init resolver")
	}

	classifier := classify.New(classify.Options{
		APIKey:    cfg.Anthropic.Key,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		RPS:       cfg.Anthropic.RPS,
	})

	deduper := dedupe.New(gw, cfg.Dedupe.AmountTolerance, cfg.Dedupe.DayWindow)

	return pipeline.NewCoordinator(gw, resolver, classifier, deduper, cfg.Pipeline.MaxConcurrentArticles), nil
}
