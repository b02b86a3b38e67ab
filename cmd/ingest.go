package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/pipeline"
	"github.com/sells-group/funding-tracker/internal/source"
)

var ingestFeeds []string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch configured feeds and process new funding articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		feeds := ingestFeeds
		if len(feeds) == 0 {
			feeds = cfg.Source.Feeds
		}
		if len(feeds) == 0 {
			return eris.New("no feeds configured (set source.feeds or pass --feed)")
		}

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		if err := gw.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		coord, err := initCoordinator(ctx, gw)
		if err != nil {
			return err
		}

		fetcher := source.NewFetcher(time.Duration(cfg.Source.TimeoutSecs) * time.Second)

		var articles []model.RawArticle
		for _, feed := range feeds {
			items, err := fetcher.FetchFeed(ctx, feed)
			if err != nil {
				zap.L().Warn("feed fetch failed, skipping",
					zap.String("feed", feed),
					zap.Error(err),
				)
				continue
			}
			articles = append(articles, items...)
		}

		summary, err := coord.Run(ctx, articles)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		pipeline.WriteReport(os.Stdout, summary)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestFeeds, "feed", nil, "feed URL (repeatable, overrides config)")
	rootCmd.AddCommand(ingestCmd)
}
