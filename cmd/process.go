package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-tracker/internal/pipeline"
)

var processLimit int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process articles already stored but not yet analyzed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		if err := gw.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		limit := processLimit
		if limit == 0 {
			limit = cfg.Pipeline.BatchLimit
		}

		articles, err := gw.ListUnprocessedArticles(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "list unprocessed articles")
		}
		if len(articles) == 0 {
			zap.L().Info("no unprocessed articles")
			return nil
		}

		coord, err := initCoordinator(ctx, gw)
		if err != nil {
			return err
		}

		summary, err := coord.RunStored(ctx, articles)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		pipeline.WriteReport(os.Stdout, summary)
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "max articles per batch (default from config)")
	rootCmd.AddCommand(processCmd)
}
