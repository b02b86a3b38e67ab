package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/pipeline"
	"github.com/sells-group/funding-tracker/internal/store"
)

var (
	eventsLimit    int
	investorsLimit int

	searchQuery  string
	searchSector string
	searchSince  string
	searchUntil  string
	searchLimit  int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query committed funding events",
}

var eventsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the most recently announced funding events as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		events, err := gw.ListRecentEvents(ctx, eventsLimit)
		if err != nil {
			return eris.Wrap(err, "list recent events")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

var eventsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search events by text, sector, and announcement date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := store.EventFilter{Query: searchQuery, Limit: searchLimit}
		if searchSector != "" {
			sector, ok := model.ParseSector(searchSector)
			if !ok {
				return eris.Errorf("unknown sector %q", searchSector)
			}
			filter.Sector = sector
		}
		for _, p := range []struct {
			flag string
			raw  string
			dst  *time.Time
		}{
			{"since", searchSince, &filter.Since},
			{"until", searchUntil, &filter.Until},
		} {
			if p.raw == "" {
				continue
			}
			t, err := time.Parse("2006-01-02", p.raw)
			if err != nil {
				return eris.Errorf("invalid --%s date %q", p.flag, p.raw)
			}
			*p.dst = t
		}

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		events, err := gw.SearchEvents(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "search events")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

var eventsSectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "Show funding totals grouped by sector",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		rows, err := gw.FundingBySector(ctx)
		if err != nil {
			return eris.Wrap(err, "funding by sector")
		}

		pipeline.WriteSectorReport(os.Stdout, rows)
		return nil
	},
}

var eventsInvestorsCmd = &cobra.Command{
	Use:   "investors",
	Short: "Show the most active investors",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		rows, err := gw.TopInvestors(ctx, investorsLimit)
		if err != nil {
			return eris.Wrap(err, "top investors")
		}

		pipeline.WriteInvestorReport(os.Stdout, rows)
		return nil
	},
}

func init() {
	eventsRecentCmd.Flags().IntVar(&eventsLimit, "limit", 20, "max events to print")
	eventsSearchCmd.Flags().StringVar(&searchQuery, "query", "", "substring matched against company names, aliases, and summaries")
	eventsSearchCmd.Flags().StringVar(&searchSector, "sector", "", "restrict to one sector")
	eventsSearchCmd.Flags().StringVar(&searchSince, "since", "", "earliest announcement date (2006-01-02)")
	eventsSearchCmd.Flags().StringVar(&searchUntil, "until", "", "latest announcement date (2006-01-02)")
	eventsSearchCmd.Flags().IntVar(&searchLimit, "limit", 50, "max events to print")
	eventsInvestorsCmd.Flags().IntVar(&investorsLimit, "limit", 20, "max investors to print")
	eventsCmd.AddCommand(eventsRecentCmd, eventsSearchCmd, eventsSectorsCmd, eventsInvestorsCmd)
	rootCmd.AddCommand(eventsCmd)
}
