package pipeline

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/funding-tracker/internal/model"
)

// WriteReport prints a human-readable batch summary.
func WriteReport(w io.Writer, summary *model.BatchSummary) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "Batch summary\n")
	p.Fprintf(w, "  Articles processed:  %d\n", summary.Processed)
	p.Fprintf(w, "  Events extracted:    %d\n", summary.Extracted)
	p.Fprintf(w, "  No funding signal:   %d\n", summary.NoSignal)
	p.Fprintf(w, "  Duplicates:          %d\n", summary.Duplicates)
	p.Fprintf(w, "  Flagged for review:  %d\n", summary.Flagged)
	p.Fprintf(w, "  Failed:              %d\n", summary.Failed)
}

// WriteSectorReport prints funding totals per sector with grouped digits.
func WriteSectorReport(w io.Writer, rows []model.SectorFunding) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%-28s %8s %18s\n", "SECTOR", "EVENTS", "TOTAL (USD)")
	for _, row := range rows {
		p.Fprintf(w, "%-28s %8d %18.0f\n", string(row.Sector), row.EventCount, row.TotalUSD)
	}
}

// WriteInvestorReport prints the most active investors.
func WriteInvestorReport(w io.Writer, rows []model.InvestorActivity) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%-36s %8s %8s\n", "INVESTOR", "EVENTS", "LEADS")
	for _, row := range rows {
		p.Fprintf(w, "%-36s %8d %8d\n", row.CanonicalName, row.EventCount, row.LeadCount)
	}
}
