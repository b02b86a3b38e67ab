package classify

import (
	"context"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/pkg/anthropic"
)

// Source identifies which classification path produced a result.
type Source string

const (
	SourceAI    Source = "ai"
	SourceRules Source = "rules"
)

// Request carries the inputs for a sector classification.
type Request struct {
	Company string
	Title   string
	Body    string
}

// Classification is the outcome of a sector classification.
type Classification struct {
	Sector     model.Sector
	Confidence float64
	Source     Source
}

// Verdict is the outcome of a funding-event relevance check.
type Verdict struct {
	IsFunding  bool
	Confidence float64
}

// Classifier assigns climate sectors to companies, screens articles for
// funding relevance, and produces one-line event summaries.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Classification, error)
	IsFundingEvent(ctx context.Context, article model.RawArticle) (Verdict, error)
	Summarize(ctx context.Context, article model.RawArticle, cand model.Candidate) (string, error)
}

// Options configures the AI classification path.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int64
	RPS       float64
}

// New returns an AI-backed classifier when an API key is configured, and
// the deterministic keyword classifier otherwise.
func New(opts Options) Classifier {
	if opts.APIKey == "" {
		return NewRuleClassifier()
	}
	return NewAIClassifier(anthropic.NewClient(opts.APIKey), opts)
}
