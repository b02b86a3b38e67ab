package source

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-tracker/internal/extract"
	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/resilience"
)

const defaultFetchTimeout = 30 * time.Second

// Fetcher pulls articles from RSS and Atom feeds. Items with no funding
// signal are dropped before they reach storage.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	retry   resilience.RetryConfig
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		parser:  gofeed.NewParser(),
		timeout: timeout,
		retry:   resilience.DefaultRetryConfig(),
	}
}

// FetchFeed downloads one feed and maps its items to raw articles. The
// feed URL doubles as the source ID on the stored articles.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]model.RawArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cfg := f.retry
	cfg.OnRetry = resilience.RetryLogger("rss", "fetch_feed")

	feed, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*gofeed.Feed, error) {
		return f.parser.ParseURLWithContext(feedURL, ctx)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: fetch feed %s", feedURL)
	}

	articles := make([]model.RawArticle, 0, len(feed.Items))
	skipped := 0
	for _, item := range feed.Items {
		article := itemToArticle(feedURL, item)
		if !extract.HasFundingSignal(article.Text()) {
			skipped++
			continue
		}
		articles = append(articles, article)
	}

	zap.L().Info("fetched feed",
		zap.String("feed_url", feedURL),
		zap.String("feed_title", feed.Title),
		zap.Int("items", len(feed.Items)),
		zap.Int("kept", len(articles)),
		zap.Int("skipped", skipped),
	)
	return articles, nil
}

func itemToArticle(feedURL string, item *gofeed.Item) model.RawArticle {
	body := item.Content
	if body == "" {
		body = item.Description
	}

	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	}
	return model.NewRawArticle(feedURL, item.Link, item.Title, body, published)
}
