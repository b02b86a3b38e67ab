package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funding-tracker/internal/classify"
	"github.com/sells-group/funding-tracker/internal/dedupe"
	"github.com/sells-group/funding-tracker/internal/extract"
	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/resolve"
	"github.com/sells-group/funding-tracker/internal/store"
	"github.com/sells-group/funding-tracker/internal/validate"
)

const defaultConcurrency = 4

// Coordinator drives articles through extraction, classification, entity
// resolution, deduplication, validation, and commit. Extraction and
// classification fan out across articles; everything that touches shared
// state runs under one commit lock so dedupe verdicts stay valid through
// their writes.
type Coordinator struct {
	gw          store.Gateway
	resolver    *resolve.Resolver
	classifier  classify.Classifier
	deduper     *dedupe.Deduper
	concurrency int

	// commitMu serializes resolve-dedupe-validate-commit. Never held
	// across a network call.
	commitMu sync.Mutex
}

func NewCoordinator(gw store.Gateway, resolver *resolve.Resolver, classifier classify.Classifier, deduper *dedupe.Deduper, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Coordinator{
		gw:          gw,
		resolver:    resolver,
		classifier:  classifier,
		deduper:     deduper,
		concurrency: concurrency,
	}
}

// analysis is the per-article output of the parallel phase, handed to the
// serialized commit phase.
type analysis struct {
	article   model.RawArticle
	candidate model.Candidate
	sector    classify.Classification
	summary   string
}

// Run ingests and processes newly fetched articles. Per-article failures
// are counted and skipped; only context cancellation aborts the batch.
func (c *Coordinator) Run(ctx context.Context, articles []model.RawArticle) (*model.BatchSummary, error) {
	summary := &model.BatchSummary{}
	var mu sync.Mutex

	fresh := c.ingest(ctx, articles, summary, &mu)
	return c.process(ctx, fresh, summary, &mu)
}

// RunStored processes articles already persisted, such as the backlog the
// process command pulls from the article store.
func (c *Coordinator) RunStored(ctx context.Context, articles []model.RawArticle) (*model.BatchSummary, error) {
	summary := &model.BatchSummary{Processed: len(articles)}
	var mu sync.Mutex
	return c.process(ctx, articles, summary, &mu)
}

// cacheWarmer is implemented by classifiers that benefit from priming a
// shared prompt cache before a batch fans out.
type cacheWarmer interface {
	WarmCache(ctx context.Context)
}

func (c *Coordinator) process(ctx context.Context, articles []model.RawArticle, summary *model.BatchSummary, mu *sync.Mutex) (*model.BatchSummary, error) {
	log := zap.L().With(zap.Int("batch_size", len(articles)))
	log.Info("pipeline: starting batch")
	start := time.Now()

	if w, ok := c.classifier.(cacheWarmer); ok && len(articles) > 0 {
		w.WarmCache(ctx)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	results := make([]*analysis, len(articles))
	for i, article := range articles {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := c.analyze(gCtx, article)
			if err != nil {
				if eris.Is(err, extract.ErrNoFundingSignal) {
					mu.Lock()
					summary.NoSignal++
					mu.Unlock()
					c.markProcessed(gCtx, article.ID)
					return nil
				}
				zap.L().Warn("pipeline: article analysis failed",
					zap.String("article_id", article.ID),
					zap.String("url", article.URL),
					zap.Error(err),
				)
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "pipeline: batch aborted")
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "pipeline: batch aborted")
		}
		c.commit(ctx, res, summary, mu)
	}

	log.Info("pipeline: batch complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("processed", summary.Processed),
		zap.Int("extracted", summary.Extracted),
		zap.Int("no_signal", summary.NoSignal),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("flagged", summary.Flagged),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// ingest persists newly fetched articles, dropping any already stored under
// the same URL or content hash. Re-fetches of a story already seen are
// skipped here; their analysis happens via the unprocessed backlog.
func (c *Coordinator) ingest(ctx context.Context, articles []model.RawArticle, summary *model.BatchSummary, mu *sync.Mutex) []model.RawArticle {
	fresh := make([]model.RawArticle, 0, len(articles))
	for _, article := range articles {
		mu.Lock()
		summary.Processed++
		mu.Unlock()

		seen, err := c.gw.ExistsArticle(ctx, article.URL, article.ContentHash)
		if err != nil {
			zap.L().Warn("pipeline: article lookup failed", zap.String("url", article.URL), zap.Error(err))
			mu.Lock()
			summary.Failed++
			mu.Unlock()
			continue
		}
		if seen {
			mu.Lock()
			summary.Duplicates++
			mu.Unlock()
			continue
		}
		if err := c.gw.SaveArticle(ctx, article); err != nil {
			zap.L().Warn("pipeline: save article failed", zap.String("url", article.URL), zap.Error(err))
			mu.Lock()
			summary.Failed++
			mu.Unlock()
			continue
		}
		fresh = append(fresh, article)
	}
	return fresh
}

// analyze runs the network-bound phase for one article: relevance gate,
// field extraction, sector classification, and summary. No shared state is
// touched here.
func (c *Coordinator) analyze(ctx context.Context, article model.RawArticle) (*analysis, error) {
	verdict, err := c.classifier.IsFundingEvent(ctx, article)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: relevance check")
	}
	if !verdict.IsFunding {
		return nil, extract.ErrNoFundingSignal
	}

	candidate, err := extract.Extract(article)
	if err != nil {
		return nil, err
	}

	sector, err := c.classifier.Classify(ctx, classify.Request{
		Company: candidate.CompanyRaw,
		Title:   article.Title,
		Body:    article.BodyText,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classify sector")
	}

	summary, err := c.classifier.Summarize(ctx, article, candidate)
	if err != nil {
		zap.L().Warn("pipeline: summary failed", zap.String("article_id", article.ID), zap.Error(err))
		summary = ""
	}

	return &analysis{
		article:   article,
		candidate: candidate,
		sector:    sector,
		summary:   summary,
	}, nil
}

// commit runs the serialized phase for one analyzed article. Failures
// count against the batch and leave the article unprocessed for a later
// retry.
func (c *Coordinator) commit(ctx context.Context, res *analysis, summary *model.BatchSummary, mu *sync.Mutex) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if err := c.commitOne(ctx, res, summary, mu); err != nil {
		zap.L().Warn("pipeline: commit failed",
			zap.String("article_id", res.article.ID),
			zap.String("company", res.candidate.CompanyRaw),
			zap.Error(err),
		)
		mu.Lock()
		summary.Failed++
		mu.Unlock()
	}
}

func (c *Coordinator) commitOne(ctx context.Context, res *analysis, summary *model.BatchSummary, mu *sync.Mutex) error {
	cand := res.candidate

	companyID, created, err := c.resolver.ResolveCompany(ctx, cand.CompanyRaw)
	if err != nil {
		return eris.Wrap(err, "resolve company")
	}

	event := c.buildEvent(companyID, res)
	links, resolved, err := c.resolveInvestors(ctx, event.ID, cand.Investors)
	if err != nil {
		return eris.Wrap(err, "resolve investors")
	}

	decision, err := c.deduper.Check(ctx, event)
	if err != nil {
		return eris.Wrap(err, "dedupe check")
	}
	if decision.Outcome == dedupe.DuplicateKeepExisting {
		mu.Lock()
		summary.Duplicates++
		mu.Unlock()
		c.markProcessed(ctx, res.article.ID)
		return nil
	}

	verdict := validate.Validate(event, links, resolved)
	if verdict.Err != nil {
		return eris.Wrap(verdict.Err, "validate")
	}
	event.Flags = verdict.Flags

	switch decision.Outcome {
	case dedupe.DuplicateReplace:
		if err := c.gw.ReplaceFundingEvent(ctx, decision.ExistingID, *event, links); err != nil {
			return eris.Wrap(err, "replace event")
		}
		mu.Lock()
		summary.Duplicates++
		mu.Unlock()
	default:
		if _, err := c.gw.InsertFundingEvent(ctx, *event, links); err != nil {
			if eris.Is(err, store.ErrDuplicateFingerprint) {
				mu.Lock()
				summary.Duplicates++
				mu.Unlock()
				c.markProcessed(ctx, res.article.ID)
				return nil
			}
			return eris.Wrap(err, "insert event")
		}
		mu.Lock()
		summary.Extracted++
		mu.Unlock()
	}

	if len(verdict.Flags) > 0 {
		mu.Lock()
		summary.Flagged++
		mu.Unlock()
	}

	c.updateSector(ctx, companyID, created, res.sector)
	c.markProcessed(ctx, res.article.ID)
	return nil
}

func (c *Coordinator) buildEvent(companyID string, res *analysis) *model.FundingEvent {
	cand := res.candidate

	var amountUSD *float64
	var currency string
	rangeEstimate := false
	if cand.Amount != nil && !cand.Amount.Undisclosed {
		v := cand.Amount.Value
		amountUSD = &v
		currency = cand.Amount.Currency
		rangeEstimate = cand.Amount.RangeEstimate
	}

	announced := res.article.PublishedAt
	if announced.IsZero() {
		announced = time.Now().UTC()
	}

	event := &model.FundingEvent{
		ID:              model.NewID(),
		CompanyID:       companyID,
		AmountValue:     amountUSD,
		AmountCurrency:  currency,
		RangeEstimate:   rangeEstimate,
		Stage:           cand.Stage,
		AnnouncedDate:   announced,
		SourceArticleID: res.article.ID,
		Confidence:      cand.Confidence,
		Summary:         res.summary,
		CreatedAt:       time.Now().UTC(),
	}
	event.Fingerprint = dedupe.Fingerprint(companyID, amountUSD, announced)
	return event
}

func (c *Coordinator) resolveInvestors(ctx context.Context, eventID string, mentions []model.InvestorMention) ([]model.InvestorLink, map[string]bool, error) {
	links := make([]model.InvestorLink, 0, len(mentions))
	resolved := make(map[string]bool, len(mentions))
	for _, mention := range mentions {
		id, _, err := c.resolver.ResolveInvestor(ctx, mention.Name, "")
		if err != nil {
			return nil, nil, eris.Wrapf(err, "investor %q", mention.Name)
		}
		links = append(links, model.InvestorLink{
			EventID:    eventID,
			InvestorID: id,
			Role:       mention.Role,
		})
		resolved[id] = true
	}
	return links, resolved, nil
}

// updateSector writes the classified sector onto new companies, and onto
// known companies when the new classification is more confident.
func (c *Coordinator) updateSector(ctx context.Context, companyID string, created bool, cls classify.Classification) {
	if cls.Sector == "" {
		return
	}
	if !created && !c.resolver.ShouldReviseSector(companyID, cls.Confidence) {
		return
	}
	if err := c.gw.UpdateCompanySector(ctx, companyID, cls.Sector, cls.Confidence); err != nil {
		zap.L().Warn("pipeline: sector update failed",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return
	}
	c.resolver.NoteSector(companyID, cls.Sector, cls.Confidence)
}

func (c *Coordinator) markProcessed(ctx context.Context, articleID string) {
	if err := c.gw.MarkArticleProcessed(ctx, articleID); err != nil {
		zap.L().Warn("pipeline: mark processed failed", zap.String("article_id", articleID), zap.Error(err))
	}
}
