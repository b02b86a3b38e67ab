package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/resilience"
	"github.com/sells-group/funding-tracker/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 512
	defaultRPS       = 2.0
	requestTimeout   = 30 * time.Second

	aiConfidenceFloor = 0.5
	bodyLimit         = 6000
)

// AIClassifier classifies via the Anthropic API with retry, rate limiting,
// and a deterministic keyword fallback. API failures never propagate: the
// fallback answers instead, at reduced confidence.
type AIClassifier struct {
	client    anthropic.Client
	fallback  *RuleClassifier
	model     string
	tokens    int64
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
	primeOnce sync.Once
}

func NewAIClassifier(client anthropic.Client, opts Options) *AIClassifier {
	modelID := opts.Model
	if modelID == "" {
		modelID = defaultModel
	}
	tokens := opts.MaxTokens
	if tokens <= 0 {
		tokens = defaultMaxTokens
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = defaultRPS
	}

	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = retryable

	return &AIClassifier{
		client:   client,
		fallback: NewRuleClassifier(),
		model:    modelID,
		tokens:   tokens,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		retry:    retry,
	}
}

// WarmCache primes the provider-side cache entry for the shared
// classification prompt so the concurrent per-article requests that follow
// hit it instead of each writing their own. Runs at most once per process;
// failures are ignored, the first real request writes the cache instead.
func (c *AIClassifier) WarmCache(ctx context.Context) {
	c.primeOnce.Do(func() {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		req := anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: 1,
			System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt()),
			Messages:  []anthropic.Message{{Role: "user", Content: "ready"}},
		}
		if _, err := anthropic.PrimerRequest(ctx, c.client, req); err != nil {
			zap.L().Debug("prompt cache primer failed", zap.Error(err))
		}
	})
}

// retryable treats transient HTTP statuses and network failures as safe to
// retry. Bad requests and auth errors fail fast.
func retryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

type sectorResult struct {
	Sector     string  `json:"sector"`
	Confidence float64 `json:"confidence"`
}

type verdictResult struct {
	IsFunding  bool    `json:"is_funding"`
	Confidence float64 `json:"confidence"`
}

func (c *AIClassifier) Classify(ctx context.Context, req Request) (Classification, error) {
	user := fmt.Sprintf("Company: %s\nHeadline: %s\n\nArticle:\n%s", req.Company, req.Title, truncate(req.Body, bodyLimit))

	content, err := c.complete(ctx, "classify", classifySystemPrompt(), user)
	if err != nil {
		zap.L().Warn("sector classification degraded to keyword rules",
			zap.String("company", req.Company),
			zap.Error(err),
		)
		return c.fallback.Classify(ctx, req)
	}

	var res sectorResult
	if err := decodeJSON(content, &res); err != nil {
		zap.L().Warn("unparseable classification response, using keyword rules",
			zap.String("company", req.Company),
			zap.Error(err),
		)
		return c.fallback.Classify(ctx, req)
	}

	sector, ok := model.ParseSector(res.Sector)
	conf := clamp01(res.Confidence)
	if !ok {
		// Out-of-enum labels collapse to Other rather than polluting
		// the taxonomy.
		zap.L().Debug("sector outside taxonomy",
			zap.String("company", req.Company),
			zap.String("label", res.Sector),
		)
		conf = aiConfidenceFloor
	}

	return Classification{Sector: sector, Confidence: conf, Source: SourceAI}, nil
}

func (c *AIClassifier) IsFundingEvent(ctx context.Context, article model.RawArticle) (Verdict, error) {
	user := fmt.Sprintf("Headline: %s\n\nArticle:\n%s", article.Title, truncate(article.BodyText, bodyLimit))

	content, err := c.complete(ctx, "gate", gateSystemPrompt, user)
	if err != nil {
		zap.L().Warn("relevance check degraded to keyword rules",
			zap.String("article_id", article.ID),
			zap.Error(err),
		)
		return c.fallback.IsFundingEvent(ctx, article)
	}

	var res verdictResult
	if err := decodeJSON(content, &res); err != nil {
		return c.fallback.IsFundingEvent(ctx, article)
	}
	return Verdict{IsFunding: res.IsFunding, Confidence: clamp01(res.Confidence)}, nil
}

func (c *AIClassifier) Summarize(ctx context.Context, article model.RawArticle, cand model.Candidate) (string, error) {
	user := fmt.Sprintf("Company: %s\nHeadline: %s\n\nArticle:\n%s", cand.CompanyRaw, article.Title, truncate(article.BodyText, bodyLimit))

	content, err := c.complete(ctx, "summarize", summarySystemPrompt, user)
	if err != nil {
		return templateSummary(cand), nil
	}
	summary := strings.TrimSpace(content)
	if summary == "" {
		return templateSummary(cand), nil
	}
	return summary, nil
}

// complete runs one rate-limited, retried message round trip and returns
// the text of the first content block.
func (c *AIClassifier) complete(ctx context.Context, phase, system, user string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "classify: rate limiter")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.tokens,
		System:      anthropic.BuildCachedSystemBlocks(system),
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	}

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("anthropic", phase)

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogCost(c.model, phase)

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", eris.New("classify: response has no text content")
}

// decodeJSON unmarshals model output, repairing malformed JSON (truncated
// braces, trailing commas, fenced code blocks) before giving up.
func decodeJSON(content string, v any) error {
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return eris.Wrap(err, "classify: repair response json")
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return eris.Wrap(err, "classify: decode response json")
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
