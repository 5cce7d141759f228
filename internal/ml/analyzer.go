package ml

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/franckalain/foodrescue/internal/metrics"
	"github.com/franckalain/foodrescue/internal/models"
)

// DefaultTimeout bounds a single analysis including the model round trip
const DefaultTimeout = 30 * time.Second

// Outcome is the result of one analysis. Result is always usable; Fallback
// reports that it was synthesized because the model could not be used, and
// Cause carries the underlying error for logging.
type Outcome struct {
	Result   models.AnalysisResult
	Fallback bool
	Cause    error
}

// Analyzer assesses submissions with a Model
type Analyzer struct {
	model   Model
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithTimeout sets the per-call deadline
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRateLimit caps model calls to perMinute with the given burst
func WithRateLimit(perMinute, burst int) Option {
	return func(a *Analyzer) {
		if perMinute <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// WithClock overrides the time source used in prompts
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithMetrics records outcome and latency of every call
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger sets the analyzer logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an analyzer backed by model
func NewAnalyzer(model Model, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:   model,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze assesses one photo. It never fails: transport errors, timeouts,
// malformed answers and backend panics all produce Fallback outcomes.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, sc models.SubmissionContext) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = fallbackOutcome(fmt.Errorf("model panicked: %v", r))
		}
		a.metrics.ObserveAnalysis(out.Fallback, time.Since(start))
		if out.Fallback {
			a.logger.Warn("analysis degraded to manual review", "food", sc.FoodName, "error", out.Cause)
		} else {
			a.logger.Info("analysis completed", "food", sc.FoodName,
				"quality", out.Result.QualityPercentage, "category", out.Result.DetectedCategory,
				"duration", time.Since(start))
		}
	}()

	result, err := a.assess(ctx, image, sc)
	if err != nil {
		return fallbackOutcome(err)
	}
	return Outcome{Result: result}
}

func (a *Analyzer) assess(ctx context.Context, image []byte, sc models.SubmissionContext) (models.AnalysisResult, error) {
	if a.model == nil {
		return models.AnalysisResult{}, ErrModelNotLoaded
	}
	if len(image) == 0 {
		return models.AnalysisResult{}, ErrEmptyImage
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return models.AnalysisResult{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	raw, err := a.model.Assess(ctx, Request{
		Prompt:   BuildPrompt(sc, a.now()),
		Image:    image,
		MIMEType: imageMIMEType(image),
	})
	if err != nil {
		return models.AnalysisResult{}, err
	}
	return ParseAnalysis(raw)
}

// Fallback is the conservative result used whenever the model cannot give
// an answer. It never passes the publish threshold.
func Fallback(reason string) models.AnalysisResult {
	return models.AnalysisResult{
		IsSafe:           false,
		IsHalal:          false,
		HalalReasoning:   "Halal status could not be assessed automatically.",
		Reasoning:        "Automatic analysis unavailable (" + reason + "). Manual review required.",
		Allergens:        []string{},
		DetectedItems:    []models.DetectedItem{},
		DetectedCategory: models.CategoryMixed,
		StorageTips:      []string{},
	}
}

func fallbackOutcome(err error) Outcome {
	return Outcome{Result: Fallback(err.Error()), Fallback: true, Cause: err}
}

func imageMIMEType(image []byte) string {
	if ct := http.DetectContentType(image); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
