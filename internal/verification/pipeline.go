package verification

import (
	"context"

	"github.com/franckalain/foodrescue/internal/ml"
	"github.com/franckalain/foodrescue/internal/models"
)

// Analyzer is the part of ml.Analyzer the pipeline needs
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, sc models.SubmissionContext) ml.Outcome
}

// Pipeline runs analysis and aggregation for one photo
type Pipeline struct {
	analyzer   Analyzer
	aggregator *Aggregator
}

// NewPipeline wires an analyzer to an aggregator
func NewPipeline(analyzer Analyzer, aggregator *Aggregator) *Pipeline {
	if aggregator == nil {
		aggregator = NewAggregator()
	}
	return &Pipeline{analyzer: analyzer, aggregator: aggregator}
}

// Verify analyzes the photo and returns a fresh record. Analyzer failures
// are already folded into a fallback result, so this never fails.
func (p *Pipeline) Verify(ctx context.Context, image []byte, sc models.SubmissionContext) models.VerificationRecord {
	out := p.analyzer.Analyze(ctx, image, sc)
	return p.aggregator.Finalize(out.Result, sc)
}

// IsPublishable delegates to the aggregator
func (p *Pipeline) IsPublishable(rec models.VerificationRecord) bool {
	return p.aggregator.IsPublishable(rec)
}

// MinimumQuality delegates to the aggregator
func (p *Pipeline) MinimumQuality() float64 {
	return p.aggregator.MinimumQuality()
}
