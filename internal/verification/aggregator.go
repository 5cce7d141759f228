// Package verification combines an AI analysis with the impact score into
// an immutable VerificationRecord and decides whether it may be published.
package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/franckalain/foodrescue/internal/impact"
	"github.com/franckalain/foodrescue/internal/models"
)

// DefaultPublishThreshold is the quality percentage a record must strictly
// exceed before it is shown to recipients.
const DefaultPublishThreshold = 70.01

// Aggregator builds verification records
type Aggregator struct {
	engine    *impact.Engine
	threshold float64
	now       func() time.Time
}

// AggregatorOption configures an Aggregator
type AggregatorOption func(*Aggregator)

// WithEngine scores with a custom category table
func WithEngine(e *impact.Engine) AggregatorOption {
	return func(a *Aggregator) {
		if e != nil {
			a.engine = e
		}
	}
}

// WithThreshold overrides the publish threshold
func WithThreshold(t float64) AggregatorOption {
	return func(a *Aggregator) {
		if t > 0 {
			a.threshold = t
		}
	}
}

// WithClock overrides the record timestamp source
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator with the built-in table and threshold
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		engine:    impact.Default,
		threshold: DefaultPublishThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Finalize scores the analysis for the submission and returns a new record.
// The inputs are copied; later changes to them do not affect the record.
func (a *Aggregator) Finalize(result models.AnalysisResult, sc models.SubmissionContext) models.VerificationRecord {
	analysis := result.Clone()
	// records always carry non-nil lists
	if analysis.Allergens == nil {
		analysis.Allergens = []string{}
	}
	if analysis.DetectedItems == nil {
		analysis.DetectedItems = []models.DetectedItem{}
	}
	if analysis.StorageTips == nil {
		analysis.StorageTips = []string{}
	}
	analysis.DetectedCategory = impact.NormalizeCategory(string(analysis.DetectedCategory))

	rec := models.VerificationRecord{
		AnalysisResult: analysis,
		Impact:         a.engine.Score(analysis.DetectedCategory, sc.WeightGram, sc.PackagingType),
		Submission:     sc,
		CreatedAt:      a.now().UTC(),
	}
	fp, err := Fingerprint(rec)
	if err != nil {
		// only reachable with NaN/Inf in the submission
		fp = ""
	}
	rec.Fingerprint = fp
	return rec
}

// IsPublishable reports whether the record clears the publish threshold
func (a *Aggregator) IsPublishable(rec models.VerificationRecord) bool {
	return rec.QualityPercentage > a.threshold
}

// MinimumQuality is the threshold to display to donors
func (a *Aggregator) MinimumQuality() float64 {
	return a.threshold
}

// Fingerprint hashes the RFC 8785 canonical form of the record, excluding
// the fingerprint field itself.
func Fingerprint(rec models.VerificationRecord) (string, error) {
	rec.Fingerprint = ""
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	canonical, err := jcs.Transform(body)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports whether the record's fingerprint matches its content
func Verify(rec models.VerificationRecord) bool {
	fp, err := Fingerprint(rec)
	return err == nil && fp != "" && fp == rec.Fingerprint
}
