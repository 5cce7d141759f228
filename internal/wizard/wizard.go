// Package wizard drives a donor submission through details, photo, analysis
// and review. A Wizard handles one submission at a time; separate wizards
// share nothing and may run concurrently.
package wizard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/franckalain/foodrescue/internal/metrics"
	"github.com/franckalain/foodrescue/internal/models"
)

var (
	ErrInvalidTransition = errors.New("transition not allowed from current stage")
	ErrAnalysisInFlight  = errors.New("analysis already in progress")
	ErrStaleResult       = errors.New("analysis result no longer current")
	ErrNotPublishable    = errors.New("quality below publish threshold")
	ErrNoImage           = errors.New("photo is required")
)

// Verifier produces a record for a photo and gates publishing
type Verifier interface {
	Verify(ctx context.Context, image []byte, sc models.SubmissionContext) models.VerificationRecord
	IsPublishable(rec models.VerificationRecord) bool
}

// Publisher hands an accepted record to the inventory
type Publisher interface {
	Publish(ctx context.Context, rec models.VerificationRecord) (models.Listing, error)
}

// Wizard is the submission state machine
type Wizard struct {
	mu        sync.Mutex
	stage     Stage
	verifier  Verifier
	publisher Publisher
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Wizard
type Option func(*Wizard)

// WithClock overrides the time source used to validate made times
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// WithMetrics records publish decisions
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wizard) { w.metrics = m }
}

// WithLogger sets the wizard logger
func WithLogger(l *slog.Logger) Option {
	return func(w *Wizard) { w.logger = l }
}

// New creates a wizard in a fresh CollectingDetails stage
func New(verifier Verifier, publisher Publisher, opts ...Option) *Wizard {
	w := &Wizard{
		stage:     CollectingDetails{},
		verifier:  verifier,
		publisher: publisher,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Stage returns the current stage
func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return clone(w.stage)
}

// Reset abandons the current submission
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stage = CollectingDetails{}
}

// SubmitDetails validates the form and moves to CapturingPhoto. On a
// *ValidationError the stage is unchanged.
func (w *Wizard) SubmitDetails(form DetailsForm) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.stage.(CollectingDetails); !ok {
		return fmt.Errorf("submit details from %s: %w", w.stage.Name(), ErrInvalidTransition)
	}
	sc, err := form.Validate(w.now())
	if err != nil {
		return err
	}
	w.stage = CapturingPhoto{Form: form, Submission: sc}
	return nil
}

// BeginAnalysis accepts a photo and moves to Analyzing. The returned ticket
// must be passed to Run or CompleteAnalysis.
func (w *Wizard) BeginAnalysis(image []byte) (Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch st := w.stage.(type) {
	case CapturingPhoto:
		if len(image) == 0 {
			return Ticket{}, ErrNoImage
		}
		img := append([]byte(nil), image...)
		t := newTicket(img)
		w.stage = Analyzing{Form: st.Form, Submission: st.Submission, Image: img, Ticket: t}
		w.logger.Debug("analysis started", "ticket", t.ID, "food", st.Submission.FoodName)
		return t, nil
	case Analyzing:
		return Ticket{}, ErrAnalysisInFlight
	default:
		return Ticket{}, fmt.Errorf("begin analysis from %s: %w", w.stage.Name(), ErrInvalidTransition)
	}
}

// Run performs the analysis for ticket and applies the result if the ticket
// is still current. The lock is not held during the model call, so the donor
// can navigate away meanwhile.
func (w *Wizard) Run(ctx context.Context, t Ticket) (Stage, error) {
	w.mu.Lock()
	st, ok := w.stage.(Analyzing)
	w.mu.Unlock()
	if !ok || st.Ticket != t {
		return nil, ErrStaleResult
	}

	rec := w.verifier.Verify(ctx, st.Image, st.Submission)
	rv, err := w.CompleteAnalysis(t, rec)
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// CompleteAnalysis moves Analyzing to ReviewingResult, but only for the
// current ticket; results for an abandoned photo return ErrStaleResult.
// It returns a copy of the stage it installed.
func (w *Wizard) CompleteAnalysis(t Ticket, rec models.VerificationRecord) (ReviewingResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.stage.(Analyzing)
	if !ok || st.Ticket != t {
		w.logger.Info("discarding stale analysis result", "ticket", t.ID)
		return ReviewingResult{}, ErrStaleResult
	}
	rv := ReviewingResult{
		Form:        st.Form,
		Submission:  st.Submission,
		Image:       st.Image,
		Ticket:      st.Ticket,
		Record:      rec.Clone(),
		Publishable: w.verifier.IsPublishable(rec),
	}
	w.stage = rv
	return clone(rv).(ReviewingResult), nil
}

// SupplyPhoto begins and runs an analysis in one step
func (w *Wizard) SupplyPhoto(ctx context.Context, image []byte) (Stage, error) {
	t, err := w.BeginAnalysis(image)
	if err != nil {
		return nil, err
	}
	return w.Run(ctx, t)
}

// Back goes one stage back, discarding everything gathered after it
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch st := w.stage.(type) {
	case CapturingPhoto:
		w.stage = CollectingDetails{Draft: st.Form}
	case Analyzing:
		w.stage = CapturingPhoto{Form: st.Form, Submission: st.Submission}
	case ReviewingResult:
		w.stage = CapturingPhoto{Form: st.Form, Submission: st.Submission}
	default:
		return fmt.Errorf("back from %s: %w", w.stage.Name(), ErrInvalidTransition)
	}
	return nil
}

// Retry discards the reviewed record and asks for a different photo
func (w *Wizard) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.stage.(ReviewingResult)
	if !ok {
		return fmt.Errorf("retry from %s: %w", w.stage.Name(), ErrInvalidTransition)
	}
	w.stage = CapturingPhoto{Form: st.Form, Submission: st.Submission}
	return nil
}

// Publish hands a publishable record to the publisher and resets the wizard
// for the next submission. If the publisher fails the review stage is kept.
func (w *Wizard) Publish(ctx context.Context) (models.Listing, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, ok := w.stage.(ReviewingResult)
	if !ok {
		return models.Listing{}, fmt.Errorf("publish from %s: %w", w.stage.Name(), ErrInvalidTransition)
	}
	if w.publisher == nil {
		return models.Listing{}, errors.New("no publisher configured")
	}
	if !w.verifier.IsPublishable(st.Record) {
		w.metrics.IncrementPublish("rejected", st.Record.Impact.TotalPoints)
		return models.Listing{}, ErrNotPublishable
	}

	listing, err := w.publisher.Publish(ctx, st.Record)
	if err != nil {
		w.metrics.IncrementPublish("failed", st.Record.Impact.TotalPoints)
		return models.Listing{}, fmt.Errorf("failed to publish: %w", err)
	}

	w.metrics.IncrementPublish("published", st.Record.Impact.TotalPoints)
	w.logger.Info("submission published", "listing", listing.ID, "food", st.Submission.FoodName,
		"points", st.Record.Impact.TotalPoints, "level", st.Record.Impact.Level)
	w.stage = CollectingDetails{}
	return listing, nil
}

func newTicket(image []byte) Ticket {
	sum := sha256.Sum256(image)
	return Ticket{ID: uuid.New().String(), ImageDigest: hex.EncodeToString(sum[:])}
}
