package wizard

import (
	"bytes"

	"github.com/franckalain/foodrescue/internal/models"
)

// StageName identifies a wizard stage on the wire
type StageName string

const (
	StageCollectingDetails StageName = "collecting_details"
	StageCapturingPhoto    StageName = "capturing_photo"
	StageAnalyzing         StageName = "analyzing"
	StageReviewingResult   StageName = "reviewing_result"
)

// Stage is one of CollectingDetails, CapturingPhoto, Analyzing or
// ReviewingResult. Each variant carries only the data valid in it.
type Stage interface {
	Name() StageName
	stage()
}

// CollectingDetails waits for the details form. Draft prefills the form when
// the donor navigated back from the photo step.
type CollectingDetails struct {
	Draft DetailsForm
}

// CapturingPhoto holds an accepted submission and waits for a photo
type CapturingPhoto struct {
	Form       DetailsForm
	Submission models.SubmissionContext
}

// Analyzing has exactly one photo in flight, identified by Ticket
type Analyzing struct {
	Form       DetailsForm
	Submission models.SubmissionContext
	Image      []byte
	Ticket     Ticket
}

// ReviewingResult shows the record produced for Image
type ReviewingResult struct {
	Form        DetailsForm
	Submission  models.SubmissionContext
	Image       []byte
	Ticket      Ticket
	Record      models.VerificationRecord
	Publishable bool
}

// Name identifies the stage on the wire
func (CollectingDetails) Name() StageName { return StageCollectingDetails }
func (CapturingPhoto) Name() StageName    { return StageCapturingPhoto }
func (Analyzing) Name() StageName         { return StageAnalyzing }
func (ReviewingResult) Name() StageName   { return StageReviewingResult }

// clone copies the byte and record slices a stage owns so callers outside
// the lock cannot reach the wizard's state
func clone(s Stage) Stage {
	switch st := s.(type) {
	case Analyzing:
		st.Image = bytes.Clone(st.Image)
		return st
	case ReviewingResult:
		st.Image = bytes.Clone(st.Image)
		st.Record = st.Record.Clone()
		return st
	}
	return s
}

func (CollectingDetails) stage() {}
func (CapturingPhoto) stage()    {}
func (Analyzing) stage()         {}
func (ReviewingResult) stage()   {}

// Ticket identifies one analysis attempt. A result is applied only while
// its ticket is the current one.
type Ticket struct {
	ID          string `json:"id"`
	ImageDigest string `json:"image_digest"`
}

// Snapshot is a flattened, wire-friendly view of a stage
type Snapshot struct {
	Stage       StageName                  `json:"stage"`
	Draft       *DetailsForm               `json:"draft,omitempty"`
	Submission  *models.SubmissionContext  `json:"submission,omitempty"`
	Ticket      *Ticket                    `json:"ticket,omitempty"`
	Record      *models.VerificationRecord `json:"record,omitempty"`
	Publishable bool                       `json:"publishable"`
}

// Describe flattens a stage into a Snapshot
func Describe(s Stage) Snapshot {
	switch st := s.(type) {
	case CollectingDetails:
		draft := st.Draft
		return Snapshot{Stage: st.Name(), Draft: &draft}
	case CapturingPhoto:
		sub := st.Submission
		return Snapshot{Stage: st.Name(), Submission: &sub}
	case Analyzing:
		sub, t := st.Submission, st.Ticket
		return Snapshot{Stage: st.Name(), Submission: &sub, Ticket: &t}
	case ReviewingResult:
		sub, t, rec := st.Submission, st.Ticket, st.Record
		return Snapshot{Stage: st.Name(), Submission: &sub, Ticket: &t, Record: &rec, Publishable: st.Publishable}
	}
	return Snapshot{}
}
