// Package flow runs the submission pipeline against the external offer
// service: ingest the current document, evaluate it, then fetch the market
// snapshot best-effort.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/louisvcarpet/offergo/pkg/offerapi"
)

// State names one step of the pipeline.
type State string

const (
	StateIdle           State = "idle"
	StateUploading      State = "uploading"
	StateIngesting      State = "ingesting"
	StateEvaluating     State = "evaluating"
	StateFetchingMarket State = "fetching_market_snapshot"
	StateComplete       State = "complete"
	StateFailed         State = "failed"
)

// Guard violations, all blocked before any network call.
var (
	ErrNoUploads     = errors.New("no offer documents uploaded")
	ErrNoCurrent     = errors.New("exactly one offer must be marked current")
	ErrNotPDF        = errors.New("the current offer document must be a PDF")
	ErrEmptyDocument = errors.New("the current offer document is empty")
)

// API is the slice of the external client the pipeline needs.
type API interface {
	IngestPDF(ctx context.Context, filename string, data []byte, pr offerapi.Priorities) (*offerapi.IngestResponse, error)
	Evaluate(ctx context.Context, offerID int64) (*offerapi.Evaluation, error)
	MarketSnapshot(ctx context.Context, offerID int64) (*offerapi.MarketSnapshot, error)
}

// Upload is one locally registered offer document.
type Upload struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	Current     bool
}

// Input gathers everything one run needs.
type Input struct {
	Uploads    []Upload
	Priorities offerapi.Priorities
}

// Result is the pipeline outcome. Snapshot stays nil when the market fetch
// failed; that path still counts as complete.
type Result struct {
	OfferID    int64
	Ingest     *offerapi.IngestResponse
	Evaluation *offerapi.Evaluation
	Snapshot   *offerapi.MarketSnapshot
}

// Pipeline executes one submission at a time. It never retries: every
// failure is terminal for the run and the caller re-triggers explicitly.
type Pipeline struct {
	api   API
	log   *zap.Logger
	state State
	trail []State
}

// New returns an idle pipeline.
func New(api API, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{api: api, log: log, state: StateIdle, trail: []State{StateIdle}}
}

// State reports the current pipeline state.
func (p *Pipeline) State() State { return p.state }

// Trail returns the ordered states the run passed through.
func (p *Pipeline) Trail() []State { return append([]State(nil), p.trail...) }

func (p *Pipeline) transition(s State) {
	p.state = s
	p.trail = append(p.trail, s)
}

// Run validates the guards, then walks the pipeline. Ingest or evaluation
// failure transitions to Failed and returns the upstream error unchanged so
// the raw message reaches the user.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	current, err := validate(in)
	if err != nil {
		return nil, err
	}

	p.transition(StateUploading)
	p.log.Info("submission started",
		zap.String("filename", current.Filename),
		zap.Int("uploads", len(in.Uploads)))

	p.transition(StateIngesting)
	ingest, err := p.api.IngestPDF(ctx, current.Filename, current.Data, in.Priorities)
	if err != nil {
		p.transition(StateFailed)
		return nil, fmt.Errorf("ingest: %w", err)
	}

	p.transition(StateEvaluating)
	evaluation, err := p.api.Evaluate(ctx, ingest.OfferID)
	if err != nil {
		p.transition(StateFailed)
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	// Best-effort: a missing snapshot degrades the comparison section only.
	p.transition(StateFetchingMarket)
	snapshot, err := p.api.MarketSnapshot(ctx, ingest.OfferID)
	if err != nil {
		p.log.Warn("market snapshot unavailable", zap.Int64("offer_id", ingest.OfferID), zap.Error(err))
		snapshot = nil
	}

	p.transition(StateComplete)
	return &Result{
		OfferID:    ingest.OfferID,
		Ingest:     ingest,
		Evaluation: evaluation,
		Snapshot:   snapshot,
	}, nil
}

func validate(in Input) (*Upload, error) {
	if len(in.Uploads) == 0 {
		return nil, ErrNoUploads
	}
	var current *Upload
	for i := range in.Uploads {
		if in.Uploads[i].Current {
			if current != nil {
				return nil, ErrNoCurrent
			}
			current = &in.Uploads[i]
		}
	}
	if current == nil {
		return nil, ErrNoCurrent
	}
	if !IsPDF(current.Filename, current.ContentType) {
		return nil, ErrNotPDF
	}
	if len(current.Data) == 0 {
		return nil, ErrEmptyDocument
	}
	if err := in.Priorities.Validate(); err != nil {
		return nil, err
	}
	return current, nil
}

// IsPDF accepts either a pdf content type or a .pdf filename, matching the
// ingestion service's own check.
func IsPDF(filename, contentType string) bool {
	if strings.EqualFold(strings.TrimSpace(contentType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// IsGuardError reports whether err is a local validation failure, as opposed
// to an upstream one.
func IsGuardError(err error) bool {
	return errors.Is(err, ErrNoUploads) || errors.Is(err, ErrNoCurrent) ||
		errors.Is(err, ErrNotPDF) || errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, offerapi.ErrBadPriority)
}
