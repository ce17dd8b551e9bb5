// Package engine implements the per-study recruitment state machine. Every
// command loads the study's aggregate, validates its precondition, applies the
// mutation to a clone and persists the clone, so a rejected command or a
// failed store write never leaves a partially mutated state behind.
//
// Commands against the same study are serialized through a per-study mutex;
// commands against different studies run concurrently.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialkit/recruitment-service/internal/catalogue"
	"github.com/trialkit/recruitment-service/internal/domain"
	"github.com/trialkit/recruitment-service/internal/enrollment"
	"github.com/trialkit/recruitment-service/internal/events"
	"github.com/trialkit/recruitment-service/internal/observability"
	"github.com/trialkit/recruitment-service/internal/repository"
)

// DefaultWindowDuration is how long a recruitment window stays open when the
// configuration does not override it.
const DefaultWindowDuration = 24 * time.Hour

// errUnchanged signals from a mutation that the command is valid but there is
// nothing to persist. The caller receives the unmodified state and no error.
var errUnchanged = errors.New("state unchanged")

// StudyCatalogue is the slice of the catalogue client the engine needs when a
// caller initializes a study without supplying a recruitment target.
type StudyCatalogue interface {
	Study(ctx context.Context, studyID string) (*catalogue.Study, error)
}

// Options configures an Engine. Store is required; everything else has a
// working default.
type Options struct {
	Store     repository.RecruitmentStore
	Source    enrollment.Source
	Catalogue StudyCatalogue
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    zerolog.Logger

	// WindowDuration is the open-window deadline offset. Zero means
	// DefaultWindowDuration.
	WindowDuration time.Duration

	// Clock overrides the time source, for tests.
	Clock func() time.Time
}

// Engine is the recruitment state machine service.
type Engine struct {
	store          repository.RecruitmentStore
	source         enrollment.Source
	catalogue      StudyCatalogue
	publisher      events.Publisher
	metrics        *observability.Metrics
	logger         zerolog.Logger
	windowDuration time.Duration
	clock          func() time.Time

	mu         sync.Mutex
	studyLocks map[string]*sync.Mutex
}

// New creates an Engine from the given options.
func New(opts Options) *Engine {
	e := &Engine{
		store:          opts.Store,
		source:         opts.Source,
		catalogue:      opts.Catalogue,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With().Str("component", "engine").Logger(),
		windowDuration: opts.WindowDuration,
		clock:          opts.Clock,
		studyLocks:     make(map[string]*sync.Mutex),
	}
	if e.source == nil {
		e.source = enrollment.NewGeneratedSource()
	}
	if e.publisher == nil {
		e.publisher = events.NewNoopPublisher()
	}
	if e.windowDuration <= 0 {
		e.windowDuration = DefaultWindowDuration
	}
	if e.clock == nil {
		e.clock = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// studyLock returns the mutex serializing commands for the given study,
// creating it on first use.
func (e *Engine) studyLock(studyID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.studyLocks[studyID]
	if !ok {
		lock = &sync.Mutex{}
		e.studyLocks[studyID] = lock
	}
	return lock
}

// mutation applies a command to a cloned state and returns the lifecycle
// events to publish once the clone is persisted. Returning errUnchanged keeps
// the original state and skips the store write.
type mutation func(state *domain.RecruitmentState, now time.Time) ([]domain.RecruitmentEvent, error)

// apply runs a command against a single study under its lock: load, clone,
// mutate, persist, publish.
func (e *Engine) apply(ctx context.Context, command, studyID string, fn mutation) (*domain.RecruitmentState, error) {
	start := time.Now()

	lock := e.studyLock(studyID)
	lock.Lock()
	defer lock.Unlock()

	current, err := e.store.Get(ctx, studyID)
	if err != nil {
		e.recordCommand(command, outcomeFor(err), start)
		return nil, err
	}

	next := current.Clone()
	now := e.clock()

	evts, err := fn(next, now)
	if err != nil {
		if errors.Is(err, errUnchanged) {
			e.recordCommand(command, "noop", start)
			return current, nil
		}
		e.recordCommand(command, outcomeFor(err), start)
		return nil, err
	}

	next.UpdatedAt = now
	if err := e.store.Save(ctx, next); err != nil {
		e.recordCommand(command, "store_error", start)
		return nil, err
	}

	e.recordCommand(command, "success", start)
	for _, evt := range evts {
		e.publisher.Publish(ctx, evt)
	}
	return next, nil
}

func (e *Engine) recordCommand(command, outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordCommand(command, outcome, time.Since(start).Seconds())
	}
}

// outcomeFor maps an error to a command-metric outcome label. Domain errors
// are rejections of a well-formed command; anything else is an internal error.
func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrStudyNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnknownParticipant),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrCohortNotFound),
		errors.Is(err, domain.ErrInvalidInput):
		return "rejected"
	default:
		return "error"
	}
}
