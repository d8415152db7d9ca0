package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"remux/internal/converter"
	"remux/internal/deps"
	"remux/internal/installer"
	"remux/internal/logging"
)

// Sentinel errors for the batch lifecycle.
var (
	// ErrBatchActive rejects a submission while another batch is in flight.
	ErrBatchActive = errors.New("a batch is already active")
	// ErrToolMissing pauses the batch until the tool is installed.
	ErrToolMissing = errors.New("conversion tool is not available")
	// ErrNotAwaitingInstall rejects install-flow actions outside the pause.
	ErrNotAwaitingInstall = errors.New("no batch is awaiting installation")
	// ErrEmptyBatch rejects a submission without any file.
	ErrEmptyBatch = errors.New("batch contains no files")
)

// Recorder persists finished batches. Implemented by the history store; a
// nil recorder disables persistence.
type Recorder interface {
	RecordBatch(ctx context.Context, snapshot Snapshot) error
}

// Orchestrator owns one batch at a time and drives it through probing,
// conversion, and completion. All processing is sequential: one batch, one
// in-flight item. Methods are safe for concurrent use, but only one
// submission can be active.
type Orchestrator struct {
	prober    deps.Prober
	installer installer.Installer
	convert   converter.Client
	recorder  Recorder
	logger    *slog.Logger

	events chan Event

	mu           sync.Mutex
	phase        Phase
	batchID      string
	items        []Item
	lastSnapshot Snapshot
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithRecorder persists finished batches to the given recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// WithLogger attaches a logger. A nil logger falls back to no-op.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator wires the orchestration core from its collaborators.
func NewOrchestrator(prober deps.Prober, inst installer.Installer, convert converter.Client, opts ...Option) (*Orchestrator, error) {
	if prober == nil || convert == nil {
		return nil, errors.New("orchestrator requires prober and converter")
	}
	o := &Orchestrator{
		prober:    prober,
		installer: inst,
		convert:   convert,
		phase:     PhaseIdle,
		events:    make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.WithComponent(o.logger, "batch")
	return o, nil
}

// Events returns the notification channel. Events are dropped rather than
// blocking the conversion loop when no one is draining the channel.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Submit enqueues a batch and processes it synchronously in submission
// order. It returns ErrBatchActive while another batch is in flight and
// ErrToolMissing when the availability probe fails, leaving the batch
// paused for RetryInstall or DeclineInstall. Any other error is a
// probe-mechanism failure and discards the batch.
func (o *Orchestrator) Submit(ctx context.Context, paths []string) error {
	cleaned := make([]string, 0, len(paths))
	for _, path := range paths {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return ErrEmptyBatch
	}

	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return fmt.Errorf("%w (phase %s)", ErrBatchActive, o.phase)
	}
	o.batchID = uuid.NewString()
	o.items = make([]Item, 0, len(cleaned))
	for _, path := range cleaned {
		o.items = append(o.items, newItem(path))
	}
	o.phase = PhaseProbing
	o.mu.Unlock()

	o.logger.Info("batch submitted",
		slog.String(logging.FieldBatchID, o.batchID),
		slog.Int("count", len(cleaned)))
	o.emit(Event{Kind: EventBatchStarted})

	return o.probeAndRun(ctx)
}

// probeAndRun checks tool availability and either runs the batch or parks
// it in the awaiting-install phase.
func (o *Orchestrator) probeAndRun(ctx context.Context) error {
	available, err := o.prober.Probe(ctx)
	if err != nil {
		o.discard()
		return fmt.Errorf("availability probe: %w", err)
	}
	if !available {
		o.mu.Lock()
		o.phase = PhaseAwaitingInstall
		o.mu.Unlock()
		o.logger.Warn("conversion tool missing, batch paused",
			slog.String(logging.FieldBatchID, o.currentBatchID()))
		o.emit(Event{Kind: EventToolMissing})
		return ErrToolMissing
	}
	return o.run(ctx)
}

// run processes every item sequentially and returns the batch to idle.
func (o *Orchestrator) run(ctx context.Context) error {
	o.mu.Lock()
	o.phase = PhaseRunning
	total := len(o.items)
	o.mu.Unlock()

	for index := 0; index < total; index++ {
		o.mu.Lock()
		o.items[index].State = ItemConverting
		item := o.items[index]
		o.mu.Unlock()

		o.logger.Info("converting",
			slog.String(logging.FieldBatchID, o.currentBatchID()),
			slog.String(logging.FieldSource, item.SourcePath))
		o.emit(Event{Kind: EventItemStarted, Item: &item})

		// The conversion is the only blocking step; its result decides the
		// item's terminal state and never aborts the batch.
		outputPath, err := o.convert.Convert(ctx, item.SourcePath)

		o.mu.Lock()
		if err != nil {
			o.items[index].setFailed(err.Error())
		} else {
			o.items[index].setDone(outputPath)
		}
		item = o.items[index]
		o.mu.Unlock()

		if err != nil {
			o.logger.Warn("conversion failed",
				slog.String(logging.FieldBatchID, o.currentBatchID()),
				slog.String(logging.FieldSource, item.SourcePath),
				logging.Error(err))
		} else {
			o.logger.Info("conversion complete",
				slog.String(logging.FieldBatchID, o.currentBatchID()),
				slog.String(logging.FieldSource, item.SourcePath),
				slog.String(logging.FieldOutput, item.OutputPath))
		}
		o.emit(Event{Kind: EventItemFinished, Item: &item})
	}

	return o.finish(ctx)
}

// finish computes the final snapshot, records it, and resets to idle.
func (o *Orchestrator) finish(ctx context.Context) error {
	o.mu.Lock()
	snapshot := o.snapshotLocked()
	snapshot.Phase = PhaseIdle
	snapshot.Outcome = computeOutcome(PhaseIdle, o.items)
	o.lastSnapshot = snapshot
	o.phase = PhaseIdle
	o.items = nil
	o.batchID = ""
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordBatch(ctx, snapshot); err != nil {
			o.logger.Warn("record batch history", logging.Error(err))
		}
	}

	o.logger.Info("batch finished",
		slog.String(logging.FieldBatchID, snapshot.BatchID),
		slog.String("outcome", string(snapshot.Outcome)))
	o.emit(Event{Kind: EventBatchFinished, Snapshot: snapshot})
	return nil
}

// RetryInstall runs the installer, re-probes availability, and resumes the
// paused batch from scratch. Every item restarts from pending: no
// conversion can have happened before availability was confirmed.
func (o *Orchestrator) RetryInstall(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseAwaitingInstall {
		o.mu.Unlock()
		return ErrNotAwaitingInstall
	}
	o.mu.Unlock()

	if o.installer == nil {
		return errors.New("no installer configured")
	}

	err := o.installer.Install(ctx, func(line string) {
		o.emit(Event{Kind: EventInstallProgress, Detail: line})
	})
	if err != nil {
		// Batch stays paused; the caller may retry or decline.
		return fmt.Errorf("install: %w", err)
	}

	// Install success does not certify invocability; probe again before
	// resuming. The batch may have been declined while the install ran, so
	// the pause must still hold here.
	o.mu.Lock()
	if o.phase != PhaseAwaitingInstall {
		o.mu.Unlock()
		return ErrNotAwaitingInstall
	}
	o.phase = PhaseProbing
	for index := range o.items {
		o.items[index] = newItem(o.items[index].SourcePath)
	}
	o.mu.Unlock()

	return o.probeAndRun(ctx)
}

// DeclineInstall abandons the paused batch and returns to idle. The caller
// keeps the original path list if it wants to resubmit later.
func (o *Orchestrator) DeclineInstall() error {
	o.mu.Lock()
	if o.phase != PhaseAwaitingInstall {
		o.mu.Unlock()
		return ErrNotAwaitingInstall
	}
	batchID := o.batchID
	o.phase = PhaseIdle
	o.items = nil
	o.batchID = ""
	o.lastSnapshot = Snapshot{}
	o.mu.Unlock()

	o.logger.Info("install declined, batch discarded",
		slog.String(logging.FieldBatchID, batchID))
	o.emit(Event{Kind: EventBatchDiscarded, BatchID: batchID})
	return nil
}

// Snapshot returns a read-only copy of the current batch state. After a
// batch finishes it keeps answering with the final snapshot until the next
// submission.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseIdle && len(o.items) == 0 {
		return o.lastSnapshot
	}
	return o.snapshotLocked()
}

// Phase returns the current batch-level phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	items := make([]Item, len(o.items))
	copy(items, o.items)
	return Snapshot{
		BatchID:       o.batchID,
		Phase:         o.phase,
		Items:         items,
		ProgressRatio: computeProgress(items),
		Outcome:       computeOutcome(o.phase, items),
	}
}

func (o *Orchestrator) discard() {
	o.mu.Lock()
	o.phase = PhaseIdle
	o.items = nil
	o.batchID = ""
	o.mu.Unlock()
}

func (o *Orchestrator) currentBatchID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batchID
}

func (o *Orchestrator) emit(event Event) {
	if event.BatchID == "" {
		event.BatchID = o.currentBatchID()
	}
	if event.Snapshot.BatchID == "" && len(event.Snapshot.Items) == 0 {
		event.Snapshot = o.Snapshot()
	}
	select {
	case o.events <- event:
	default:
	}
}
