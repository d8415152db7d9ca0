package batch

import (
	"path/filepath"
	"strings"
)

// ItemState represents the lifecycle of one file in a batch.
type ItemState string

const (
	ItemPending    ItemState = "pending"
	ItemConverting ItemState = "converting"
	ItemDone       ItemState = "done"
	ItemFailed     ItemState = "failed"
)

// IsTerminal reports whether no further transition occurs from the state.
func (s ItemState) IsTerminal() bool {
	return s == ItemDone || s == ItemFailed
}

// Item tracks one file's journey through conversion. SourcePath and
// DisplayName are fixed at enqueue time; OutputPath is set only when the
// item is done and ErrorDetail only when it failed.
type Item struct {
	SourcePath  string
	DisplayName string
	State       ItemState
	OutputPath  string
	ErrorDetail string
}

func newItem(sourcePath string) Item {
	return Item{
		SourcePath:  sourcePath,
		DisplayName: filepath.Base(sourcePath),
		State:       ItemPending,
	}
}

func (i *Item) setDone(outputPath string) {
	i.State = ItemDone
	i.OutputPath = outputPath
	i.ErrorDetail = ""
}

func (i *Item) setFailed(detail string) {
	i.State = ItemFailed
	i.ErrorDetail = strings.TrimSpace(detail)
	i.OutputPath = ""
}

// Phase is the batch-level state.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseProbing         Phase = "probing"
	PhaseAwaitingInstall Phase = "awaiting_install"
	PhaseRunning         Phase = "running"
)

// Outcome is the aggregate batch result label. It is recomputed from item
// states on every read rather than stored incrementally.
type Outcome string

const (
	OutcomeNone                Outcome = ""
	OutcomeConverting          Outcome = "converting"
	OutcomeDone                Outcome = "done"
	OutcomeFailed              Outcome = "failed"
	OutcomeCompletedWithErrors Outcome = "completed with errors"
)

// Snapshot is a read-only copy of batch state for rendering. Items are
// copies; mutating them has no effect on the orchestrator.
type Snapshot struct {
	BatchID       string
	Phase         Phase
	Items         []Item
	ProgressRatio float64
	Outcome       Outcome
}

// Terminal reports whether every item in the snapshot reached a terminal
// state.
func (s Snapshot) Terminal() bool {
	if len(s.Items) == 0 {
		return false
	}
	for _, item := range s.Items {
		if !item.State.IsTerminal() {
			return false
		}
	}
	return true
}

func computeProgress(items []Item) float64 {
	if len(items) == 0 {
		return 0
	}
	terminal := 0
	for _, item := range items {
		if item.State.IsTerminal() {
			terminal++
		}
	}
	return float64(terminal) / float64(len(items))
}

func computeOutcome(phase Phase, items []Item) Outcome {
	if len(items) == 0 {
		return OutcomeNone
	}
	done := 0
	failed := 0
	for _, item := range items {
		switch item.State {
		case ItemDone:
			done++
		case ItemFailed:
			failed++
		}
	}
	if done+failed < len(items) {
		if phase == PhaseRunning {
			return OutcomeConverting
		}
		return OutcomeNone
	}
	switch {
	case failed == 0:
		return OutcomeDone
	case done == 0:
		return OutcomeFailed
	default:
		return OutcomeCompletedWithErrors
	}
}

// EventKind identifies an orchestrator notification.
type EventKind string

const (
	EventBatchStarted    EventKind = "batch_started"
	EventToolMissing     EventKind = "tool_missing"
	EventInstallProgress EventKind = "install_progress"
	EventItemStarted     EventKind = "item_started"
	EventItemFinished    EventKind = "item_finished"
	EventBatchFinished   EventKind = "batch_finished"
	EventBatchDiscarded  EventKind = "batch_discarded"
)

// Event carries one state change to whatever renders it. Item is populated
// for item-scoped events, Detail for opaque text such as install progress.
type Event struct {
	Kind     EventKind
	BatchID  string
	Item     *Item
	Detail   string
	Snapshot Snapshot
}
