// Package analytics records snippet view events. Every event feeds an
// in-process unique-viewer estimate and, optionally, an external sink.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fidde/codesnip/internal/metrics"
	"github.com/fidde/codesnip/pkg/hyperloglog"
)

// ViewEvent is one counted view of a snippet.
type ViewEvent struct {
	SnippetID string
	// ViewerKey identifies the viewer: a user id when signed in, otherwise a
	// client fingerprint.
	ViewerKey string
	At        time.Time
}

// Sink receives view events. Add must not block on network I/O for long;
// implementations buffer and write in the background.
type Sink interface {
	Add(ev ViewEvent) error
	Close(ctx context.Context) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Add(ViewEvent) error         { return nil }
func (NopSink) Close(context.Context) error { return nil }

// UniqueViewers estimates distinct viewers per snippet with one HyperLogLog
// sketch each. It is safe for concurrent use.
type UniqueViewers struct {
	mu       sync.Mutex
	sketches map[string]*hyperloglog.HyperLogLog
}

// NewUniqueViewers creates an empty tracker.
func NewUniqueViewers() *UniqueViewers {
	return &UniqueViewers{sketches: make(map[string]*hyperloglog.HyperLogLog)}
}

// Add records viewerKey as a viewer of snippetID.
func (u *UniqueViewers) Add(snippetID, viewerKey string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	h, ok := u.sketches[snippetID]
	if !ok {
		h = hyperloglog.New(hyperloglog.DefaultPrecision)
		u.sketches[snippetID] = h
	}
	h.Add(viewerKey)
}

// Estimate returns the approximate number of distinct viewers of snippetID.
func (u *UniqueViewers) Estimate(snippetID string) uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	h, ok := u.sketches[snippetID]
	if !ok {
		return 0
	}
	return h.Count()
}

// Forget drops the sketch of a deleted snippet.
func (u *UniqueViewers) Forget(snippetID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.sketches, snippetID)
}

// Snapshot returns a copy of every sketch keyed by snippet id.
func (u *UniqueViewers) Snapshot() map[string]*hyperloglog.HyperLogLog {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make(map[string]*hyperloglog.HyperLogLog, len(u.sketches))
	for id, h := range u.sketches {
		out[id] = h.Clone()
	}
	return out
}

// Replace discards all sketches and installs copies of sketches.
func (u *UniqueViewers) Replace(sketches map[string]*hyperloglog.HyperLogLog) {
	next := make(map[string]*hyperloglog.HyperLogLog, len(sketches))
	for id, h := range sketches {
		if h != nil {
			next[id] = h.Clone()
		}
	}

	u.mu.Lock()
	u.sketches = next
	u.mu.Unlock()
}

// Merge folds sketches into the tracked ones, so each snippet's estimate
// covers the union of both viewer sets. Sketches whose precision differs from
// the tracked sketch are skipped and reported in the returned error.
func (u *UniqueViewers) Merge(sketches map[string]*hyperloglog.HyperLogLog) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	var errs []error
	for id, other := range sketches {
		if other == nil {
			continue
		}
		h, ok := u.sketches[id]
		if !ok {
			u.sketches[id] = other.Clone()
			continue
		}
		if err := h.Merge(other); err != nil {
			errs = append(errs, fmt.Errorf("snippet %s: precision %d, have %d: %w", id, other.Precision(), h.Precision(), err))
		}
	}
	return errors.Join(errs...)
}

// Recorder fans view events out to the unique-viewer tracker and the sink.
type Recorder struct {
	unique *UniqueViewers
	sink   Sink
	logger *slog.Logger
}

// NewRecorder creates a recorder. A nil sink discards events.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		unique: NewUniqueViewers(),
		sink:   sink,
		logger: logger,
	}
}

// Record handles one view. Sink failures are logged and never returned.
func (r *Recorder) Record(ev ViewEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.unique.Add(ev.SnippetID, ev.ViewerKey)

	if err := r.sink.Add(ev); err != nil {
		metrics.AnalyticsDropped(1)
		r.logger.Warn("failed to record view event", "snippet_id", ev.SnippetID, "error", err)
	}
}

// UniqueViewers returns the estimated distinct viewers of snippetID.
func (r *Recorder) UniqueViewers(snippetID string) uint64 {
	return r.unique.Estimate(snippetID)
}

// Viewers returns the unique-viewer tracker.
func (r *Recorder) Viewers() *UniqueViewers {
	return r.unique
}

// Forget drops per-snippet state.
func (r *Recorder) Forget(snippetID string) {
	r.unique.Forget(snippetID)
}

// Close flushes and closes the sink.
func (r *Recorder) Close(ctx context.Context) error {
	return r.sink.Close(ctx)
}
