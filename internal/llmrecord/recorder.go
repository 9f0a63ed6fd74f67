package llmrecord

import (
	"context"
	"log/slog"
	"sync"

	"github.com/parentgrade/gradecore/internal/store"
)

// Recorder accumulates Calls for one grading request and, when a
// persistence delegate is configured, writes each one through as a text
// artifact — adapted from the teacher's llmcall.Recorder, which wraps a
// defra.Sink for fire-and-forget async writes; here the write is
// synchronous but still best-effort (a persistence failure never fails
// the grading request, matching graderr.ErrDelegatePersistFailure's
// recoverable classification).
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	delegate store.Delegate
	logger   *slog.Logger
}

// NewRecorder returns a Recorder. delegate may be nil, in which case
// calls are only kept in memory for Calls().
func NewRecorder(delegate store.Delegate, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{delegate: delegate, logger: logger}
}

// Record appends call to the in-memory log and, if a delegate is
// configured, persists the call record's JSON under the VLM or OCR
// raw-reply artifact kind. A nil call is a no-op
// (the same guard FromVLMResult/FromOCRResult apply to a nil result).
func (r *Recorder) Record(ctx context.Context, call *Call) {
	if call == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, *call)
	r.mu.Unlock()

	if r.delegate == nil {
		return
	}
	kind := store.KindVLMRawReply
	if call.Kind == KindOCR {
		kind = store.KindOCRRawReply
	}
	if _, err := r.delegate.PutArtifact(ctx, kind, call.ToJSON(r.logger)); err != nil {
		r.logger.Warn("failed to persist call record artifact", "error", err, "call_id", call.ID)
	}
}

// Calls returns a snapshot of every call recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// TotalCostUSD sums CostUSD across every recorded call.
func (r *Recorder) TotalCostUSD() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, c := range r.calls {
		total += c.CostUSD
	}
	return total
}
