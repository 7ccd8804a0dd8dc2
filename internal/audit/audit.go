// Package audit provides best-effort audit trace recording for grounding
// decisions. Trace failures must never abort a grounding run; callers log
// and continue.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one audit trace record for a major grounding phase.
type Entry struct {
	// ID is a generated identifier for the entry.
	ID string `json:"id"`

	// EventType names the phase, e.g. "grounding-complete",
	// "alignment-complete", "override-applied".
	EventType string `json:"event_type"`

	// Actor is the human or system principal responsible for the decision.
	Actor string `json:"actor"`

	// EntityID is the subject of the decision (usually a template ID).
	EntityID string `json:"entity_id"`

	// Decision is the machine-readable outcome (PASS, WARNING, BLOCKED...).
	Decision string `json:"decision"`

	// HumanSummary is a self-sufficient one-line summary for reviewers.
	HumanSummary string `json:"human_summary"`

	// OutputData carries the serialized decision payload.
	OutputData map[string]any `json:"output_data,omitempty"`

	// RecordedAt is when the entry was created.
	RecordedAt time.Time `json:"recorded_at"`
}

// NewEntry creates an entry with a generated ID and timestamp.
func NewEntry(eventType, actor, entityID, decision, humanSummary string, outputData map[string]any) Entry {
	return Entry{
		ID:           uuid.New().String(),
		EventType:    eventType,
		Actor:        actor,
		EntityID:     entityID,
		Decision:     decision,
		HumanSummary: humanSummary,
		OutputData:   outputData,
		RecordedAt:   time.Now().UTC(),
	}
}

// Trace records audit entries. Implementations are best-effort: callers
// must treat a returned error as log-and-continue.
type Trace interface {
	Record(ctx context.Context, entry Entry) error
}

// ZapTrace writes audit entries to the structured log. It is the default
// trace when no persistent backend is configured.
type ZapTrace struct {
	logger *zap.Logger
}

// NewZapTrace creates a log-backed trace.
func NewZapTrace(logger *zap.Logger) *ZapTrace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapTrace{logger: logger}
}

// Record logs the entry at info level.
func (t *ZapTrace) Record(_ context.Context, entry Entry) error {
	t.logger.Info("audit trace",
		zap.String("trace_id", entry.ID),
		zap.String("event_type", entry.EventType),
		zap.String("actor", entry.Actor),
		zap.String("entity_id", entry.EntityID),
		zap.String("decision", entry.Decision),
		zap.String("summary", entry.HumanSummary),
	)
	return nil
}

// NopTrace discards entries. Useful in tests.
type NopTrace struct{}

// Record discards the entry.
func (NopTrace) Record(context.Context, Entry) error { return nil }
