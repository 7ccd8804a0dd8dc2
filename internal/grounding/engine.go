package grounding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/audit"
	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
)

// ObligationStore supplies the mandatory obligation snapshot for a run.
type ObligationStore interface {
	// GetMandatoryObligations returns the mandatory obligations registered
	// for the given jurisdictions and artifact type. TemplateID may scope
	// template-specific obligations; an empty string means none.
	GetMandatoryObligations(ctx context.Context, jurisdictions []string, artifactType, templateID string) ([]obligation.Obligation, error)
}

// PersistenceLayer stores the accepted slot-obligation mappings for a
// template. ReplaceMappings is atomic: the previous mappings for the template
// are deleted and the new ones inserted in one operation. Concurrent
// re-grounding of the same template is last-writer-wins; callers that need
// stronger guarantees must serialize externally per template.
type PersistenceLayer interface {
	ReplaceMappings(ctx context.Context, templateID string, matches []matcher.Match) error
}

// Options configures a grounding run.
type Options struct {
	// UseLLMAnalysis enables the LLM fallback matcher for slots the cheaper
	// strategies leave below the threshold.
	UseLLMAnalysis bool

	// ConfidenceThreshold is the acceptance threshold (default 0.6).
	ConfidenceThreshold float64

	// StrictMode maps uncovered mandatory obligations to BLOCKED instead of
	// WARNING (default true; zero value of the struct is non-strict, so use
	// DefaultOptions).
	StrictMode bool
}

// DefaultOptions returns the documented defaults: no LLM analysis, threshold
// 0.6, strict mode on.
func DefaultOptions() Options {
	return Options{
		UseLLMAnalysis:      false,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		StrictMode:          true,
	}
}

// Request is the input to one grounding run.
type Request struct {
	// TemplateID identifies the template under validation.
	TemplateID string

	// Slots is the ordered raw slot list; normalization happens at this
	// boundary, malformed slots are skipped with a warning.
	Slots []obligation.RawSlot

	// Jurisdictions lists the regulatory regimes the template must satisfy.
	Jurisdictions []string

	// ArtifactType is the document type being produced.
	ArtifactType string

	// Actor is recorded on the audit trace (defaults to "system").
	Actor string

	// Options configures the run.
	Options Options
}

// Engine runs grounding for templates.
//
// Slots are processed sequentially within a run. Multiple runs for different
// templates may execute concurrently; the only shared mutable state is the
// embedding cache inside the semantic matcher's provider, which is race-safe.
type Engine struct {
	store       ObligationStore
	strategies  []matcher.Strategy
	llmFallback matcher.Strategy
	aggregator  *matcher.Aggregator
	validator   *CoverageValidator
	persistence PersistenceLayer
	trace       audit.Trace
	logger      *zap.Logger
	metrics     *Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLLMFallback sets the LLM fallback strategy. Without it,
// Options.UseLLMAnalysis has no effect.
func WithLLMFallback(s matcher.Strategy) EngineOption {
	return func(e *Engine) { e.llmFallback = s }
}

// WithPersistence sets the mapping persistence layer. Without it, accepted
// mappings are not persisted.
func WithPersistence(p PersistenceLayer) EngineOption {
	return func(e *Engine) { e.persistence = p }
}

// WithTrace sets the audit trace (default: log-backed).
func WithTrace(t audit.Trace) EngineOption {
	return func(e *Engine) { e.trace = t }
}

// NewEngine creates a grounding engine. The strategies run per slot in the
// order given; pass them evidence, citation, semantic to match the documented
// strategy order.
func NewEngine(store ObligationStore, strategies []matcher.Strategy, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("obligation store cannot be nil")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one matching strategy is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:      store,
		strategies: strategies,
		aggregator: matcher.NewAggregator(),
		validator:  NewCoverageValidator(),
		trace:      audit.NewZapTrace(logger),
		logger:     logger,
		metrics:    NewMetrics(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Ground runs grounding and coverage validation for the template.
//
// The returned Result is always usable when err is nil; configuration
// failures and coverage gaps surface as BLOCKED or WARNING statuses, not
// errors. Only an unreachable obligation store fails the run outright.
//
// A successful run replaces all persisted mappings for the template,
// including any previously applied manual overrides; callers re-apply
// overrides explicitly when they should survive re-grounding.
func (e *Engine) Ground(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	opts := req.Options
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	actor := req.Actor
	if actor == "" {
		actor = "system"
	}

	slots, inputWarnings := obligation.NormalizeSlots(req.Slots)
	for _, w := range inputWarnings {
		e.logger.Warn("slot normalization", zap.String("template_id", req.TemplateID), zap.String("warning", w))
	}

	obligations, err := e.store.GetMandatoryObligations(ctx, req.Jurisdictions, req.ArtifactType, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("fetching mandatory obligations: %w", err)
	}

	byRegion := make(map[string][]obligation.Obligation)
	for _, obl := range obligations {
		byRegion[obl.Jurisdiction] = append(byRegion[obl.Jurisdiction], obl)
	}

	slotResults := make([]matcher.SlotGroundingResult, 0, len(slots))
	for _, slot := range slots {
		slotResults = append(slotResults, e.groundSlot(ctx, slot, obligations, opts))
	}

	covered := coveredIDs(slotResults, opts.ConfidenceThreshold)
	coveredSet := make(map[string]struct{}, len(covered))
	for _, id := range covered {
		coveredSet[id] = struct{}{}
	}

	var uncovered []UncoveredObligation
	coveredMandatory := 0
	mandatoryCount := 0
	for _, obl := range obligations {
		if !obl.Mandatory {
			continue
		}
		mandatoryCount++
		if _, ok := coveredSet[obl.ID]; ok {
			coveredMandatory++
			continue
		}
		uncovered = append(uncovered, UncoveredObligation{
			Obligation: obl,
			Reason:     fmt.Sprintf("no slot matched at or above confidence %.2f", opts.ConfidenceThreshold),
		})
	}

	status, blocking, warnings := e.validator.Validate(validationInput{
		jurisdictions:       req.Jurisdictions,
		obligationsByRegion: byRegion,
		uncovered:           uncovered,
		slotResults:         slotResults,
		inputWarnings:       inputWarnings,
		strictMode:          opts.StrictMode,
	})

	result := &Result{
		TemplateID:           req.TemplateID,
		Status:               status,
		CoveredObligationIDs: covered,
		UncoveredObligations: uncovered,
		ComplianceScore:      complianceScore(coveredMandatory, mandatoryCount),
		BlockingErrors:       blocking,
		Warnings:             warnings,
		SlotResults:          slotResults,
	}

	e.persistMappings(ctx, req.TemplateID, result, opts.ConfidenceThreshold)
	e.emitTrace(ctx, actor, req.TemplateID, result)
	e.metrics.RecordRun(ctx, string(status), time.Since(start), slotResults)

	e.logger.Info("grounding run complete",
		zap.String("template_id", req.TemplateID),
		zap.String("status", string(status)),
		zap.Int("compliance_score", result.ComplianceScore),
		zap.Int("slots", len(slotResults)),
		zap.Int("covered_obligations", len(covered)),
		zap.Int("uncovered_obligations", len(uncovered)),
	)
	return result, nil
}

// groundSlot runs the strategies for one slot in fixed order and aggregates.
// The LLM fallback runs only when enabled and the cheaper strategies left the
// slot ungrounded.
func (e *Engine) groundSlot(ctx context.Context, slot obligation.Slot, obligations []obligation.Obligation, opts Options) matcher.SlotGroundingResult {
	var raw []matcher.Match
	for _, s := range e.strategies {
		matches, err := s.Match(ctx, slot, obligations)
		if err != nil {
			// One policy for all strategy failures: warn and continue.
			e.logger.Warn("matching strategy failed, continuing without it",
				zap.String("strategy", s.Name()),
				zap.String("slot_id", slot.SlotID),
				zap.Error(err),
			)
			continue
		}
		raw = append(raw, matches...)
	}

	result := e.aggregator.Aggregate(slot.SlotID, raw, opts.ConfidenceThreshold)
	if result.IsGrounded || !opts.UseLLMAnalysis || e.llmFallback == nil {
		return result
	}

	llmMatches, err := e.llmFallback.Match(ctx, slot, obligations)
	if err != nil {
		e.logger.Warn("LLM fallback failed, continuing without it",
			zap.String("slot_id", slot.SlotID),
			zap.Error(err),
		)
		return result
	}
	return e.aggregator.Aggregate(slot.SlotID, append(raw, llmMatches...), opts.ConfidenceThreshold)
}

// persistMappings atomically replaces the template's stored mappings with the
// run's accepted matches, those at or above the confidence threshold.
// Failures degrade to a result warning: the gate decision stands, the stored
// mappings are stale.
func (e *Engine) persistMappings(ctx context.Context, templateID string, result *Result, threshold float64) {
	if e.persistence == nil {
		return
	}
	var accepted []matcher.Match
	for _, res := range result.SlotResults {
		for _, m := range res.AllMatches {
			if m.Confidence >= threshold {
				accepted = append(accepted, m)
			}
		}
	}
	if err := e.persistence.ReplaceMappings(ctx, templateID, accepted); err != nil {
		e.logger.Warn("failed to persist slot mappings",
			zap.String("template_id", templateID),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings,
			"slot mappings could not be persisted; stored mappings are stale for this template")
		if result.Status == StatusPass {
			result.Status = StatusWarning
		}
	}
}

// emitTrace records the grounding-complete audit entry. Best-effort: trace
// failures never abort grounding.
func (e *Engine) emitTrace(ctx context.Context, actor, templateID string, result *Result) {
	entry := audit.NewEntry(
		"grounding-complete",
		actor,
		templateID,
		string(result.Status),
		fmt.Sprintf("grounding of template %s finished %s with compliance score %d (%d covered, %d uncovered mandatory obligations)",
			templateID, result.Status, result.ComplianceScore,
			len(result.CoveredObligationIDs), len(result.UncoveredObligations)),
		map[string]any{
			"compliance_score": result.ComplianceScore,
			"covered":          result.CoveredObligationIDs,
			"blocking_errors":  result.BlockingErrors,
			"warnings":         result.Warnings,
		},
	)
	if err := e.trace.Record(ctx, entry); err != nil {
		e.logger.Warn("audit trace recording failed",
			zap.String("template_id", templateID),
			zap.Error(err),
		)
	}
}
