// Package override lets a reviewer replace automated slot matches with an
// explicit obligation list.
//
// An override supersedes every automated match for its (template, slot) pair
// at confidence 1.0 and persists until replaced by another override. A fresh
// automated grounding run replaces all persisted mappings and does NOT
// re-apply stored overrides; callers that want overrides to survive
// re-grounding must re-apply them explicitly. This destructive-by-default
// behavior is deliberate: automated runs represent the current best automated
// judgment, and override re-application is an auditable reviewer action.
package override

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/complykit/groundd/internal/matcher"
)

var (
	// ErrEmptyJustification indicates a missing justification. Overrides are
	// reviewer decisions; the justification is what makes them auditable.
	ErrEmptyJustification = errors.New("override justification cannot be empty")

	// ErrEmptyObligations indicates an override with no obligation IDs.
	ErrEmptyObligations = errors.New("override must list at least one obligation ID")

	// ErrNotFound indicates no override exists for the (template, slot) pair.
	ErrNotFound = errors.New("override not found")
)

// Override replaces all automated matches for a (template, slot) pair.
type Override struct {
	TemplateID    string    `json:"template_id"`
	SlotID        string    `json:"slot_id"`
	ObligationIDs []string  `json:"obligation_ids"`
	Justification string    `json:"justification"`
	Actor         string    `json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the override's required fields.
func (o *Override) Validate() error {
	if o.TemplateID == "" || o.SlotID == "" {
		return fmt.Errorf("template ID and slot ID are required")
	}
	if len(o.ObligationIDs) == 0 {
		return ErrEmptyObligations
	}
	if o.Justification == "" {
		return ErrEmptyJustification
	}
	return nil
}

// Matches expands the override into manual matches at confidence 1.0.
func (o *Override) Matches() []matcher.Match {
	matches := make([]matcher.Match, 0, len(o.ObligationIDs))
	for _, oblID := range o.ObligationIDs {
		matches = append(matches, matcher.Match{
			SlotID:       o.SlotID,
			ObligationID: oblID,
			Confidence:   1.0,
			Method:       matcher.MethodManual,
			Reasoning:    fmt.Sprintf("manual override by %s: %s", o.Actor, o.Justification),
		})
	}
	return matches
}

// Store persists overrides. Saving an override for an existing
// (template, slot) pair supersedes the previous one.
type Store interface {
	Save(ctx context.Context, ov Override) error
	Get(ctx context.Context, templateID, slotID string) (Override, error)
	ListForTemplate(ctx context.Context, templateID string) ([]Override, error)
	Delete(ctx context.Context, templateID, slotID string) error
}

// Registry validates and applies overrides on top of automated results.
type Registry struct {
	store Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Put validates and persists an override, superseding any previous override
// for the same (template, slot) pair.
func (r *Registry) Put(ctx context.Context, ov Override) error {
	if err := ov.Validate(); err != nil {
		return err
	}
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = time.Now().UTC()
	}
	return r.store.Save(ctx, ov)
}

// Remove deletes the override for a (template, slot) pair.
func (r *Registry) Remove(ctx context.Context, templateID, slotID string) error {
	return r.store.Delete(ctx, templateID, slotID)
}

// Apply replaces the automated result for every slot that has a stored
// override, re-aggregating so BestMatch and IsGrounded reflect the manual
// matches. Slots without overrides pass through unchanged.
func (r *Registry) Apply(ctx context.Context, templateID string, results []matcher.SlotGroundingResult, threshold float64) ([]matcher.SlotGroundingResult, error) {
	overrides, err := r.store.ListForTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("listing overrides: %w", err)
	}
	if len(overrides) == 0 {
		return results, nil
	}

	bySlot := make(map[string]Override, len(overrides))
	for _, ov := range overrides {
		bySlot[ov.SlotID] = ov
	}

	agg := matcher.NewAggregator()
	out := make([]matcher.SlotGroundingResult, len(results))
	for i, res := range results {
		if ov, ok := bySlot[res.SlotID]; ok {
			out[i] = agg.Aggregate(res.SlotID, ov.Matches(), threshold)
		} else {
			out[i] = res
		}
	}
	return out, nil
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu        sync.RWMutex
	overrides map[string]Override // key: templateID + "\x00" + slotID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[string]Override)}
}

func key(templateID, slotID string) string { return templateID + "\x00" + slotID }

// Save stores the override, superseding any previous one for the pair.
func (s *MemoryStore) Save(_ context.Context, ov Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key(ov.TemplateID, ov.SlotID)] = ov
	return nil
}

// Get retrieves the override for a pair.
func (s *MemoryStore) Get(_ context.Context, templateID, slotID string) (Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ov, ok := s.overrides[key(templateID, slotID)]
	if !ok {
		return Override{}, ErrNotFound
	}
	return ov, nil
}

// ListForTemplate returns all overrides for a template.
func (s *MemoryStore) ListForTemplate(_ context.Context, templateID string) ([]Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Override
	for _, ov := range s.overrides {
		if ov.TemplateID == templateID {
			out = append(out, ov)
		}
	}
	return out, nil
}

// Delete removes the override for a pair.
func (s *MemoryStore) Delete(_ context.Context, templateID, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, key(templateID, slotID))
	return nil
}
