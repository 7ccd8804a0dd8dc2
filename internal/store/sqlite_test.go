package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/audit"
	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
	"github.com/complykit/groundd/internal/override"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testObligation(id, jurisdiction, artifactType string, mandatory bool) obligation.Obligation {
	return obligation.Obligation{
		ID:           id,
		Jurisdiction: jurisdiction,
		ArtifactType: artifactType,
		Kind:         obligation.KindObligation,
		Title:        "Title " + id,
		Text:         "Text for " + id,
		Mandatory:    mandatory,
	}
}

func TestStore_GetMandatoryObligations_FiltersByJurisdictionAndType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutObligation(ctx, testObligation("eu-1", "EU", "technical_documentation", true)))
	require.NoError(t, s.PutObligation(ctx, testObligation("eu-2", "EU", "risk_assessment", true)))
	require.NoError(t, s.PutObligation(ctx, testObligation("us-1", "US", "technical_documentation", true)))
	require.NoError(t, s.PutObligation(ctx, testObligation("eu-opt", "EU", "technical_documentation", false)))

	got, err := s.GetMandatoryObligations(ctx, []string{"EU"}, "technical_documentation", "tpl-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "eu-1", got[0].ID)

	got, err = s.GetMandatoryObligations(ctx, []string{"EU", "US"}, "", "tpl-1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStore_GetMandatoryObligations_EmptyJurisdictions(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetMandatoryObligations(context.Background(), nil, "", "tpl-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_PutObligation_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)

	err := s.PutObligation(context.Background(), obligation.Obligation{ID: "x"})
	assert.Error(t, err)
}

func TestStore_PutObligation_RoundTripsEvidenceTypes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	obl := testObligation("eu-1", "EU", "technical_documentation", true)
	obl.RequiredEvidenceTypes = []string{"test_results", "risk_assessment"}
	obl.SourceCitation = "Article 11"
	require.NoError(t, s.PutObligation(ctx, obl))

	got, err := s.GetMandatoryObligations(ctx, []string{"EU"}, "", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"test_results", "risk_assessment"}, got[0].RequiredEvidenceTypes)
	assert.Equal(t, "Article 11", got[0].SourceCitation)
}

func TestStore_ReplaceMappings_ReplacesAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := []matcher.Match{
		{SlotID: "slot-a", ObligationID: "eu-1", Confidence: 0.8, Method: matcher.MethodEvidenceOverlap},
		{SlotID: "slot-b", ObligationID: "eu-2", Confidence: 0.95, Method: matcher.MethodCitation},
	}
	require.NoError(t, s.ReplaceMappings(ctx, "tpl-1", first))

	second := []matcher.Match{
		{SlotID: "slot-a", ObligationID: "eu-3", Confidence: 0.7, Method: matcher.MethodSemantic, Reasoning: "semantic similarity 0.83"},
	}
	require.NoError(t, s.ReplaceMappings(ctx, "tpl-1", second))

	got, err := s.GetMappings(ctx, "tpl-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "eu-3", got[0].ObligationID)
	assert.Equal(t, matcher.MethodSemantic, got[0].Method)
	assert.Equal(t, "semantic similarity 0.83", got[0].Reasoning)
}

func TestStore_ReplaceMappings_ScopedToTemplate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceMappings(ctx, "tpl-1", []matcher.Match{
		{SlotID: "slot-a", ObligationID: "eu-1", Confidence: 0.8, Method: matcher.MethodEvidenceOverlap},
	}))
	require.NoError(t, s.ReplaceMappings(ctx, "tpl-2", nil))

	got, err := s.GetMappings(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_Overrides_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ov := override.Override{
		TemplateID:    "tpl-1",
		SlotID:        "slot-a",
		ObligationIDs: []string{"eu-1", "eu-2"},
		Justification: "mapped during legal review",
		Actor:         "reviewer@example.com",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, ov))

	got, err := s.Get(ctx, "tpl-1", "slot-a")
	require.NoError(t, err)
	assert.Equal(t, ov.ObligationIDs, got.ObligationIDs)
	assert.Equal(t, ov.Justification, got.Justification)
	assert.Equal(t, ov.Actor, got.Actor)

	list, err := s.ListForTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, "tpl-1", "slot-a"))
	_, err = s.Get(ctx, "tpl-1", "slot-a")
	assert.ErrorIs(t, err, override.ErrNotFound)
}

func TestStore_Save_SupersedesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := override.Override{
		TemplateID:    "tpl-1",
		SlotID:        "slot-a",
		ObligationIDs: []string{"eu-1"},
		Justification: "initial",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, base))

	base.ObligationIDs = []string{"eu-2"}
	base.Justification = "corrected"
	require.NoError(t, s.Save(ctx, base))

	got, err := s.Get(ctx, "tpl-1", "slot-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-2"}, got.ObligationIDs)
	assert.Equal(t, "corrected", got.Justification)
}

func TestStore_AuditEntries_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := audit.NewEntry("grounding-complete", "system", "tpl-1", "PASS",
		"grounded 5 of 5 slots", map[string]any{"compliance_score": float64(100)})
	require.NoError(t, s.Record(ctx, entry))

	got, err := s.ListAuditEntries(ctx, "tpl-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.ID, got[0].ID)
	assert.Equal(t, "PASS", got[0].Decision)
	assert.Equal(t, float64(100), got[0].OutputData["compliance_score"])
}

func TestImportObligations_SkipsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := []byte(`
obligations:
  - id: eu-1
    jurisdiction: EU
    artifact_type: technical_documentation
    title: Technical documentation
    text: Providers shall draw up technical documentation.
    source_citation: Article 11
    mandatory: true
    required_evidence_types: [design_specification]
  - id: ""
    jurisdiction: EU
    title: Missing ID
    text: Should be skipped.
    mandatory: true
  - id: eu-2
    jurisdiction: EU
    artifact_type: technical_documentation
    kind: constraint
    title: Advisory constraint
    text: Advisory text.
    mandatory: true
`)

	result, err := ImportObligations(ctx, s, doc, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	got, err := s.GetMandatoryObligations(ctx, []string{"EU"}, "technical_documentation", "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestImportObligations_MalformedYAML(t *testing.T) {
	s := openTestStore(t)

	_, err := ImportObligations(context.Background(), s, []byte("obligations: [}"), zap.NewNop())
	assert.Error(t, err)
}
