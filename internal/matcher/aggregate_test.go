package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_DeduplicatesByObligationKeepingMax(t *testing.T) {
	raw := []Match{
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.6, Method: MethodSemantic},
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.8, Method: MethodCitation},
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.75, Method: MethodCitation},
	}

	result := NewAggregator().Aggregate("s1", raw, 0.6)

	require.Len(t, result.AllMatches, 1)
	assert.InDelta(t, 0.8, result.AllMatches[0].Confidence, 1e-9)
	assert.Equal(t, MethodCitation, result.AllMatches[0].Method)
}

func TestAggregate_TieBreakByMethodRank(t *testing.T) {
	// Equal confidence: evidence_overlap outranks citation outranks semantic
	// outranks llm; manual outranks everything.
	raw := []Match{
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.7, Method: MethodLLM},
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.7, Method: MethodSemantic},
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.7, Method: MethodCitation},
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.7, Method: MethodEvidenceOverlap},
	}

	result := NewAggregator().Aggregate("s1", raw, 0.6)
	require.Len(t, result.AllMatches, 1)
	assert.Equal(t, MethodEvidenceOverlap, result.AllMatches[0].Method)

	raw = append(raw, Match{SlotID: "s1", ObligationID: "o1", Confidence: 0.7, Method: MethodManual})
	result = NewAggregator().Aggregate("s1", raw, 0.6)
	assert.Equal(t, MethodManual, result.AllMatches[0].Method)
}

func TestAggregate_SortsDescendingAndTruncatesDisplay(t *testing.T) {
	var raw []Match
	for i := 0; i < 14; i++ {
		raw = append(raw, Match{
			SlotID:       "s1",
			ObligationID: fmt.Sprintf("o%02d", i),
			Confidence:   0.5 + float64(i)*0.03,
			Method:       MethodSemantic,
		})
	}

	result := NewAggregator().Aggregate("s1", raw, 0.6)

	// Display list truncated, full list retained.
	assert.Len(t, result.Matches, MaxDisplayMatches)
	assert.Len(t, result.AllMatches, 14)

	for i := 1; i < len(result.AllMatches); i++ {
		assert.GreaterOrEqual(t,
			result.AllMatches[i-1].Confidence,
			result.AllMatches[i].Confidence,
		)
	}
}

func TestAggregate_BestMatchRequiresThreshold(t *testing.T) {
	raw := []Match{
		{SlotID: "s1", ObligationID: "o1", Confidence: 0.55, Method: MethodSemantic},
	}

	result := NewAggregator().Aggregate("s1", raw, 0.6)
	assert.Nil(t, result.BestMatch)
	assert.False(t, result.IsGrounded)

	result = NewAggregator().Aggregate("s1", raw, 0.5)
	require.NotNil(t, result.BestMatch)
	assert.True(t, result.IsGrounded)
	assert.Equal(t, "o1", result.BestMatch.ObligationID)
}

func TestAggregate_EmptyInput(t *testing.T) {
	result := NewAggregator().Aggregate("s1", nil, 0.6)
	assert.Empty(t, result.AllMatches)
	assert.Nil(t, result.BestMatch)
	assert.False(t, result.IsGrounded)
	assert.Equal(t, "s1", result.SlotID)
}

func TestMethodRank_ClosedSet(t *testing.T) {
	assert.True(t, MethodManual.Valid())
	assert.True(t, MethodLLM.Valid())
	assert.False(t, Method("guesswork").Valid())

	// Unknown methods sort after every known method.
	assert.Greater(t, Method("guesswork").Rank(), MethodLLM.Rank())
}
