package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/obligation"
)

// vectorFake returns canned vectors keyed by a substring of the input text.
// Unmatched texts error, exercising the skip-and-continue path.
type vectorFake struct {
	vectors map[string][]float32
}

func (f *vectorFake) Embed(_ context.Context, text string) ([]float32, error) {
	for key, vec := range f.vectors {
		if key != "" && contains(text, key) {
			return vec, nil
		}
	}
	return nil, errors.New("no vector for text")
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestSemantic_IdenticalVectorsMapTo085(t *testing.T) {
	fake := &vectorFake{vectors: map[string][]float32{
		"Sales":      {1, 0, 0},
		"Obligation": {1, 0, 0},
	}}
	m := NewSemanticMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales report"},
		[]obligation.Obligation{{ID: "o1", Title: "Obligation on sales"}},
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// similarity 1.0 -> 0.4 + 0.5*0.9 = 0.85
	assert.InDelta(t, 0.85, matches[0].Confidence, 1e-9)
	assert.Equal(t, MethodSemantic, matches[0].Method)
}

func TestSemantic_BelowHalfSimilarityNoMatch(t *testing.T) {
	// Orthogonal vectors: similarity 0.
	fake := &vectorFake{vectors: map[string][]float32{
		"Sales":      {1, 0},
		"Obligation": {0, 1},
	}}
	m := NewSemanticMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales report"},
		[]obligation.Obligation{{ID: "o1", Title: "Obligation on storage"}},
	)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSemantic_LinearMappingMidRange(t *testing.T) {
	// cos between (1,0) and (0.6,0.8) is 0.6 -> 0.4 + 0.1*0.9 = 0.49
	fake := &vectorFake{vectors: map[string][]float32{
		"Sales":      {1, 0},
		"Obligation": {0.6, 0.8},
	}}
	m := NewSemanticMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales report"},
		[]obligation.Obligation{{ID: "o1", Title: "Obligation on sales"}},
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.49, matches[0].Confidence, 1e-6)
}

func TestSemantic_SlotEmbedFailureSkipsSlot(t *testing.T) {
	fake := &vectorFake{vectors: map[string][]float32{
		"Obligation": {1, 0},
	}}
	m := NewSemanticMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Unembeddable"},
		[]obligation.Obligation{{ID: "o1", Title: "Obligation on sales"}},
	)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSemantic_PairEmbedFailureSkipsPairOnly(t *testing.T) {
	fake := &vectorFake{vectors: map[string][]float32{
		"Sales": {1, 0, 0},
		"good":  {1, 0, 0},
	}}
	m := NewSemanticMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales report"},
		[]obligation.Obligation{
			{ID: "o-bad", Title: "Unembeddable obligation"},
			{ID: "o-good", Title: "good obligation"},
		},
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "o-good", matches[0].ObligationID)
}
