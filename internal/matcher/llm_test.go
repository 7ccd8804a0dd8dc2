package matcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/obligation"
)

// completionFake returns a canned response or error and records the prompt.
type completionFake struct {
	response   string
	err        error
	lastPrompt string
}

func (f *completionFake) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.lastPrompt = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func llmObligations(n int) []obligation.Obligation {
	obls := make([]obligation.Obligation, n)
	for i := range obls {
		obls[i] = obligation.Obligation{
			ID:           fmt.Sprintf("o%d", i+1),
			Jurisdiction: "eu-mdr",
			Kind:         obligation.KindObligation,
			Title:        fmt.Sprintf("obligation %d", i+1),
		}
	}
	return obls
}

func TestLLMFallback_ParsesStructuredResponse(t *testing.T) {
	fake := &completionFake{response: `{"matches": [
		{"obligation_id": "o1", "confidence": 0.7, "reasoning": "slot reports sales"},
		{"obligation_id": "o2", "confidence": 0.3, "reasoning": "weak relation"}
	]}`}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales", Description: "annual sales volume"},
		llmObligations(2),
	)
	require.NoError(t, err)

	// Confidence 0.3 filtered out.
	require.Len(t, matches, 1)
	assert.Equal(t, "o1", matches[0].ObligationID)
	assert.InDelta(t, 0.7, matches[0].Confidence, 1e-9)
	assert.Equal(t, MethodLLM, matches[0].Method)
	assert.Equal(t, "slot reports sales", matches[0].Reasoning)
}

func TestLLMFallback_ConfidenceCapped(t *testing.T) {
	fake := &completionFake{response: `{"matches": [
		{"obligation_id": "o1", "confidence": 0.99, "reasoning": "certain"}
	]}`}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales"},
		llmObligations(1),
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.85, matches[0].Confidence, 1e-9)
}

func TestLLMFallback_UnknownObligationIDDropped(t *testing.T) {
	fake := &completionFake{response: `{"matches": [
		{"obligation_id": "invented-id", "confidence": 0.9, "reasoning": "hallucinated"}
	]}`}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales"},
		llmObligations(1),
	)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLLMFallback_MalformedResponseNonFatal(t *testing.T) {
	fake := &completionFake{response: `not json at all`}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales"},
		llmObligations(1),
	)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLLMFallback_ProviderFailureNonFatal(t *testing.T) {
	fake := &completionFake{err: errors.New("provider down")}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales"},
		llmObligations(1),
	)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLLMFallback_CandidateListBounded(t *testing.T) {
	fake := &completionFake{response: `{"matches": []}`}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	_, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales"},
		llmObligations(40),
	)
	require.NoError(t, err)

	// Only the first MaxLLMCandidates obligations appear in the prompt.
	assert.Contains(t, fake.lastPrompt, "id=o15")
	assert.NotContains(t, fake.lastPrompt, "id=o16")
}

func TestLLMFallback_NoObligationsNoCall(t *testing.T) {
	fake := &completionFake{response: `{"matches": []}`}
	m := NewLLMFallbackMatcher(fake, zap.NewNop())

	matches, err := m.Match(context.Background(),
		obligation.Slot{SlotID: "s1", Name: "Sales"},
		nil,
	)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, fake.lastPrompt)
}
