package grounding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complykit/groundd/internal/matcher"
	"github.com/complykit/groundd/internal/obligation"
)

func uncoveredList(n int) []UncoveredObligation {
	out := make([]UncoveredObligation, n)
	for i := range out {
		out[i] = UncoveredObligation{
			Obligation: obligation.Obligation{
				ID:           fmt.Sprintf("eu-mdr:o%d", i+1),
				Jurisdiction: "eu-mdr",
				Kind:         obligation.KindObligation,
				Title:        fmt.Sprintf("obligation %d", i+1),
				Mandatory:    true,
			},
			Reason: "no slot matched",
		}
	}
	return out
}

func TestValidate_PassWhenClean(t *testing.T) {
	v := NewCoverageValidator()

	status, blocking, warnings := v.Validate(validationInput{
		jurisdictions: []string{"eu-mdr"},
		obligationsByRegion: map[string][]obligation.Obligation{
			"eu-mdr": {{ID: "o1"}},
		},
		slotResults: []matcher.SlotGroundingResult{{SlotID: "s1", IsGrounded: true}},
		strictMode:  true,
	})

	assert.Equal(t, StatusPass, status)
	assert.Empty(t, blocking)
	assert.Empty(t, warnings)
}

func TestValidate_EmptyJurisdictionAlwaysBlocks(t *testing.T) {
	v := NewCoverageValidator()

	// Even in non-strict mode: a configuration failure, not a coverage gap.
	status, blocking, _ := v.Validate(validationInput{
		jurisdictions:       []string{"us-fda"},
		obligationsByRegion: map[string][]obligation.Obligation{},
		strictMode:          false,
	})

	assert.Equal(t, StatusBlocked, status)
	require.NotEmpty(t, blocking)
	assert.Contains(t, blocking[0], "us-fda")
}

func TestValidate_BlockingMessagesCappedWithSummary(t *testing.T) {
	v := NewCoverageValidator()

	status, blocking, _ := v.Validate(validationInput{
		jurisdictions: []string{"eu-mdr"},
		obligationsByRegion: map[string][]obligation.Obligation{
			"eu-mdr": {{ID: "o1"}},
		},
		uncovered:  uncoveredList(8),
		strictMode: true,
	})

	assert.Equal(t, StatusBlocked, status)
	require.Len(t, blocking, maxBlockingDetail+1)
	assert.Equal(t, "+3 more uncovered mandatory obligations", blocking[maxBlockingDetail])

	// Each detailed message is self-sufficient: jurisdiction, id, title.
	assert.Contains(t, blocking[0], "eu-mdr:o1")
	assert.Contains(t, blocking[0], "eu-mdr")
	assert.Contains(t, blocking[0], "obligation 1")
}

func TestValidate_UngroundedSlotWarns(t *testing.T) {
	v := NewCoverageValidator()

	status, _, warnings := v.Validate(validationInput{
		jurisdictions: []string{"eu-mdr"},
		obligationsByRegion: map[string][]obligation.Obligation{
			"eu-mdr": {{ID: "o1"}},
		},
		slotResults: []matcher.SlotGroundingResult{{SlotID: "s9", IsGrounded: false}},
		strictMode:  true,
	})

	assert.Equal(t, StatusWarning, status)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "s9")
}

func TestValidate_NonStrictUncoveredWarns(t *testing.T) {
	v := NewCoverageValidator()

	status, blocking, warnings := v.Validate(validationInput{
		jurisdictions: []string{"eu-mdr"},
		obligationsByRegion: map[string][]obligation.Obligation{
			"eu-mdr": {{ID: "o1"}},
		},
		uncovered:  uncoveredList(1),
		strictMode: false,
	})

	assert.Equal(t, StatusWarning, status)
	assert.Empty(t, blocking)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "eu-mdr:o1")
}

func TestComplianceScore(t *testing.T) {
	assert.Equal(t, 100, complianceScore(0, 0)) // vacuous compliance
	assert.Equal(t, 100, complianceScore(2, 2))
	assert.Equal(t, 50, complianceScore(1, 2))
	assert.Equal(t, 67, complianceScore(2, 3))
	assert.Equal(t, 33, complianceScore(1, 3))
	assert.Equal(t, 0, complianceScore(0, 5))
}

func TestCoveredIDs_AllAcceptedMatchesCount(t *testing.T) {
	// Matches below the display cutoff still count toward coverage.
	var all []matcher.Match
	for i := 0; i < 12; i++ {
		all = append(all, matcher.Match{
			ObligationID: fmt.Sprintf("o%02d", i),
			Confidence:   0.95 - float64(i)*0.01,
			Method:       matcher.MethodSemantic,
		})
	}
	res := matcher.NewAggregator().Aggregate("s1", all, 0.6)
	require.Len(t, res.Matches, matcher.MaxDisplayMatches)

	ids := coveredIDs([]matcher.SlotGroundingResult{res}, 0.6)
	assert.Len(t, ids, 12)
}
