package deals

import (
	"fmt"
	"strings"

	"github.com/agentrange/deal-server/audience"
	"github.com/agentrange/deal-server/catalog"
	"github.com/agentrange/deal-server/pricing"
)

// DecisionPolicy turns coverage and pricing results into a terminal outcome.
// Policies may vary per inventory channel; the flow selects one by the
// product's inventory type.
type DecisionPolicy interface {
	Decide(proposal *Proposal, product *catalog.Product, coverage audience.CoverageResult, price pricing.Result) Decision
}

// NewStandardPolicy returns the default negotiation policy.
//
// Rules are evaluated in priority order: audience unfulfillability dominates
// pricing (there is no point negotiating price on inventory that cannot serve
// the audience), and price flooring dominates partial-audience countering
// (price correctness is resolved before audience nuance is surfaced).
func NewStandardPolicy() DecisionPolicy {
	return standardPolicy{}
}

type standardPolicy struct{}

func (standardPolicy) Decide(proposal *Proposal, product *catalog.Product, coverage audience.CoverageResult, price pricing.Result) Decision {
	decision := Decision{
		ProposalID: proposal.ID,
		Pricing:    &price,
		Coverage:   &coverage,
	}

	if coverage.Status == audience.StatusNoMatch && len(coverage.Alternatives) == 0 {
		decision.Outcome = OutcomeRejected
		decision.Reasons = []string{"audience targeting cannot be fulfilled and no alternative capabilities exist"}
		return decision
	}

	// A below-floor ask is countered at the floor, never rejected outright: a
	// valid floor price always exists to offer back.
	offered := proposal.OfferedCPM
	offeredBelowFloor := offered != nil && *offered < product.FloorCPM
	if offeredBelowFloor || (price.FlooredApplied && offered != nil && *offered < price.FinalPrice) {
		decision.Outcome = OutcomeCountered
		decision.Reasons = []string{fmt.Sprintf("offered price $%.2f is below the acceptable floor", *offered)}
		decision.CounterTerms = &CounterTerms{
			ProposedCPM: product.FloorCPM,
			Impressions: proposal.Impressions,
			Note:        fmt.Sprintf("Floor price for %s is $%.2f CPM", product.ID, product.FloorCPM),
		}
		return decision
	}

	if coverage.Status == audience.StatusPartialMatch {
		decision.Outcome = OutcomeCountered
		decision.Reasons = []string{fmt.Sprintf("audience coverage is partial (%.1f%%)", coverage.CoveragePercentage)}
		decision.CounterTerms = &CounterTerms{
			ProposedCPM: price.FinalPrice,
			Impressions: proposal.Impressions,
			Note:        partialMatchNote(coverage),
		}
		return decision
	}

	decision.Outcome = OutcomeAccepted
	decision.Reasons = []string{"pricing and audience coverage acceptable"}
	return decision
}

func partialMatchNote(coverage audience.CoverageResult) string {
	var b strings.Builder
	b.WriteString("Partial audience match")
	if len(coverage.Gaps) > 0 {
		b.WriteString("; unmet capabilities: ")
		b.WriteString(strings.Join(coverage.Gaps, ", "))
	}
	if len(coverage.Alternatives) > 0 {
		b.WriteString("; suggested alternatives: ")
		b.WriteString(strings.Join(coverage.Alternatives, ", "))
	}
	return b.String()
}
