// Package deals runs the proposal negotiation flow: a state machine that
// sequences audience validation and pricing evaluation, then applies decision
// policy to accept, counter, or reject an inbound proposal.
package deals

import (
	"time"

	"github.com/agentrange/deal-server/audience"
	"github.com/agentrange/deal-server/buyer"
	"github.com/agentrange/deal-server/pricing"
	"github.com/agentrange/deal-server/ucp"
)

// State is the negotiation flow position for one proposal.
type State string

const (
	StateSubmitted          State = "submitted"
	StateAudienceValidating State = "audience_validating"
	StatePricingEvaluating  State = "pricing_evaluating"
	StateDecided            State = "decided"
)

// Outcome is the terminal result of a proposal.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeCountered Outcome = "countered"
	OutcomeRejected  Outcome = "rejected"
)

// Proposal is one inbound buyer proposal. It is created at the API boundary
// and owned exclusively by the flow for its lifetime.
type Proposal struct {
	ID           string                  `json:"id"`
	BuyerContext buyer.Context           `json:"buyerContext"`
	ProductID    string                  `json:"productId"`
	Impressions  int64                   `json:"impressions"`
	OfferedCPM   *float64                `json:"offeredCpm,omitempty"` // nil means no explicit offer
	Targeting    *ucp.Embedding          `json:"targeting,omitempty"`
	Capabilities []ucp.CapabilityRequest `json:"capabilities,omitempty"`
	SubmittedAt  time.Time               `json:"submittedAt"`
}

// CounterTerms are the adjusted terms returned with a countered decision.
type CounterTerms struct {
	ProposedCPM float64 `json:"proposedCpm"`
	Impressions int64   `json:"impressions"`
	Note        string  `json:"note,omitempty"`
}

// Decision is the terminal outcome of one proposal.
type Decision struct {
	ProposalID   string                   `json:"proposalId"`
	Outcome      Outcome                  `json:"outcome"`
	Reasons      []string                 `json:"reasons"`
	DealID       string                   `json:"dealId,omitempty"`
	CounterTerms *CounterTerms            `json:"counterTerms,omitempty"`
	Pricing      *pricing.Result          `json:"pricing,omitempty"`
	Coverage     *audience.CoverageResult `json:"coverage,omitempty"`
	DecidedAt    time.Time                `json:"decidedAt"`
}
