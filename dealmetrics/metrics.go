// Package dealmetrics records proposal and decision observability metrics.
package dealmetrics

import (
	"time"

	"github.com/agentrange/deal-server/buyer"
)

// DecisionOutcome labels the terminal outcome meters.
type DecisionOutcome string

const (
	DecisionAccepted  DecisionOutcome = "accepted"
	DecisionCountered DecisionOutcome = "countered"
	DecisionRejected  DecisionOutcome = "rejected"
)

// DecisionOutcomes lists every outcome label.
func DecisionOutcomes() []DecisionOutcome {
	return []DecisionOutcome{DecisionAccepted, DecisionCountered, DecisionRejected}
}

// Engine is the interface the negotiation flow records against. A blank
// implementation exists for tests.
type Engine interface {
	RecordProposal(tier buyer.Tier)
	RecordDecision(outcome DecisionOutcome)
	RecordPrice(cpm float64)
	RecordValidationError()
	RecordAllocationFailure()
	RecordFlowTime(length time.Duration)
}
