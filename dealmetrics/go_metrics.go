package dealmetrics

import (
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/agentrange/deal-server/buyer"
)

// Metrics is the go-metrics backed Engine.
type Metrics struct {
	MetricsRegistry      metrics.Registry
	ProposalMeter        metrics.Meter
	TierMeters           map[buyer.Tier]metrics.Meter
	DecisionMeters       map[DecisionOutcome]metrics.Meter
	PriceHistogram       metrics.Histogram
	ValidationErrorMeter metrics.Meter
	AllocationFailMeter  metrics.Meter
	FlowTimer            metrics.Timer
}

// NewBlankMetrics creates a Metrics object with all blank metrics. This is
// useful for testing routines to ensure that no metrics are written anywhere.
func NewBlankMetrics(registry metrics.Registry) *Metrics {
	blankMeter := &metrics.NilMeter{}

	tierMeters := make(map[buyer.Tier]metrics.Meter, len(buyer.Tiers()))
	for _, tier := range buyer.Tiers() {
		tierMeters[tier] = blankMeter
	}
	decisionMeters := make(map[DecisionOutcome]metrics.Meter, len(DecisionOutcomes()))
	for _, outcome := range DecisionOutcomes() {
		decisionMeters[outcome] = blankMeter
	}

	return &Metrics{
		MetricsRegistry:      registry,
		ProposalMeter:        blankMeter,
		TierMeters:           tierMeters,
		DecisionMeters:       decisionMeters,
		PriceHistogram:       &metrics.NilHistogram{},
		ValidationErrorMeter: blankMeter,
		AllocationFailMeter:  blankMeter,
		FlowTimer:            &metrics.NilTimer{},
	}
}

// NewMetrics creates a Metrics object with live registered metrics.
func NewMetrics(registry metrics.Registry) *Metrics {
	m := NewBlankMetrics(registry)
	m.ProposalMeter = metrics.GetOrRegisterMeter("proposals", registry)
	for _, tier := range buyer.Tiers() {
		m.TierMeters[tier] = metrics.GetOrRegisterMeter("proposals.tier."+string(tier), registry)
	}
	for _, outcome := range DecisionOutcomes() {
		m.DecisionMeters[outcome] = metrics.GetOrRegisterMeter("decisions."+string(outcome), registry)
	}
	m.PriceHistogram = metrics.GetOrRegisterHistogram("decisions.price_cents", registry, metrics.NewExpDecaySample(1028, 0.015))
	m.ValidationErrorMeter = metrics.GetOrRegisterMeter("audience.validation_errors", registry)
	m.AllocationFailMeter = metrics.GetOrRegisterMeter("ledger.allocation_failures", registry)
	m.FlowTimer = metrics.GetOrRegisterTimer("flow.decision_time", registry)
	return m
}

func (m *Metrics) RecordProposal(tier buyer.Tier) {
	m.ProposalMeter.Mark(1)
	if meter, ok := m.TierMeters[tier]; ok {
		meter.Mark(1)
	}
}

func (m *Metrics) RecordDecision(outcome DecisionOutcome) {
	if meter, ok := m.DecisionMeters[outcome]; ok {
		meter.Mark(1)
	}
}

// RecordPrice tracks final CPMs in cents, since go-metrics histograms are
// integer valued.
func (m *Metrics) RecordPrice(cpm float64) {
	m.PriceHistogram.Update(int64(cpm * 100))
}

func (m *Metrics) RecordValidationError() {
	m.ValidationErrorMeter.Mark(1)
}

func (m *Metrics) RecordAllocationFailure() {
	m.AllocationFailMeter.Mark(1)
}

func (m *Metrics) RecordFlowTime(length time.Duration) {
	m.FlowTimer.Update(length)
}
