package deals

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/agentrange/deal-server/audience"
	"github.com/agentrange/deal-server/buyer"
	"github.com/agentrange/deal-server/catalog"
	"github.com/agentrange/deal-server/dealmetrics"
	"github.com/agentrange/deal-server/errortypes"
	"github.com/agentrange/deal-server/ledger"
	"github.com/agentrange/deal-server/pricing"
)

// Config holds the flow's construction-time settings. Pricing tables and
// thresholds live in the injected engine and validator; there is no hot reload.
type Config struct {
	SellerOrgID       string
	CatalogTimeout    time.Duration
	ValidationTimeout time.Duration

	// ChannelPolicies overrides the decision policy per inventory type.
	// Products whose inventory type has no entry use the standard policy.
	ChannelPolicies map[string]DecisionPolicy
}

// Flow drives proposals through audience validation and pricing evaluation to
// a terminal decision. A given proposal identifier is decided at most once;
// the flow itself holds no mutable shared state beyond the decision registry.
type Flow struct {
	cfg           Config
	catalog       catalog.Fetcher
	validator     audience.Validator
	engine        pricing.Engine
	ledger        ledger.Ledger
	ids           *IDGenerator
	me            dealmetrics.Engine
	defaultPolicy DecisionPolicy

	mu      sync.Mutex
	active  map[string]*run
	decided map[string]*Decision
}

type run struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
}

func (r *run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// NewFlow wires a negotiation flow from its collaborators.
func NewFlow(cfg Config, cat catalog.Fetcher, validator audience.Validator, engine pricing.Engine, led ledger.Ledger, me dealmetrics.Engine) *Flow {
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = 500 * time.Millisecond
	}
	if cfg.ValidationTimeout <= 0 {
		cfg.ValidationTimeout = 250 * time.Millisecond
	}
	return &Flow{
		cfg:           cfg,
		catalog:       cat,
		validator:     validator,
		engine:        engine,
		ledger:        led,
		ids:           NewIDGenerator(),
		me:            me,
		defaultPolicy: NewStandardPolicy(),
		active:        make(map[string]*run),
		decided:       make(map[string]*Decision),
	}
}

// Process takes a proposal to its terminal decision.
//
// Intake validation failures (missing product or volume, unknown proposal id
// reuse) surface as *errortypes.BadInput before the state machine is entered.
// Once entered, every per-request degradation resolves into a terminal
// decision: coverage problems become the "not requested" sentinel, allocation
// shortfalls become counter-offers.
func (f *Flow) Process(ctx context.Context, proposal *Proposal) (*Decision, error) {
	if err := validateIntake(proposal); err != nil {
		return nil, err
	}
	if proposal.SubmittedAt.IsZero() {
		proposal.SubmittedAt = time.Now().UTC()
	}

	product, err := f.fetchProduct(ctx, proposal.ProductID)
	if err != nil {
		return nil, err
	}

	r, err := f.register(ctx, proposal.ID)
	if err != nil {
		return nil, err
	}
	defer r.cancel()

	start := time.Now()
	f.me.RecordProposal(buyer.ResolveTier(proposal.BuyerContext))

	// Coverage and pricing have no data dependency on each other; the state
	// machine only serializes them at the decision step. Compute both
	// concurrently and join before applying policy.
	r.setState(StateAudienceValidating)
	covCh := make(chan audience.CoverageResult, 1)
	priceCh := make(chan pricing.Result, 1)
	go f.recoverSafely(proposal.ID, func() {
		covCh <- f.validateAudience(r.ctx, proposal, product)
	}, func() {
		covCh <- audience.NotRequested()
	})
	go f.recoverSafely(proposal.ID, func() {
		priceCh <- f.engine.CalculatePrice(product.ID, product.BaseCPM, product.FloorCPM, proposal.BuyerContext, proposal.Impressions)
	}, func() {
		priceCh <- pricing.Result{ProductID: product.ID, FinalPrice: product.BaseCPM, Tier: buyer.TierPublic}
	})

	coverage := <-covCh
	r.setState(StatePricingEvaluating)
	price := <-priceCh

	if err := r.ctx.Err(); err != nil {
		f.unregister(proposal.ID)
		return nil, fmt.Errorf("proposal %s canceled before decision: %v", proposal.ID, err)
	}

	decision := f.policyFor(product.InventoryType).Decide(proposal, product, coverage, price)

	if decision.Outcome == OutcomeAccepted {
		if err := f.ledger.Reserve(r.ctx, product.ID, proposal.Impressions); err != nil {
			glog.Warningf("Reservation failed for proposal %s on product %s: %v", proposal.ID, product.ID, err)
			f.me.RecordAllocationFailure()
			decision.Outcome = OutcomeCountered
			decision.Reasons = []string{"requested volume is not currently available"}
			decision.CounterTerms = &CounterTerms{
				ProposedCPM: price.FinalPrice,
				Impressions: proposal.Impressions,
				Note:        "Requested volume could not be reserved; revised availability to follow",
			}
		} else {
			decision.DealID = f.ids.Generate(f.cfg.SellerOrgID, product.ID, proposal.SubmittedAt)
		}
	}
	decision.DecidedAt = time.Now().UTC()

	r.setState(StateDecided)
	f.complete(proposal.ID, &decision)

	f.me.RecordDecision(dealmetrics.DecisionOutcome(decision.Outcome))
	f.me.RecordPrice(price.FinalPrice)
	f.me.RecordFlowTime(time.Since(start))
	return &decision, nil
}

// Withdraw cancels an in-flight proposal. Withdrawing after a decision was
// reached is a no-op error; the decision stands.
func (f *Flow) Withdraw(proposalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.decided[proposalID]; ok {
		return &errortypes.BadInput{Message: fmt.Sprintf("proposal %s already decided; withdrawal is a no-op", proposalID)}
	}
	r, ok := f.active[proposalID]
	if !ok {
		return &errortypes.BadInput{Message: fmt.Sprintf("proposal %s is not in flight", proposalID)}
	}
	r.cancel()
	return nil
}

// Decision returns the terminal decision for a proposal, if one was reached.
func (f *Flow) Decision(proposalID string) (*Decision, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decided[proposalID]
	return d, ok
}

// State reports where a proposal currently sits in the flow, for callers
// polling an in-flight proposal. Decided proposals report StateDecided;
// unknown or withdrawn ids report false.
func (f *Flow) State(proposalID string) (State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.decided[proposalID]; ok {
		return StateDecided, true
	}
	if r, ok := f.active[proposalID]; ok {
		r.mu.Lock()
		s := r.state
		r.mu.Unlock()
		return s, true
	}
	return "", false
}

func validateIntake(proposal *Proposal) error {
	if proposal == nil {
		return &errortypes.BadInput{Message: "proposal is required"}
	}
	if proposal.ID == "" {
		return &errortypes.BadInput{Message: "proposal id is required"}
	}
	if proposal.ProductID == "" {
		return &errortypes.BadInput{Message: "proposal product id is required"}
	}
	if proposal.Impressions <= 0 {
		return &errortypes.BadInput{Message: fmt.Sprintf("proposal volume must be positive, got %d", proposal.Impressions)}
	}
	if proposal.OfferedCPM != nil && *proposal.OfferedCPM <= 0 {
		return &errortypes.BadInput{Message: fmt.Sprintf("proposal offered CPM must be positive when present, got %v", *proposal.OfferedCPM)}
	}
	return nil
}

func (f *Flow) register(ctx context.Context, proposalID string) (*run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.decided[proposalID]; ok {
		return nil, &errortypes.BadInput{Message: fmt.Sprintf("proposal %s was already decided", proposalID)}
	}
	if _, ok := f.active[proposalID]; ok {
		return nil, &errortypes.BadInput{Message: fmt.Sprintf("proposal %s is already in flight", proposalID)}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{ctx: runCtx, cancel: cancel, state: StateSubmitted}
	f.active[proposalID] = r
	return r, nil
}

func (f *Flow) unregister(proposalID string) {
	f.mu.Lock()
	delete(f.active, proposalID)
	f.mu.Unlock()
}

func (f *Flow) complete(proposalID string, decision *Decision) {
	f.mu.Lock()
	delete(f.active, proposalID)
	f.decided[proposalID] = decision
	f.mu.Unlock()
}

func (f *Flow) policyFor(inventoryType string) DecisionPolicy {
	if policy, ok := f.cfg.ChannelPolicies[inventoryType]; ok {
		return policy
	}
	return f.defaultPolicy
}

func (f *Flow) fetchProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, f.cfg.CatalogTimeout)
	defer cancel()

	product, err := f.catalog.FetchProduct(lookupCtx, productID)
	if err == nil {
		return product, nil
	}

	var notFound catalog.NotFoundError
	if errors.As(err, &notFound) {
		return nil, &errortypes.BadInput{Message: notFound.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &errortypes.Timeout{Message: fmt.Sprintf("catalog lookup for product %s timed out", productID)}
	}
	return nil, err
}

// validateAudience runs coverage validation when the proposal carries a
// targeting embedding. Every degradation short of success, including a
// capability lookup timeout or a dimension mismatch, resolves to the
// "not requested" sentinel so pricing decisions stay available even when
// audience infrastructure is degraded.
func (f *Flow) validateAudience(ctx context.Context, proposal *Proposal, product *catalog.Product) audience.CoverageResult {
	if proposal.Targeting == nil {
		return audience.NotRequested()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, f.cfg.ValidationTimeout)
	defer cancel()

	capabilities, err := f.catalog.FetchCapabilities(lookupCtx, product.ID)
	if err != nil {
		glog.Warningf("Capability lookup failed for proposal %s on product %s, degrading to sentinel: %v", proposal.ID, product.ID, err)
		f.me.RecordValidationError()
		return audience.NotRequested()
	}

	result, err := f.validator.Validate(audience.Request{
		Embedding: proposal.Targeting,
		Requested: proposal.Capabilities,
	}, capabilities)
	if err != nil {
		if errortypes.IsWarning(err) {
			glog.Warningf("Audience validation degraded to sentinel for proposal %s: %v", proposal.ID, err)
		} else {
			glog.Errorf("Audience validation failed for proposal %s, degrading to sentinel: %v", proposal.ID, err)
		}
		f.me.RecordValidationError()
		return audience.NotRequested()
	}
	return result
}

func (f *Flow) recoverSafely(proposalID string, inner func(), fallback func()) {
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("Negotiation flow recovered panic for proposal %s: %v. Stack trace is: %v", proposalID, r, string(debug.Stack()))
			fallback()
		}
	}()
	inner()
}
