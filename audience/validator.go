// Package audience scores a buyer's targeting request against seller capability
// embeddings and reports coverage, gaps, and alternative capabilities. The
// validator performs no network I/O; embeddings and capability catalogs are
// supplied by callers.
package audience

import (
	"fmt"
	"math"
	"sort"

	"github.com/agentrange/deal-server/errortypes"
	"github.com/agentrange/deal-server/ucp"
)

// Status classifies a validation outcome.
type Status string

const (
	StatusValid        Status = "valid"
	StatusPartialMatch Status = "partial_match"
	StatusNoMatch      Status = "no_match"

	// StatusNotRequested is the sentinel carried through the negotiation flow
	// when the proposal has no targeting embedding, or when validation degraded
	// (dimension mismatch, capability lookup timeout).
	StatusNotRequested Status = "not_requested"
)

// CoverageResult is produced fresh per validation call and never mutated after
// creation.
type CoverageResult struct {
	Status             Status   `json:"validationStatus"`
	CoveragePercentage float64  `json:"coveragePercentage"`
	SimilarityScore    float64  `json:"similarityScore"`
	Gaps               []string `json:"gaps,omitempty"`
	Alternatives       []string `json:"alternatives,omitempty"`
}

// NotRequested returns the sentinel result used when no validation ran.
func NotRequested() CoverageResult {
	return CoverageResult{Status: StatusNotRequested}
}

// Request is a buyer's decoded targeting ask: one query embedding plus the
// capability tags the buyer wants served, each optionally weighted.
type Request struct {
	Embedding *ucp.Embedding
	Requested []ucp.CapabilityRequest
}

// Config holds the classification thresholds.
type Config struct {
	// ValidThreshold is the minimum similarity for a "valid" classification
	// when every requested capability is covered.
	ValidThreshold float64
	// NoMatchThreshold is the similarity below which the request is classified
	// "no_match" regardless of tag overlap.
	NoMatchThreshold float64
	// GapThreshold is the per-tag similarity below which a requested capability
	// counts as a gap even when the seller lists the tag.
	GapThreshold float64
}

// DefaultConfig returns the thresholds observed in production deployments.
func DefaultConfig() Config {
	return Config{
		ValidThreshold:   0.5,
		NoMatchThreshold: 0.3,
		GapThreshold:     0.3,
	}
}

// Validator scores buyer targeting requests against seller capabilities.
type Validator interface {
	Validate(req Request, capabilities []ucp.Capability) (CoverageResult, error)
}

type validator struct {
	cfg Config
}

// NewValidator builds a Validator with the given thresholds.
func NewValidator(cfg Config) Validator {
	return &validator{cfg: cfg}
}

// Validate computes best-match embedding similarity, weighted capability
// coverage, gaps, and ranked alternatives.
//
// A dimension mismatch between the buyer embedding and any capability embedding
// is a hard precondition failure for this call; it is never silently truncated
// or padded.
func (v *validator) Validate(req Request, capabilities []ucp.Capability) (CoverageResult, error) {
	if req.Embedding == nil {
		return CoverageResult{}, &errortypes.BadInput{Message: "validation request has no buyer embedding"}
	}
	if err := req.Embedding.Validate(); err != nil {
		return CoverageResult{}, err
	}

	for _, cap := range capabilities {
		if cap.Embedding != nil && cap.Embedding.Dimension != req.Embedding.Dimension {
			return CoverageResult{}, &errortypes.DimensionMismatch{
				Message: fmt.Sprintf("buyer embedding dimension %d vs capability %q dimension %d",
					req.Embedding.Dimension, cap.Tag, cap.Embedding.Dimension),
			}
		}
	}

	// Best-match semantics: the score is the maximum similarity across the
	// seller's capability embeddings, not the average.
	offered := make(map[string]ucp.Capability, len(capabilities))
	tagSims := make(map[string]float64, len(capabilities))
	similarity := 0.0
	for _, cap := range capabilities {
		offered[cap.Tag] = cap
		if cap.Embedding == nil {
			continue
		}
		sim := clamp01(cosineSimilarity(req.Embedding.Vector, cap.Embedding.Vector))
		tagSims[cap.Tag] = sim
		if sim > similarity {
			similarity = sim
		}
	}

	matched := make(map[string]bool, len(req.Requested))
	gaps := make([]string, 0)
	matchedWeight, totalWeight := 0.0, 0.0
	for _, want := range req.Requested {
		totalWeight += want.EffectiveWeight()
		cap, ok := offered[want.Tag]
		if !ok {
			gaps = append(gaps, want.Tag)
			continue
		}
		if cap.Embedding != nil && tagSims[want.Tag] < v.cfg.GapThreshold {
			gaps = append(gaps, want.Tag)
			continue
		}
		matched[want.Tag] = true
		matchedWeight += want.EffectiveWeight()
	}

	// Coverage captures "what fraction of the ask can we serve" independent of
	// embedding closeness. With no explicit asks it falls back to similarity.
	coverage := similarity * 100
	if totalWeight > 0 {
		coverage = matchedWeight / totalWeight * 100
	}
	coverage = math.Min(100, math.Max(0, coverage))

	return CoverageResult{
		Status:             v.classify(req, similarity, matched, gaps),
		CoveragePercentage: coverage,
		SimilarityScore:    similarity,
		Gaps:               gaps,
		Alternatives:       rankAlternatives(capabilities, tagSims, matched, gaps),
	}, nil
}

func (v *validator) classify(req Request, similarity float64, matched map[string]bool, gaps []string) Status {
	hasAsks := len(req.Requested) > 0
	if hasAsks && len(matched) == 0 {
		return StatusNoMatch
	}
	if similarity < v.cfg.NoMatchThreshold {
		return StatusNoMatch
	}
	if similarity >= v.cfg.ValidThreshold && len(gaps) == 0 {
		return StatusValid
	}
	return StatusPartialMatch
}

// rankAlternatives suggests the seller capabilities nearest to the buyer's
// embedding for each gapped ask, ranked descending and deduplicated against
// tags already satisfied.
func rankAlternatives(capabilities []ucp.Capability, tagSims map[string]float64, matched map[string]bool, gaps []string) []string {
	if len(gaps) == 0 {
		return nil
	}
	gapSet := make(map[string]bool, len(gaps))
	for _, g := range gaps {
		gapSet[g] = true
	}

	candidates := make([]string, 0, len(capabilities))
	for _, cap := range capabilities {
		if cap.Embedding == nil || matched[cap.Tag] || gapSet[cap.Tag] {
			continue
		}
		candidates = append(candidates, cap.Tag)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return tagSims[candidates[i]] > tagSims[candidates[j]]
	})
	if len(candidates) == 0 {
		return nil
	}
	return candidates
}

func clamp01(f float64) float64 {
	return math.Min(1, math.Max(0, f))
}
