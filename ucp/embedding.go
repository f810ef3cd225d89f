// Package ucp holds the decoded structures of the IAB Tech Lab User Context
// Protocol audience exchange: embeddings encoding identity and contextual
// signals, and the audience capabilities a seller publishes per product.
//
// Content negotiation and transport are out of scope; only decoded values cross
// into the validator.
package ucp

import (
	"fmt"

	"github.com/agentrange/deal-server/errortypes"
)

// Embedding dimensions permitted on the wire.
const (
	MinDimension = 256
	MaxDimension = 1024
)

// EmbeddingType tags what an embedding encodes.
type EmbeddingType string

const (
	EmbeddingContext    EmbeddingType = "context"
	EmbeddingCreative   EmbeddingType = "creative"
	EmbeddingUserIntent EmbeddingType = "user_intent"
	EmbeddingInventory  EmbeddingType = "inventory"
	EmbeddingQuery      EmbeddingType = "query"
)

// Embedding is the core payload exchanged between buyer and seller.
type Embedding struct {
	EmbeddingType EmbeddingType `json:"embeddingType" yaml:"embedding_type"`
	Vector        []float64     `json:"vector" yaml:"vector"`
	Dimension     int           `json:"dimension" yaml:"dimension"`
}

// Validate checks the structural invariants of a decoded embedding.
func (e *Embedding) Validate() error {
	if e.Dimension < MinDimension || e.Dimension > MaxDimension {
		return &errortypes.BadInput{
			Message: fmt.Sprintf("embedding dimension %d outside [%d,%d]", e.Dimension, MinDimension, MaxDimension),
		}
	}
	if len(e.Vector) != e.Dimension {
		return &errortypes.BadInput{
			Message: fmt.Sprintf("embedding vector length %d does not match dimension %d", len(e.Vector), e.Dimension),
		}
	}
	return nil
}

// Capability describes one audience capability a seller offers for a product,
// with a representative embedding in the shared space. Weight is advisory for
// coverage math; non-positive weights are read as 1.
type Capability struct {
	Tag       string     `json:"tag" yaml:"tag"`
	Weight    float64    `json:"weight,omitempty" yaml:"weight,omitempty"`
	Embedding *Embedding `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// CapabilityRequest is one capability tag a buyer asks for, with an optional
// weight expressing how much of the ask it represents.
type CapabilityRequest struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight,omitempty"`
}

// EffectiveWeight normalizes a requested weight, defaulting to 1.
func (r CapabilityRequest) EffectiveWeight() float64 {
	if r.Weight <= 0 {
		return 1
	}
	return r.Weight
}
