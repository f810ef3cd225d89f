package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrange/deal-server/errortypes"
	"github.com/agentrange/deal-server/ucp"
)

// axisEmbedding builds a dim-sized embedding with the given components set,
// all other components zero.
func axisEmbedding(dim int, components map[int]float64) *ucp.Embedding {
	vector := make([]float64, dim)
	for i, v := range components {
		vector[i] = v
	}
	return &ucp.Embedding{
		EmbeddingType: ucp.EmbeddingQuery,
		Vector:        vector,
		Dimension:     dim,
	}
}

func capability(tag string, emb *ucp.Embedding) ucp.Capability {
	return ucp.Capability{Tag: tag, Embedding: emb}
}

func asks(tags ...string) []ucp.CapabilityRequest {
	reqs := make([]ucp.CapabilityRequest, 0, len(tags))
	for _, tag := range tags {
		reqs = append(reqs, ucp.CapabilityRequest{Tag: tag})
	}
	return reqs
}

func TestValidateDimensionMismatch(t *testing.T) {
	v := NewValidator(DefaultConfig())

	_, err := v.Validate(
		Request{Embedding: axisEmbedding(300, map[int]float64{0: 1})},
		[]ucp.Capability{capability("ctx", axisEmbedding(512, map[int]float64{0: 1}))},
	)

	require.Error(t, err)
	assert.IsType(t, &errortypes.DimensionMismatch{}, err)
	assert.Equal(t, errortypes.DimensionMismatchErrorCode, errortypes.ReadCode(err))
}

func TestValidateRejectsMalformedEmbedding(t *testing.T) {
	v := NewValidator(DefaultConfig())

	short := &ucp.Embedding{EmbeddingType: ucp.EmbeddingQuery, Vector: make([]float64, 100), Dimension: 100}
	_, err := v.Validate(Request{Embedding: short}, nil)
	require.Error(t, err)
	assert.IsType(t, &errortypes.BadInput{}, err)

	_, err = v.Validate(Request{}, nil)
	require.Error(t, err)
	assert.IsType(t, &errortypes.BadInput{}, err)
}

func TestValidateFullMatch(t *testing.T) {
	v := NewValidator(DefaultConfig())

	result, err := v.Validate(
		Request{
			Embedding: axisEmbedding(256, map[int]float64{0: 1}),
			Requested: asks("ctx"),
		},
		[]ucp.Capability{
			capability("ctx", axisEmbedding(256, map[int]float64{0: 1})),
			capability("geo", axisEmbedding(256, map[int]float64{1: 1})),
		},
	)

	require.NoError(t, err)
	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, 100.0, result.CoveragePercentage)
	assert.InDelta(t, 1.0, result.SimilarityScore, 1e-9)
	assert.Empty(t, result.Gaps)
	assert.Empty(t, result.Alternatives)
}

func TestValidatePartialMatchWithGapsAndAlternatives(t *testing.T) {
	v := NewValidator(DefaultConfig())

	result, err := v.Validate(
		Request{
			Embedding: axisEmbedding(256, map[int]float64{0: 1}),
			Requested: asks("ctx", "audio"),
		},
		[]ucp.Capability{
			capability("ctx", axisEmbedding(256, map[int]float64{0: 1})),
			capability("geo", axisEmbedding(256, map[int]float64{0: 1, 1: 1})),
			capability("demo", axisEmbedding(256, map[int]float64{1: 1})),
		},
	)

	require.NoError(t, err)
	assert.Equal(t, StatusPartialMatch, result.Status)
	assert.Equal(t, 50.0, result.CoveragePercentage)
	assert.Equal(t, []string{"audio"}, result.Gaps)
	// Nearest capabilities first, satisfied tags excluded.
	assert.Equal(t, []string{"geo", "demo"}, result.Alternatives)
}

func TestValidateWeightedCoverage(t *testing.T) {
	v := NewValidator(DefaultConfig())

	result, err := v.Validate(
		Request{
			Embedding: axisEmbedding(256, map[int]float64{0: 1}),
			Requested: []ucp.CapabilityRequest{
				{Tag: "ctx", Weight: 3},
				{Tag: "audio", Weight: 1},
			},
		},
		[]ucp.Capability{capability("ctx", axisEmbedding(256, map[int]float64{0: 1}))},
	)

	require.NoError(t, err)
	assert.Equal(t, 75.0, result.CoveragePercentage)
}

func TestValidateNoMatch(t *testing.T) {
	v := NewValidator(DefaultConfig())

	result, err := v.Validate(
		Request{
			Embedding: axisEmbedding(256, map[int]float64{0: 1}),
			Requested: asks("audio"),
		},
		[]ucp.Capability{capability("demo", nil)},
	)

	require.NoError(t, err)
	assert.Equal(t, StatusNoMatch, result.Status)
	assert.Equal(t, 0.0, result.CoveragePercentage)
	assert.Equal(t, []string{"audio"}, result.Gaps)
	assert.Empty(t, result.Alternatives, "capabilities without embeddings cannot be suggested")
}

func TestValidateMidRangeSimilarityIsPartial(t *testing.T) {
	v := NewValidator(DefaultConfig())

	// cos(angle) = 1/sqrt(5) ~= 0.447: between the no-match and valid thresholds.
	result, err := v.Validate(
		Request{Embedding: axisEmbedding(256, map[int]float64{0: 1, 1: 2})},
		[]ucp.Capability{capability("ctx", axisEmbedding(256, map[int]float64{0: 1}))},
	)

	require.NoError(t, err)
	assert.Equal(t, StatusPartialMatch, result.Status)
	assert.InDelta(t, 0.447, result.SimilarityScore, 0.001)
	assert.InDelta(t, 44.7, result.CoveragePercentage, 0.1)
}

func TestValidateNegativeSimilarityClampsToZero(t *testing.T) {
	v := NewValidator(DefaultConfig())

	result, err := v.Validate(
		Request{Embedding: axisEmbedding(256, map[int]float64{0: 1})},
		[]ucp.Capability{capability("ctx", axisEmbedding(256, map[int]float64{0: -1}))},
	)

	require.NoError(t, err)
	assert.Equal(t, StatusNoMatch, result.Status)
	assert.Equal(t, 0.0, result.SimilarityScore)
}

func TestValidateBoundsAlwaysHold(t *testing.T) {
	v := NewValidator(DefaultConfig())

	requests := []Request{
		{Embedding: axisEmbedding(256, map[int]float64{0: 1})},
		{Embedding: axisEmbedding(256, map[int]float64{0: 1}), Requested: asks("a", "b", "c")},
		{Embedding: axisEmbedding(256, map[int]float64{5: -3, 9: 2})},
	}
	capabilities := [][]ucp.Capability{
		nil,
		{capability("a", axisEmbedding(256, map[int]float64{0: 1}))},
		{capability("x", axisEmbedding(256, map[int]float64{5: 1})), capability("y", nil)},
	}

	for _, req := range requests {
		for _, caps := range capabilities {
			result, err := v.Validate(req, caps)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, result.CoveragePercentage, 0.0)
			assert.LessOrEqual(t, result.CoveragePercentage, 100.0)
			assert.GreaterOrEqual(t, result.SimilarityScore, 0.0)
			assert.LessOrEqual(t, result.SimilarityScore, 1.0)
		}
	}
}

func TestNotRequestedSentinel(t *testing.T) {
	sentinel := NotRequested()
	assert.Equal(t, StatusNotRequested, sentinel.Status)
	assert.Zero(t, sentinel.CoveragePercentage)
	assert.Zero(t, sentinel.SimilarityScore)
}
