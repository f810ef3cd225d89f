package deals

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"
)

const idSlugMax = 8

// IDGenerator synthesizes deal identifiers for accepted proposals.
//
// The format is {SELLER}-{PRODUCT}-{TIMEBUCKET}-{COUNTER}-{ENTROPY}: opaque but
// parseable by downstream DSPs, alphanumeric segments only, no embedded PII.
// The monotonic counter keeps identical inputs from colliding across concurrent
// proposals in the same time bucket; the uuid segment guards against collisions
// across server instances.
type IDGenerator struct {
	counter uint64
}

// NewIDGenerator builds an IDGenerator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Generate returns a new deal identifier.
func (g *IDGenerator) Generate(sellerOrgID string, productID string, ts time.Time) string {
	n := atomic.AddUint64(&g.counter, 1)

	entropy := "00000000"
	if id, err := uuid.NewV4(); err == nil {
		entropy = strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	} else {
		glog.Errorf("Deal ID entropy generation failed, falling back to counter only: %v", err)
	}

	return strings.Join([]string{
		idSlug(sellerOrgID),
		idSlug(productID),
		strings.ToUpper(strconv.FormatInt(ts.Unix(), 16)),
		fmt.Sprintf("%06X", n),
		entropy,
	}, "-")
}

// idSlug reduces an identifier to an uppercase alphanumeric segment.
func idSlug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == idSlugMax {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}
