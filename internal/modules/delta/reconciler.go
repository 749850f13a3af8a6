package delta

import (
	"github.com/holdiq/holdiq/internal/domain"
	"github.com/holdiq/holdiq/internal/modules/holdings"
)

// Reconcile aligns two period snapshots by CUSIP, emitting one Pair per
// security that appears in either period. A nil prev snapshot means the
// manager has no prior period; every current position is then treated
// as newly acquired and no closed positions are emitted. Emission order
// is unspecified; consumers sort by whatever key they need.
func Reconcile(prev, curr map[string]holdings.Position) ([]Pair, error) {
	union := make(map[string]struct{}, len(prev)+len(curr))
	for cusip := range prev {
		union[cusip] = struct{}{}
	}
	for cusip := range curr {
		union[cusip] = struct{}{}
	}

	pairs := make([]Pair, 0, len(union))
	for cusip := range union {
		pair := Pair{CUSIP: cusip}
		if pos, ok := prev[cusip]; ok {
			p := pos
			pair.Prev = &p
		}
		if pos, ok := curr[cusip]; ok {
			p := pos
			pair.Curr = &p
		}

		// Self-check: the union construction makes this impossible
		if pair.Prev == nil && pair.Curr == nil {
			return nil, domain.NewInvariantViolation(
				"security %s present in neither side of reconciliation", cusip)
		}

		pairs = append(pairs, pair)
	}

	return pairs, nil
}
