package delta

import "github.com/holdiq/holdiq/internal/modules/holdings"

// ClassifierConfig controls classification behavior.
type ClassifierConfig struct {
	// UnchangedCategory, when true, gives positions with zero share and
	// zero value change their own "unchanged" label. When false the
	// strict value-direction test applies and a 0/0 change classifies
	// as a decrease.
	UnchangedCategory bool
}

// Classifier assigns a change type to an aligned position pair.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify labels a position pair. Pure function: identical inputs
// always yield identical results.
//
// Rules, in order:
//  1. no previous position, current exists   -> new
//  2. previous exists, no current position   -> closed
//  3. both present: share and value move the same way -> increase/decrease
//  4. directions disagree (price moves, unchanged share counts):
//     classify by value direction alone
func (c *Classifier) Classify(prev, curr *holdings.Position) ChangeType {
	if prev == nil && curr != nil {
		return ChangeNew
	}
	if prev != nil && curr == nil {
		return ChangeClosed
	}

	dShares := curr.Shares - prev.Shares
	dValue := curr.ValueUSD - prev.ValueUSD

	if c.cfg.UnchangedCategory && dShares == 0 && dValue == 0 {
		return ChangeUnchanged
	}

	switch {
	case dShares > 0 && dValue >= 0:
		return ChangeIncrease
	case dShares < 0 && dValue <= 0:
		return ChangeDecrease
	case dValue > 0:
		return ChangeIncrease
	default:
		return ChangeDecrease
	}
}
