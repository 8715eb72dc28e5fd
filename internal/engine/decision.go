package engine

import "github.com/hayatoko/frarb/internal/domain"

// Classify maps a net margin in basis points to a keep/watch/close verdict.
// At or above keepMarginBps the position comfortably pays for itself; between
// zero and the threshold it is still profitable but thin; below zero the
// differential no longer covers the round-trip costs.
func Classify(marginBps, keepMarginBps float64) domain.Decision {
	switch {
	case marginBps >= keepMarginBps:
		return domain.DecisionKeep
	case marginBps >= 0:
		return domain.DecisionWatch
	default:
		return domain.DecisionClose
	}
}
