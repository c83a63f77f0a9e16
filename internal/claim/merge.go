package claim

import "time"

const (
	// epsilon keeps merged confidence from collapsing to absolute certainty.
	epsilon = 1e-6
	maxConfidence = 1 - epsilon

	// repeatWindow is how soon a repeated mention of the same canonical value
	// must follow to earn the floor boost.
	repeatWindow = 60 * time.Second
	// repeatBoost is added to a repeated observation's confidence before the
	// Bayesian step, capped at repeatBoostCap.
	repeatBoost    = 0.05
	repeatBoostCap = 0.9

	// replaceMargin is how much a challenger confidence must exceed the
	// incumbent's to replace a single-valued attribute outright.
	replaceMargin = 0.10
	// staleAfter is how old an incumbent must be, with lower confidence than
	// the challenger, to be replaced even without clearing replaceMargin.
	staleAfter = 10 * time.Minute
)

// Merge combines a prior confidence p with a new observation q via the
// independent-evidence formula, clamped to [0, 1-epsilon]. If there is no
// prior (hasPrior is false) the new observation is stored as-is.
func Merge(hasPrior bool, p, q float64) float64 {
	if !hasPrior {
		return clampTop(q)
	}
	merged := 1 - (1-p)*(1-q)
	return clampTop(merged)
}

func clampTop(v float64) float64 {
	if v > maxConfidence {
		return maxConfidence
	}
	if v < 0 {
		return 0
	}
	return v
}

// RepeatBoost returns q boosted by the repeated-mention floor increment when
// lastSeen is within repeatWindow of now for the same canonical value;
// otherwise q is returned unchanged.
func RepeatBoost(q float64, lastSeen, now time.Time, sameKey bool) float64 {
	if !sameKey || lastSeen.IsZero() {
		return q
	}
	if now.Sub(lastSeen) > repeatWindow || now.Before(lastSeen) {
		return q
	}
	boosted := q + repeatBoost
	if boosted > repeatBoostCap {
		boosted = repeatBoostCap
	}
	if boosted < q {
		return q
	}
	return boosted
}

// ShouldReplaceSingleValued decides whether a challenger confidence/time
// should replace the incumbent confidence/time for a single-valued attribute
// (incident_type, people_estimate, device_location): the challenger must
// exceed the incumbent by at least replaceMargin, or the incumbent must be
// older than staleAfter and less confident than the challenger.
func ShouldReplaceSingleValued(incumbentConfidence float64, incumbentTime time.Time, challengerConfidence float64, now time.Time) bool {
	if challengerConfidence-incumbentConfidence >= replaceMargin {
		return true
	}
	if now.Sub(incumbentTime) > staleAfter && challengerConfidence > incumbentConfidence {
		return true
	}
	return false
}
