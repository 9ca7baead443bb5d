package analyzer

// ConfidenceGate holds the two independent cut-offs applied to a class
// probability vector. TrustThreshold decides whether a specific label is
// shown with confidence; UnknownThreshold decides whether the plant is in
// the known set at all.
type ConfidenceGate struct {
	TrustThreshold   float64
	UnknownThreshold float64
}

// DefaultConfidenceGate returns the 0.60 trust and 0.50 unknown gates.
func DefaultConfidenceGate() ConfidenceGate {
	return ConfidenceGate{TrustThreshold: 0.60, UnknownThreshold: 0.50}
}

// Trusted reports whether the top probability reaches TrustThreshold.
func (g ConfidenceGate) Trusted(probs []float64) (bool, float64) {
	m := maxProbability(probs)
	return m >= g.TrustThreshold && len(probs) > 0, m
}

// Unknown reports whether the top probability falls below UnknownThreshold.
// An empty vector is always unknown.
func (g ConfidenceGate) Unknown(probs []float64) (bool, float64) {
	m := maxProbability(probs)
	return m < g.UnknownThreshold || len(probs) == 0, m
}

// Argmax returns the index of the top probability, or -1 for an empty vector.
func Argmax(probs []float64) int {
	best := -1
	for i, p := range probs {
		if best < 0 || p > probs[best] {
			best = i
		}
	}
	return best
}

func maxProbability(probs []float64) float64 {
	if i := Argmax(probs); i >= 0 {
		return probs[i]
	}
	return 0
}
