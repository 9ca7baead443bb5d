package analyzer

import "testing"

func TestConfidenceGate(t *testing.T) {
	gate := DefaultConfidenceGate()

	tests := []struct {
		name    string
		probs   []float64
		trusted bool
		unknown bool
	}{
		{"confident", []float64{0.1, 0.85, 0.05}, true, false},
		{"between gates", []float64{0.55, 0.45}, false, false},
		{"at trust gate", []float64{0.60, 0.40}, true, false},
		{"below unknown gate", []float64{0.4, 0.3, 0.3}, false, true},
		{"empty", nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := gate.Trusted(tt.probs); got != tt.trusted {
				t.Errorf("Trusted = %v, want %v", got, tt.trusted)
			}
			if got, _ := gate.Unknown(tt.probs); got != tt.unknown {
				t.Errorf("Unknown = %v, want %v", got, tt.unknown)
			}
		})
	}
}

func TestConfidenceGate_Independent(t *testing.T) {
	probs := []float64{0.7, 0.3}

	strict := ConfidenceGate{TrustThreshold: 0.9, UnknownThreshold: 0.5}
	if ok, _ := strict.Trusted(probs); ok {
		t.Error("Expected raised trust gate to reject 0.7")
	}
	if unknown, _ := strict.Unknown(probs); unknown {
		t.Error("Expected unknown gate unaffected by trust gate")
	}

	picky := ConfidenceGate{TrustThreshold: 0.6, UnknownThreshold: 0.8}
	if ok, p := picky.Trusted(probs); !ok || p != 0.7 {
		t.Errorf("Expected trusted 0.7, got %v %v", ok, p)
	}
	if unknown, _ := picky.Unknown(probs); !unknown {
		t.Error("Expected raised unknown gate to flag 0.7")
	}
}

func TestArgmax(t *testing.T) {
	if got := Argmax(nil); got != -1 {
		t.Errorf("Argmax(nil) = %d", got)
	}
	if got := Argmax([]float64{0.2, 0.5, 0.5, 0.1}); got != 1 {
		t.Errorf("Expected first maximum, got %d", got)
	}
}
