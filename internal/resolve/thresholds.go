package resolve

const (
	DefaultAccept         = 0.75
	DefaultClarify        = 0.60
	DefaultAmbiguityDelta = 0.05
)

// Thresholds drive the confidence gates. Scores at or above Accept resolve
// without a prompt; scores in [Clarify, Accept) ask first.
type Thresholds struct {
	Accept         float64
	Clarify        float64
	AmbiguityDelta float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Accept: DefaultAccept, Clarify: DefaultClarify, AmbiguityDelta: DefaultAmbiguityDelta}
}

// Normalize fills a zero value with defaults and keeps Clarify <= Accept
// and AmbiguityDelta >= 0.
func (t Thresholds) Normalize() Thresholds {
	if t == (Thresholds{}) {
		return DefaultThresholds()
	}
	if t.Clarify > t.Accept {
		t.Clarify = t.Accept
	}
	if t.AmbiguityDelta < 0 {
		t.AmbiguityDelta = 0
	}
	return t
}
