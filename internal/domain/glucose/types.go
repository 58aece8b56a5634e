package glucose

// Flag marks a clinically relevant pattern found in a glucose series.
type Flag string

const (
	FlagSpike           Flag = "Spike"
	FlagCrash           Flag = "Crash"
	FlagHighVariability Flag = "High Variability"
)

// Result is the stability summary of a glucose series.
type Result struct {
	StabilityScore float64 `json:"stabilityScore"`
	Flags          []Flag  `json:"flags"`
}

// HasFlag reports whether f was raised.
func (r Result) HasFlag(f Flag) bool {
	for _, got := range r.Flags {
		if got == f {
			return true
		}
	}
	return false
}

// Thresholds holds the clinical cut-offs in mg/dL.
type Thresholds struct {
	SpikeAbove       float64
	CrashBelow       float64
	VariabilityAbove float64
	// StdDevPenalty is the number of stability points lost per mg/dL of deviation.
	StdDevPenalty float64
}

// DefaultThresholds are the cut-offs used by Analyze.
var DefaultThresholds = Thresholds{
	SpikeAbove:       180,
	CrashBelow:       70,
	VariabilityAbove: 25,
	StdDevPenalty:    2,
}
