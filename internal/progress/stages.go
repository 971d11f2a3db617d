package progress

import "time"

// Stage is one step in the synthetic progress sequence. The sequence is
// static; the only mutable state is the current ordinal and elapsed time,
// owned by the Simulator for the lifetime of one job.
type Stage struct {
	Label    string
	Expected time.Duration
	Ordinal  int
}

// DefaultStages is the schedule shown while the real inference call is an
// opaque long poll. The labels are plausible, not ground truth; the last
// stage has no expected duration and holds until the call returns.
func DefaultStages() []Stage {
	return []Stage{
		{Label: "Uploading your photos", Expected: 5 * time.Second, Ordinal: 0},
		{Label: "Analyzing the garment", Expected: 15 * time.Second, Ordinal: 1},
		{Label: "Mapping body pose", Expected: 20 * time.Second, Ordinal: 2},
		{Label: "Draping the garment", Expected: 45 * time.Second, Ordinal: 3},
		{Label: "Rendering final details", Expected: 0, Ordinal: 4},
	}
}
