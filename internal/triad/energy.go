package triad

import "math"

// Energy returns the signed cube root of a = -(sij*sik*sjk), computed from
// raw correlation values. Balanced triads (+3, -1) have a positive edge
// product and therefore negative energy; imbalanced triads (+1, -3) have
// positive energy. Any NaN input yields NaN.
func Energy(sij, sik, sjk float64) float64 {
	return math.Cbrt(-(sij * sik * sjk))
}

// PeakSegment replaces a segment's duration payload with its peak |energy|
type PeakSegment struct {
	Segment
	Peak float64 `json:"peak"`
}

// PeakEnergy reduces every run to max(|energy|) over exactly its window range.
// Runs are taken verbatim from segs. A run whose energies are all NaN gets a NaN peak.
func PeakEnergy(segs Segments, energy []float64) []PeakSegment {
	out := make([]PeakSegment, len(segs.Runs))
	for i, run := range segs.Runs {
		peak := math.NaN()
		for w := run.Start; w < run.End() && w < len(energy); w++ {
			e := math.Abs(energy[w])
			if math.IsNaN(e) {
				continue
			}
			if math.IsNaN(peak) || e > peak {
				peak = e
			}
		}
		out[i] = PeakSegment{Segment: run, Peak: peak}
	}
	return out
}
