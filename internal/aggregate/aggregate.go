// Package aggregate pools per-segment values (lifetimes or peak energies)
// across triangles by triad code.
//
// The pooled mean flattens every matching segment of every qualifying
// triangle into one sample and averages it, so a triangle contributes once
// per segment. It is not a mean of per-triangle means.
package aggregate

import (
	"math"
	"sort"

	"triadbalance/domain/balance"
	"triadbalance/internal/errors"
	"triadbalance/internal/triad"

	"github.com/montanaflynn/stats"
)

// MinSubnetworkSize is the smallest ROI subset that contains a triangle
const MinSubnetworkSize = 3

// Sample is one segment's value tagged with its code
type Sample struct {
	Code  balance.Code
	Value float64
}

// Item is one triangle and its segment samples
type Item struct {
	Triangle balance.Triangle
	Samples  []Sample
}

// FromLifetimes turns run lengths into samples
func FromLifetimes(tris []balance.Triangle, lifetimes []triad.Segments) []Item {
	items := make([]Item, len(tris))
	for i, tr := range tris {
		items[i] = LifetimeItem(tr, lifetimes[i])
	}
	return items
}

// LifetimeItem builds the lifetime samples of one triangle
func LifetimeItem(tr balance.Triangle, segs triad.Segments) Item {
	samples := make([]Sample, len(segs.Runs))
	for j, run := range segs.Runs {
		samples[j] = Sample{Code: run.Code, Value: float64(run.Length)}
	}
	return Item{Triangle: tr, Samples: samples}
}

// FromPeaks turns peak energies into samples
func FromPeaks(tris []balance.Triangle, peaks [][]triad.PeakSegment) []Item {
	items := make([]Item, len(tris))
	for i, tr := range tris {
		items[i] = PeakItem(tr, peaks[i])
	}
	return items
}

// PeakItem builds the peak-energy samples of one triangle
func PeakItem(tr balance.Triangle, peaks []triad.PeakSegment) Item {
	samples := make([]Sample, len(peaks))
	for j, p := range peaks {
		samples[j] = Sample{Code: p.Code, Value: p.Peak}
	}
	return Item{Triangle: tr, Samples: samples}
}

// Stat summarizes the pooled sample of one code. Valid is false when no
// finite sample was observed; the numeric fields are NaN in that case.
type Stat struct {
	Code   balance.Code
	N      int
	Mean   float64
	Median float64
	StdDev float64
	Valid  bool
}

// Result holds one Stat per canonical code in balance.Canonical order
type Result struct {
	Stats [4]Stat
}

// Get returns the stat of a canonical code
func (r Result) Get(c balance.Code) (Stat, bool) {
	i := c.Index()
	if i < 0 {
		return Stat{}, false
	}
	return r.Stats[i], true
}

// Mean returns the pooled mean of a code, NaN when missing
func (r Result) Mean(c balance.Code) float64 {
	s, ok := r.Get(c)
	if !ok || !s.Valid {
		return math.NaN()
	}
	return s.Mean
}

// Missing returns an all-missing result
func Missing() Result {
	var r Result
	for i, c := range balance.Canonical {
		r.Stats[i] = missingStat(c)
	}
	return r
}

func missingStat(c balance.Code) Stat {
	nan := math.NaN()
	return Stat{Code: c, Mean: nan, Median: nan, StdDev: nan}
}

// WholeBrain pools every triangle. With no codes, all four canonical codes are summarized.
func WholeBrain(items []Item, codes ...balance.Code) (Result, error) {
	acc, err := NewAccumulator(codes...)
	if err != nil {
		return Result{}, err
	}
	for _, it := range items {
		acc.Add(it)
	}
	return acc.Result(), nil
}

// Subnetwork pools only triangles whose three vertices are all in rois.
// rois are 0-based indices into [0, nROI). Fewer than MinSubnetworkSize
// distinct ROIs yields an all-missing result without error.
func Subnetwork(items []Item, rois []int, nROI int, codes ...balance.Code) (Result, error) {
	set, err := ROISet(rois, nROI)
	if err != nil {
		return Result{}, err
	}
	acc, err := NewAccumulator(codes...)
	if err != nil {
		return Result{}, err
	}
	if len(set) < MinSubnetworkSize {
		return Missing(), nil
	}
	for _, it := range items {
		if it.Triangle.Within(set) {
			acc.Add(it)
		}
	}
	return acc.Result(), nil
}

// ROISet validates ROI indices and returns them as a set
func ROISet(rois []int, nROI int) (map[int]bool, error) {
	set := make(map[int]bool, len(rois))
	for _, r := range rois {
		if r < 0 || r >= nROI {
			return nil, errors.InvalidParameter("subnetwork ROI index %d out of range [0, %d)", r, nROI)
		}
		set[r] = true
	}
	return set, nil
}

// SortedROIs returns the distinct ROIs of a set in ascending order
func SortedROIs(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

func summarize(c balance.Code, data []float64) Stat {
	st := missingStat(c)
	mean, err := stats.Mean(data)
	if err != nil {
		return st
	}
	st.N = len(data)
	st.Mean = mean
	st.Valid = true
	if median, err := stats.Median(data); err == nil {
		st.Median = median
	}
	if sd, err := stats.StandardDeviation(data); err == nil {
		st.StdDev = sd
	}
	return st
}
