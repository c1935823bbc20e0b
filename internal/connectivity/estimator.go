// Package connectivity turns a region-by-time matrix into a sequence of
// sliding-window correlation matrices.
package connectivity

import (
	"math"
	"strings"

	"triadbalance/internal/errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Method selects the correlation estimator
type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
)

// MissingPolicy selects how NaN samples inside a window are handled
type MissingPolicy string

const (
	// PairwiseComplete correlates each pair over the samples where both are finite
	PairwiseComplete MissingPolicy = "pairwise"
	// CompleteCase drops every timepoint with any NaN region before correlating
	CompleteCase MissingPolicy = "complete"
)

// ParseMethod parses a method name; empty means pearson
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodPearson:
		return MethodPearson, nil
	case MethodSpearman:
		return MethodSpearman, nil
	}
	return "", errors.InvalidParameter("unknown correlation method %q", s)
}

// ParseMissingPolicy parses a missing-value policy; empty means pairwise
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PairwiseComplete:
		return PairwiseComplete, nil
	case CompleteCase:
		return CompleteCase, nil
	}
	return "", errors.InvalidParameter("unknown missing-value policy %q", s)
}

// ProgressFunc is called every ProgressEvery windows and once at the end
type ProgressFunc func(done, total int)

// Options configures Estimate
type Options struct {
	WindowLength  int
	Method        Method
	Missing       MissingPolicy
	ProgressEvery int
	Progress      ProgressFunc
}

// DefaultOptions returns pearson, pairwise-complete, no progress hook
func DefaultOptions(windowLength int) Options {
	return Options{
		WindowLength:  windowLength,
		Method:        MethodPearson,
		Missing:       PairwiseComplete,
		ProgressEvery: 100,
	}
}

// Series is the window × ROI × ROI connectivity tensor
type Series struct {
	Windows      []*mat.SymDense
	ROIs         int
	WindowLength int
}

// NewSeries wraps precomputed connectivity matrices, checking they share one size
func NewSeries(windows []*mat.SymDense) (*Series, error) {
	if len(windows) == 0 {
		return nil, errors.InvalidShape("connectivity series has no windows")
	}
	n := windows[0].SymmetricDim()
	for w, m := range windows {
		if m == nil {
			return nil, errors.InvalidShape("connectivity window %d is nil", w)
		}
		if m.SymmetricDim() != n {
			return nil, errors.InvalidShape("connectivity window %d is %dx%d, want %dx%d",
				w, m.SymmetricDim(), m.SymmetricDim(), n, n)
		}
	}
	return &Series{Windows: windows, ROIs: n}, nil
}

// Len returns the number of windows
func (s *Series) Len() int {
	return len(s.Windows)
}

// At returns the connectivity between regions i and j in window w
func (s *Series) At(w, i, j int) float64 {
	return s.Windows[w].At(i, j)
}

// NumWindows returns how many windows of length wl fit into nTime samples
func NumWindows(nTime, wl int) int {
	if wl < 1 || wl >= nTime {
		return 0
	}
	return nTime - wl
}

// FromRows builds a ROI × time matrix from row slices, rejecting ragged or empty input
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidShape("time series has no regions")
	}
	nTime := len(rows[0])
	if nTime == 0 {
		return nil, errors.InvalidShape("time series has no timepoints")
	}
	data := make([]float64, 0, len(rows)*nTime)
	for r, row := range rows {
		if len(row) != nTime {
			return nil, errors.InvalidShape("region %d has %d timepoints, want %d", r, len(row), nTime)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), nTime, data), nil
}

// Estimate computes one correlation matrix per sliding window. Window t
// covers timepoints t..t+WindowLength inclusive, so a series of T samples
// yields T-WindowLength windows.
func Estimate(ts mat.Matrix, opts Options) (*Series, error) {
	if ts == nil {
		return nil, errors.InvalidShape("time series matrix is nil")
	}
	nROI, nTime := ts.Dims()
	if nROI == 0 || nTime == 0 {
		return nil, errors.InvalidShape("time series matrix is %dx%d", nROI, nTime)
	}
	if opts.WindowLength < 2 {
		return nil, errors.InvalidParameter("window length %d must be at least 2", opts.WindowLength)
	}
	if opts.WindowLength >= nTime {
		return nil, errors.InvalidParameter("window length %d must be smaller than series length %d",
			opts.WindowLength, nTime)
	}
	if opts.Method == "" {
		opts.Method = MethodPearson
	}
	if opts.Missing == "" {
		opts.Missing = PairwiseComplete
	}
	if _, err := ParseMethod(string(opts.Method)); err != nil {
		return nil, err
	}
	if _, err := ParseMissingPolicy(string(opts.Missing)); err != nil {
		return nil, err
	}

	rows := make([][]float64, nROI)
	for r := range rows {
		rows[r] = mat.Row(nil, r, ts)
	}

	total := NumWindows(nTime, opts.WindowLength)
	out := &Series{
		Windows:      make([]*mat.SymDense, total),
		ROIs:         nROI,
		WindowLength: opts.WindowLength,
	}

	window := make([][]float64, nROI)
	for t := 0; t < total; t++ {
		for r := range rows {
			window[r] = rows[r][t : t+opts.WindowLength+1]
		}
		out.Windows[t] = correlate(window, opts.Method, opts.Missing)

		if opts.Progress != nil {
			done := t + 1
			if done == total || (opts.ProgressEvery > 0 && done%opts.ProgressEvery == 0) {
				opts.Progress(done, total)
			}
		}
	}

	return out, nil
}

// correlate builds the ROI × ROI matrix for one window
func correlate(window [][]float64, method Method, policy MissingPolicy) *mat.SymDense {
	n := len(window)
	if policy == CompleteCase {
		window = completeCases(window)
	}

	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, selfCorrelation(window[i]))
		for j := i + 1; j < n; j++ {
			x, y := finitePairs(window[i], window[j])
			if method == MethodSpearman {
				x, y = ranks(x), ranks(y)
			}
			m.SetSym(i, j, pearson(x, y))
		}
	}
	return m
}

// completeCases keeps only timepoints where every region is finite
func completeCases(window [][]float64) [][]float64 {
	if len(window) == 0 {
		return window
	}
	keep := make([]int, 0, len(window[0]))
	for t := range window[0] {
		ok := true
		for _, row := range window {
			if !isFinite(row[t]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, t)
		}
	}
	if len(keep) == len(window[0]) {
		return window
	}

	out := make([][]float64, len(window))
	for r, row := range window {
		out[r] = make([]float64, len(keep))
		for i, t := range keep {
			out[r][i] = row[t]
		}
	}
	return out
}

func finitePairs(a, b []float64) ([]float64, []float64) {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for t := range a {
		if isFinite(a[t]) && isFinite(b[t]) {
			x = append(x, a[t])
			y = append(y, b[t])
		}
	}
	return x, y
}

// selfCorrelation is 1 for a region with usable variance, NaN otherwise
func selfCorrelation(row []float64) float64 {
	vals := make([]float64, 0, len(row))
	for _, v := range row {
		if isFinite(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 || stat.Variance(vals, nil) == 0 {
		return math.NaN()
	}
	return 1
}

// pearson returns NaN for fewer than two samples or zero variance
func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	r := stat.Correlation(x, y, nil)
	return math.Max(-1, math.Min(1, r))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
