// Package triad classifies signed triangles of a connectivity series over
// time, run-length encodes their codes and reduces runs to peak energy.
package triad

import (
	"context"
	"math"
	"runtime"

	"triadbalance/domain/balance"
	"triadbalance/internal/connectivity"
	"triadbalance/internal/errors"

	"golang.org/x/sync/errgroup"
)

// Options configures Classify
type Options struct {
	// Workers bounds the triangle worker pool; <= 0 means GOMAXPROCS
	Workers int
	// KeepZeroSigns stores triangles with a zero edge as balance.ZeroSign
	// codes instead of Undefined. Those codes are never canonical.
	KeepZeroSigns bool
	// MinAbs treats |r| < MinAbs as a zero sign (sparsification). Energy is unaffected.
	MinAbs float64
}

// Tensor holds codes and raw energy for every triangle i<j<k, indexed by
// position in Triangles.
type Tensor struct {
	ROIs      int
	Windows   int
	Triangles []balance.Triangle
	Codes     [][]balance.Code
	Energy    [][]float64

	index map[balance.Triangle]int
}

// Index returns the position of a triangle in the tensor
func (t *Tensor) Index(tr balance.Triangle) (int, bool) {
	i, ok := t.index[tr]
	return i, ok
}

// Lifetimes run-length encodes every triangle's code sequence
func (t *Tensor) Lifetimes(dropUndefined bool) []Segments {
	out := make([]Segments, len(t.Triangles))
	for i, codes := range t.Codes {
		out[i] = Encode(codes, dropUndefined)
	}
	return out
}

// Peaks reduces each triangle's segments to peak absolute energy
func (t *Tensor) Peaks(lifetimes []Segments) [][]PeakSegment {
	out := make([][]PeakSegment, len(lifetimes))
	for i, segs := range lifetimes {
		out[i] = PeakEnergy(segs, t.Energy[i])
	}
	return out
}

// Sign maps a connectivity value to -1, 0 or +1. Values with |v| < minAbs count as 0.
func Sign(v, minAbs float64) int {
	if math.Abs(v) < minAbs {
		return 0
	}
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// CodeOf classifies one triangle in one window from its three edge values
func CodeOf(sij, sik, sjk float64, opts Options) balance.Code {
	if math.IsNaN(sij) || math.IsNaN(sik) || math.IsNaN(sjk) {
		return balance.Undefined
	}
	a, b, c := Sign(sij, opts.MinAbs), Sign(sik, opts.MinAbs), Sign(sjk, opts.MinAbs)
	if a == 0 || b == 0 || c == 0 {
		if !opts.KeepZeroSigns {
			return balance.Undefined
		}
		return balance.ZeroSign(a + b + c)
	}
	return balance.Code(a + b + c)
}

// ClassifyTriangle returns the code and energy sequences of a single triangle
func ClassifyTriangle(series *connectivity.Series, tr balance.Triangle, opts Options) ([]balance.Code, []float64) {
	codes := make([]balance.Code, series.Len())
	energy := make([]float64, series.Len())
	fillTriangle(series, tr, opts, codes, energy)
	return codes, energy
}

func fillTriangle(series *connectivity.Series, tr balance.Triangle, opts Options, codes []balance.Code, energy []float64) {
	for w, m := range series.Windows {
		sij, sik, sjk := m.At(tr.I, tr.J), m.At(tr.I, tr.K), m.At(tr.J, tr.K)
		codes[w] = CodeOf(sij, sik, sjk, opts)
		energy[w] = Energy(sij, sik, sjk)
	}
}

// Validate checks that a series can be enumerated into triangles
func Validate(series *connectivity.Series) error {
	if series == nil || series.Len() == 0 {
		return errors.InvalidShape("connectivity series is empty")
	}
	if series.ROIs < 3 {
		return errors.InvalidShape("triad enumeration needs at least 3 regions, got %d", series.ROIs)
	}
	for w, m := range series.Windows {
		if m == nil || m.SymmetricDim() != series.ROIs {
			return errors.InvalidShape("connectivity window %d does not match %d regions", w, series.ROIs)
		}
	}
	return nil
}

// Classify enumerates every triangle and fills codes and raw energy in one pass.
// Triangles are processed in chunks by a bounded worker pool; each triangle
// writes only its own slots.
func Classify(ctx context.Context, series *connectivity.Series, opts Options) (*Tensor, error) {
	if err := Validate(series); err != nil {
		return nil, err
	}

	tris := balance.Triangles(series.ROIs)
	t := &Tensor{
		ROIs:      series.ROIs,
		Windows:   series.Len(),
		Triangles: tris,
		Codes:     make([][]balance.Code, len(tris)),
		Energy:    make([][]float64, len(tris)),
		index:     make(map[balance.Triangle]int, len(tris)),
	}
	for i, tr := range tris {
		t.index[tr] = i
		t.Codes[i] = make([]balance.Code, t.Windows)
		t.Energy[i] = make([]float64, t.Windows)
	}

	err := ForEachChunk(ctx, len(tris), opts.Workers, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			fillTriangle(series, tris[i], opts, t.Codes[i], t.Energy[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ForEachChunk splits [0, n) into chunks and runs fn on them with at most
// workers goroutines. It stops scheduling once ctx is cancelled or fn fails.
func ForEachChunk(ctx context.Context, n, workers int, fn func(ctx context.Context, lo, hi int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := n / (workers * 4)
	if chunk < 1 {
		chunk = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		if gctx.Err() != nil {
			break
		}
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
