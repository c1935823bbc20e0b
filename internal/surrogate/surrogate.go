// Package surrogate builds phase-randomized null time series that keep each
// region's amplitude spectrum while destroying its temporal structure.
package surrogate

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"triadbalance/internal/errors"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PhaseRandomize returns a surrogate of x with the same amplitude spectrum.
//
// The real FFT stores only the non-negative half of the spectrum, so the
// negative frequencies are implicitly the conjugates of the positive ones and
// the inverse is real. The DC term is kept. Every positive frequency gets a
// phase drawn uniformly from (-π, π]. For even lengths the Nyquist term must
// stay real to keep the inverse real, so its drawn phase is snapped to 0 or π
// (a random sign), which keeps its magnitude. Series shorter than 2 are copied.
func PhaseRandomize(x []float64, src rand.Source) []float64 {
	n := len(x)
	out := make([]float64, n)
	copy(out, x)
	if n < 2 {
		return out
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, x)

	phase := distuv.Uniform{Min: -math.Pi, Max: math.Pi, Src: src}
	nyquist := -1
	if n%2 == 0 {
		nyquist = n / 2
	}

	for k := 1; k < len(coeff); k++ {
		mag := cmplx.Abs(coeff[k])
		// Uniform draws from [-π, π); negating gives (-π, π]
		phi := -phase.Rand()
		if k == nyquist {
			if math.Cos(phi) < 0 {
				mag = -mag
			}
			coeff[k] = complex(mag, 0)
			continue
		}
		coeff[k] = cmplx.Rect(mag, phi)
	}

	fft.Sequence(out, coeff)
	scale := 1 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Matrix phase-randomizes every region (row) of ts independently. Each row
// gets its own random stream derived from seed and the row index, so regions
// share no phase information. The input is never modified.
func Matrix(ts mat.Matrix, seed uint64) (*mat.Dense, error) {
	if ts == nil {
		return nil, errors.InvalidShape("time series matrix is nil")
	}
	nROI, nTime := ts.Dims()
	if nROI == 0 || nTime == 0 {
		return nil, errors.InvalidShape("time series matrix is %dx%d", nROI, nTime)
	}

	out := mat.NewDense(nROI, nTime, nil)
	for r := 0; r < nROI; r++ {
		row := mat.Row(nil, r, ts)
		for t, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.InvalidInput("region %d has a non-finite sample at timepoint %d; surrogates need complete series", r, t)
			}
		}
		out.SetRow(r, PhaseRandomize(row, rand.NewPCG(seed, uint64(r))))
	}
	return out, nil
}
