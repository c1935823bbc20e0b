package aggregate

import (
	"math"

	"triadbalance/domain/balance"
	"triadbalance/internal/errors"
)

// Accumulator collects pooled samples triangle by triangle so callers can
// aggregate without keeping the full triangle tensor. It is not safe for
// concurrent use; give each worker its own and Merge them.
type Accumulator struct {
	wanted  [4]bool
	samples [4][]float64
}

// NewAccumulator accepts only canonical codes; no codes means all four
func NewAccumulator(codes ...balance.Code) (*Accumulator, error) {
	acc := &Accumulator{}
	if len(codes) == 0 {
		acc.wanted = [4]bool{true, true, true, true}
		return acc, nil
	}
	for _, c := range codes {
		i := c.Index()
		if i < 0 {
			return nil, errors.InvalidParameter("code %v is not one of the canonical codes {+3,-1,+1,-3}", c)
		}
		acc.wanted[i] = true
	}
	return acc, nil
}

// Add pools every finite sample of the item whose code was requested
func (a *Accumulator) Add(it Item) {
	for _, s := range it.Samples {
		i := s.Code.Index()
		if i < 0 || !a.wanted[i] || math.IsNaN(s.Value) {
			continue
		}
		a.samples[i] = append(a.samples[i], s.Value)
	}
}

// Merge appends the samples of other
func (a *Accumulator) Merge(other *Accumulator) {
	for i := range a.samples {
		if a.wanted[i] {
			a.samples[i] = append(a.samples[i], other.samples[i]...)
		}
	}
}

// Result summarizes the pooled samples; unrequested or unobserved codes are missing
func (a *Accumulator) Result() Result {
	var r Result
	for i, c := range balance.Canonical {
		if !a.wanted[i] {
			r.Stats[i] = missingStat(c)
			continue
		}
		r.Stats[i] = summarize(c, a.samples[i])
	}
	return r
}
