package aggregate

import (
	"math"

	"triadbalance/domain/balance"
)

// Entry is the reporting form of a Stat; missing values encode as JSON null
type Entry struct {
	Label  string   `json:"label"`
	Code   int      `json:"code"`
	N      int      `json:"n"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	StdDev *float64 `json:"std_dev"`
}

// Entries lists the four canonical codes in order, displayed under conv
func (r Result) Entries(conv balance.Convention) []Entry {
	out := make([]Entry, len(r.Stats))
	for i, s := range r.Stats {
		out[i] = Entry{
			Label: s.Code.Label(),
			Code:  conv.Display(s.Code),
			N:     s.N,
		}
		if s.Valid {
			out[i].Mean = finite(s.Mean)
			out[i].Median = finite(s.Median)
			out[i].StdDev = finite(s.StdDev)
		}
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
