package triad

import "triadbalance/domain/balance"

// Segment is one run of a constant code. Start is the first window of the run.
type Segment struct {
	Code   balance.Code `json:"code"`
	Start  int          `json:"start"`
	Length int          `json:"length"`
}

// End returns the window just past the run
func (s Segment) End() int {
	return s.Start + s.Length
}

// Segments is the run-length encoding of one triangle's code sequence.
// Dropped counts windows that belonged to undefined runs removed during encoding.
type Segments struct {
	Runs    []Segment `json:"runs"`
	Dropped int       `json:"dropped"`
}

// Total returns the number of windows covered by the kept runs
func (s Segments) Total() int {
	total := 0
	for _, r := range s.Runs {
		total += r.Length
	}
	return total
}

// Encode collapses consecutive equal codes into runs in order of occurrence.
// With dropUndefined, runs of balance.Undefined are removed and only counted.
func Encode(codes []balance.Code, dropUndefined bool) Segments {
	var out Segments
	for start := 0; start < len(codes); {
		end := start + 1
		for end < len(codes) && codes[end] == codes[start] {
			end++
		}
		if dropUndefined && codes[start] == balance.Undefined {
			out.Dropped += end - start
		} else {
			out.Runs = append(out.Runs, Segment{Code: codes[start], Start: start, Length: end - start})
		}
		start = end
	}
	return out
}

// Decode expands the runs back into a code sequence of length n.
// Windows not covered by a run (dropped undefined runs) decode as Undefined.
func (s Segments) Decode(n int) []balance.Code {
	out := make([]balance.Code, n)
	for i := range out {
		out[i] = balance.Undefined
	}
	for _, r := range s.Runs {
		for w := r.Start; w < r.End() && w < n; w++ {
			out[w] = r.Code
		}
	}
	return out
}
