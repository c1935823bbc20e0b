// Package balance holds the vocabulary of signed triads: codes, labels,
// display conventions and triangle indexing.
package balance

import (
	"fmt"
	"math"
	"strings"
)

// Code is the sum of the three pairwise signs of a triangle in one window
type Code int8

// Canonical codes. A code is canonical when no pairwise sign is zero.
const (
	AllPositive Code = 3  // + + +
	TwoNegative Code = -1 // - - +
	TwoPositive Code = 1  // + + -
	AllNegative Code = -3 // - - -

	// Undefined marks a window whose triad could not be classified
	// (missing connectivity, or an exact zero sign unless zero signs are kept).
	Undefined Code = math.MinInt8
)

// zeroSignOffset moves sign sums with a zero edge out of the canonical range.
// Such sums lie in [-2, 2], so their codes lie in [14, 18].
const zeroSignOffset = 16

// ZeroSign returns the code of a triangle whose sign sum includes at least one
// zero edge. It never equals a canonical code.
func ZeroSign(sum int) Code {
	return Code(zeroSignOffset + sum)
}

// HasZeroSign reports whether c was built by ZeroSign
func (c Code) HasZeroSign() bool {
	return c >= zeroSignOffset-2 && c <= zeroSignOffset+2
}

// Sum returns the raw sign sum behind c
func (c Code) Sum() int {
	if c.HasZeroSign() {
		return int(c) - zeroSignOffset
	}
	return int(c)
}

// Canonical lists the four canonical codes in reporting order
var Canonical = [4]Code{AllPositive, TwoNegative, TwoPositive, AllNegative}

// IsCanonical reports whether c is one of {+3,-1,+1,-3}
func (c Code) IsCanonical() bool {
	return c.Index() >= 0
}

// Index returns the position of c in Canonical, or -1
func (c Code) Index() int {
	switch c {
	case AllPositive:
		return 0
	case TwoNegative:
		return 1
	case TwoPositive:
		return 2
	case AllNegative:
		return 3
	}
	return -1
}

// Balanced reports whether c is a balanced triad under structural balance
// theory: an even number of negative edges (+3 and -1).
func (c Code) Balanced() bool {
	return c == AllPositive || c == TwoNegative
}

// Label returns the stable reporting label of a canonical code
func (c Code) Label() string {
	switch c {
	case AllPositive:
		return "all_positive"
	case TwoNegative:
		return "two_negative_one_positive"
	case TwoPositive:
		return "two_positive_one_negative"
	case AllNegative:
		return "all_negative"
	case Undefined:
		return "undefined"
	}
	if c.HasZeroSign() {
		return fmt.Sprintf("zero_sign_%+d", c.Sum())
	}
	return fmt.Sprintf("raw_%d", int(c))
}

func (c Code) String() string {
	switch {
	case c == Undefined:
		return "undefined"
	case c.HasZeroSign():
		return fmt.Sprintf("%+d(0)", c.Sum())
	}
	return fmt.Sprintf("%+d", int(c))
}

// Convention selects how the two-negative triad is displayed.
// Internally it is always -1.
type Convention string

const (
	// ConventionRaw shows the plain sign sum: {+3,-1,+1,-3}
	ConventionRaw Convention = "raw"
	// ConventionRemapped shows the two-negative triad as -2: {+3,-2,+1,-3}
	ConventionRemapped Convention = "remapped"
)

// ParseConvention parses a convention name; empty means raw
func ParseConvention(s string) (Convention, error) {
	switch Convention(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConventionRaw:
		return ConventionRaw, nil
	case ConventionRemapped:
		return ConventionRemapped, nil
	}
	return "", fmt.Errorf("unknown code convention %q (want raw or remapped)", s)
}

// Display maps an internal code to the number reported under the convention
func (conv Convention) Display(c Code) int {
	if conv == ConventionRemapped && c == TwoNegative {
		return -2
	}
	return int(c)
}

// Triangle is an index triple with I < J < K
type Triangle struct {
	I, J, K int
}

func (t Triangle) String() string {
	return fmt.Sprintf("(%d,%d,%d)", t.I, t.J, t.K)
}

// Valid reports whether the triple is strictly ordered and inside [0, n)
func (t Triangle) Valid(n int) bool {
	return t.I >= 0 && t.I < t.J && t.J < t.K && t.K < n
}

// Within reports whether all three vertices are members of the set
func (t Triangle) Within(set map[int]bool) bool {
	return set[t.I] && set[t.J] && set[t.K]
}

// TriangleCount returns n choose 3
func TriangleCount(n int) int {
	if n < 3 {
		return 0
	}
	return n * (n - 1) * (n - 2) / 6
}

// Triangles enumerates every i<j<k over [0, n) in lexicographic order
func Triangles(n int) []Triangle {
	out := make([]Triangle, 0, TriangleCount(n))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				out = append(out, Triangle{I: i, J: j, K: k})
			}
		}
	}
	return out
}
