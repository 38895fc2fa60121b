package element

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Vector counts symbols per element, indexed by Element
type Vector [Count]int

// Add increments the count of e
func (v *Vector) Add(e Element) {
	v[e]++
}

// Sum returns the total count
func (v Vector) Sum() int {
	total := 0
	for _, n := range v {
		total += n
	}
	return total
}

// Dominant returns the element with the highest count (first in generation order on ties)
func (v Vector) Dominant() Element {
	best := Wood
	for _, e := range All {
		if v[e] > v[best] {
			best = e
		}
	}
	return best
}

// Weakest returns the element with the lowest count (first in generation order on ties)
func (v Vector) Weakest() Element {
	worst := Wood
	for _, e := range All {
		if v[e] < v[worst] {
			worst = e
		}
	}
	return worst
}

// Balance returns 1 - std/mean over the five counts; 0 for an empty vector
func (v Vector) Balance() float64 {
	sum := v.Sum()
	if sum == 0 {
		return 0
	}
	mean := float64(sum) / Count

	variance := 0.0
	for _, n := range v {
		d := float64(n) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / Count)

	return 1 - std/mean
}

func (v Vector) String() string {
	parts := make([]string, 0, Count)
	for _, e := range All {
		parts = append(parts, fmt.Sprintf("%s:%d", e.Glyph(), v[e]))
	}
	return strings.Join(parts, " ")
}

// MarshalJSON renders the vector as {"Wood":n,...}
func (v Vector) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, Count)
	for _, e := range All {
		m[e.String()] = v[e]
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the {"Wood":n,...} form
func (v *Vector) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var out Vector
	for name, n := range m {
		e, err := Parse(name)
		if err != nil {
			return err
		}
		out[e] = n
	}
	*v = out
	return nil
}
