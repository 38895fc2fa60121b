package cycle

import (
	"fmt"
	"time"

	"github.com/wonny/wuxing-quant/internal/element"
)

// DefaultReferenceYear is the year mapped to 甲子 (offset 0)
const DefaultReferenceYear = 1900

// Pillar is a (stem, branch) pair
type Pillar struct {
	Stem   Stem   `json:"stem"`
	Branch Branch `json:"branch"`
}

func (p Pillar) String() string {
	return p.Stem.Glyph() + p.Branch.Glyph()
}

// MarshalText renders the pillar as its two glyphs
func (p Pillar) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PillarSet holds the four pillars of a timestamp
type PillarSet struct {
	Year  Pillar `json:"year"`
	Month Pillar `json:"month"`
	Day   Pillar `json:"day"`
	Hour  Pillar `json:"hour"`
}

func (ps PillarSet) String() string {
	return fmt.Sprintf("%s %s %s %s", ps.Year, ps.Month, ps.Day, ps.Hour)
}

// Pillars returns year, month, day and hour in order
func (ps PillarSet) Pillars() [4]Pillar {
	return [4]Pillar{ps.Year, ps.Month, ps.Day, ps.Hour}
}

// Calculator derives a PillarSet from a calendar timestamp.
// The month/day/hour pillars are simple index cycles, not a lunisolar conversion.
type Calculator struct {
	ReferenceYear int
}

// NewCalculator returns a calculator anchored at DefaultReferenceYear
func NewCalculator() *Calculator {
	return &Calculator{ReferenceYear: DefaultReferenceYear}
}

// Compute returns the PillarSet for t. The hour is t.Hour() in t's own location.
func (c *Calculator) Compute(t time.Time) PillarSet {
	offset := mod(t.Year()-c.ReferenceYear, 60)
	hour := t.Hour() / 2

	return PillarSet{
		Year:  pillarAt(offset),
		Month: pillarAt(int(t.Month()) - 1),
		Day:   pillarAt(t.Day() - 1),
		Hour:  pillarAt(hour),
	}
}

// Strength computes the element vector for t
func (c *Calculator) Strength(t time.Time) element.Vector {
	return StrengthVector(c.Compute(t))
}

// StrengthVector counts the elements of all 4 stems and 4 branches; the sum is always 8
func StrengthVector(ps PillarSet) element.Vector {
	var v element.Vector
	for _, p := range ps.Pillars() {
		v.Add(p.Stem.Element())
		v.Add(p.Branch.Element())
	}
	return v
}

func pillarAt(i int) Pillar {
	return Pillar{
		Stem:   Stem(mod(i, StemCount)),
		Branch: Branch(mod(i, BranchCount)),
	}
}

// mod always returns a value in [0, n)
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
