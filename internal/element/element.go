package element

import (
	"fmt"
	"strings"
)

// Element is one of the five phases (五行)
type Element int

const (
	Wood  Element = iota // 木
	Fire                 // 火
	Earth                // 土
	Metal                // 金
	Water                // 水
)

// Count is the number of elements
const Count = 5

// All lists every element in generation order
var All = [Count]Element{Wood, Fire, Earth, Metal, Water}

var names = [Count]string{"Wood", "Fire", "Earth", "Metal", "Water"}
var glyphs = [Count]string{"木", "火", "土", "金", "水"}

// Valid reports whether e is one of the five elements
func (e Element) Valid() bool {
	return e >= Wood && e <= Water
}

func (e Element) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Element(%d)", int(e))
	}
	return names[e]
}

// Glyph returns the Chinese character for e
func (e Element) Glyph() string {
	if !e.Valid() {
		return "?"
	}
	return glyphs[e]
}

// MarshalText encodes the element by name
func (e Element) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid element %d", int(e))
	}
	return []byte(names[e]), nil
}

// UnmarshalText accepts a case-insensitive element name
func (e *Element) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Parse resolves an element name or glyph
func Parse(s string) (Element, error) {
	for i, name := range names {
		if strings.EqualFold(s, name) || s == glyphs[i] {
			return Element(i), nil
		}
	}
	return 0, fmt.Errorf("unknown element %q", s)
}
