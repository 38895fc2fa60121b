package element

// Relation describes how one element acts on another
type Relation int

const (
	None        Relation = iota
	Same                 // 比和
	Generates            // 相生
	Overcomes            // 相克
	GeneratedBy          // 被生
	OvercomeBy           // 被克
)

var relationNames = [...]string{"none", "same", "generates", "overcomes", "generated_by", "overcome_by"}

func (r Relation) String() string {
	if r < None || int(r) >= len(relationNames) {
		return "none"
	}
	return relationNames[r]
}

// MarshalText encodes the relation by name
func (r Relation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a relation name; unknown names become None
func (r *Relation) UnmarshalText(text []byte) error {
	*r = None
	for i, name := range relationNames {
		if name == string(text) {
			*r = Relation(i)
			break
		}
	}
	return nil
}

// Inverse returns the relation seen from the other side
func (r Relation) Inverse() Relation {
	switch r {
	case Generates:
		return GeneratedBy
	case GeneratedBy:
		return Generates
	case Overcomes:
		return OvercomeBy
	case OvercomeBy:
		return Overcomes
	default:
		return r
	}
}

// ⭐ SSOT: 상생/상극 관계 테이블 (불변)
var (
	// 木→火→土→金→水→木
	generates = [Count]Element{Wood: Fire, Fire: Earth, Earth: Metal, Metal: Water, Water: Wood}
	// 木→土→水→火→金→木
	overcomes = [Count]Element{Wood: Earth, Earth: Water, Water: Fire, Fire: Metal, Metal: Wood}
)

// GeneratedTarget returns the element a generates
func GeneratedTarget(a Element) Element { return generates[a] }

// OvercomeTarget returns the element a overcomes
func OvercomeTarget(a Element) Element { return overcomes[a] }

// Relate returns the relation of a towards b
func Relate(a, b Element) Relation {
	if !a.Valid() || !b.Valid() {
		return None
	}

	switch {
	case a == b:
		return Same
	case generates[a] == b:
		return Generates
	case overcomes[a] == b:
		return Overcomes
	case generates[b] == a:
		return GeneratedBy
	case overcomes[b] == a:
		return OvercomeBy
	}
	return None
}
