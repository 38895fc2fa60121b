package cycle

import "github.com/wonny/wuxing-quant/internal/element"

// Stem is a heavenly stem (天干), 0..9
type Stem int

// Branch is an earthly branch (地支), 0..11
type Branch int

const (
	StemCount   = 10
	BranchCount = 12
)

// Polarity is the yin/yang nature of a stem
type Polarity int

const (
	Yang Polarity = iota
	Yin
)

func (p Polarity) String() string {
	if p == Yang {
		return "yang"
	}
	return "yin"
}

// Season groups branches by quarter of the year
type Season int

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

// SeasonCount is the number of seasons
const SeasonCount = 4

var seasonNames = [SeasonCount]string{"spring", "summer", "autumn", "winter"}

func (s Season) String() string {
	if s < Spring || s > Winter {
		return "unknown"
	}
	return seasonNames[s]
}

// MarshalText encodes the season by name
func (s Season) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ⭐ SSOT: 천간/지지 → 오행 조회 테이블
var (
	stemGlyphs   = [StemCount]string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}
	branchGlyphs = [BranchCount]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

	stemElements = [StemCount]element.Element{
		element.Wood, element.Wood, // 甲乙
		element.Fire, element.Fire, // 丙丁
		element.Earth, element.Earth, // 戊己
		element.Metal, element.Metal, // 庚辛
		element.Water, element.Water, // 壬癸
	}

	branchElements = [BranchCount]element.Element{
		element.Water, // 子
		element.Earth, // 丑
		element.Wood,  // 寅
		element.Wood,  // 卯
		element.Earth, // 辰
		element.Fire,  // 巳
		element.Fire,  // 午
		element.Earth, // 未
		element.Metal, // 申
		element.Metal, // 酉
		element.Earth, // 戌
		element.Water, // 亥
	}

	// 寅卯辰 봄, 巳午未 여름, 申酉戌 가을, 亥子丑 겨울
	branchSeasons = [BranchCount]Season{
		Winter, Winter, Spring, Spring, Spring, Summer,
		Summer, Summer, Autumn, Autumn, Autumn, Winter,
	}
)

// Element returns the element of the stem
func (s Stem) Element() element.Element { return stemElements[s] }

// Glyph returns the Chinese character of the stem
func (s Stem) Glyph() string { return stemGlyphs[s] }

// Polarity returns Yang for even stems (甲丙戊庚壬) and Yin for odd ones
func (s Stem) Polarity() Polarity {
	if s%2 == 0 {
		return Yang
	}
	return Yin
}

// Element returns the element of the branch
func (b Branch) Element() element.Element { return branchElements[b] }

// Glyph returns the Chinese character of the branch
func (b Branch) Glyph() string { return branchGlyphs[b] }

// Season returns the season the branch belongs to
func (b Branch) Season() Season { return branchSeasons[b] }
