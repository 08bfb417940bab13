package pcre

import (
	"slices"
	"unicode"
)

type charRange struct {
	lo rune
	hi rune
}

type charSet struct {
	// Non-overlapping, non-adjacent ranges sorted in ascending order
	chars []charRange
}

func (s *charSet) clone() charSet {
	return charSet{chars: slices.Clone(s.chars)}
}

func (s *charSet) union(other *charSet) {
	if len(other.chars) == 0 {
		return
	}
	if len(s.chars) == 0 {
		s.chars = slices.Clone(other.chars)
		return
	}
	chars := make([]charRange, 0, len(s.chars)+len(other.chars))
	i := 0
	j := 0
	for {
		var next charRange
		if i < len(s.chars) && (j >= len(other.chars) || s.chars[i].lo < other.chars[j].lo) {
			next = s.chars[i]
			i++
		} else if j < len(other.chars) {
			next = other.chars[j]
			j++
		} else {
			break
		}
		if len(chars) == 0 {
			chars = append(chars, next)
			continue
		}
		r := &chars[len(chars)-1]
		if next.hi <= r.hi {
			continue
		}
		if next.lo <= r.hi+1 {
			r.hi = next.hi
			continue
		}
		chars = append(chars, next)
	}
	s.chars = chars
}

func (s *charSet) unionRange(lo, hi rune) {
	other := charSet{chars: []charRange{{lo: lo, hi: hi}}}
	s.union(&other)
}

func (s *charSet) unionChar(r rune) {
	s.unionRange(r, r)
}

func (s *charSet) intersection(other *charSet) {
	chars := []charRange{}
	i := 0
	j := 0
	for i < len(s.chars) && j < len(other.chars) {
		a := s.chars[i]
		b := other.chars[j]

		lo := max(a.lo, b.lo)
		hi := min(a.hi, b.hi)
		if lo <= hi {
			chars = append(chars, charRange{lo: lo, hi: hi})
		}

		if a.hi < b.hi {
			i++
		} else {
			j++
		}
	}
	s.chars = chars
}

func (s *charSet) containsRune(r rune) bool {
	lo := 0
	hi := len(s.chars)
	for lo < hi {
		m := int(uint(lo+hi) >> 1)
		range_ := s.chars[m]
		if range_.lo <= r && r <= range_.hi {
			return true
		}
		if r < range_.lo {
			hi = m
		} else {
			lo = m + 1
		}
	}
	return false
}

func (s *charSet) complement() {
	var chars []charRange
	next := rune(0)
	for _, range_ := range s.chars {
		if range_.lo > next {
			chars = append(chars, charRange{lo: next, hi: range_.lo - 1})
		}
		next = range_.hi + 1
	}
	if next <= unicode.MaxRune {
		chars = append(chars, charRange{lo: next, hi: unicode.MaxRune})
	}
	s.chars = chars
}

// single reports the only rune in s, if s holds exactly one.
func (s *charSet) single() (rune, bool) {
	if len(s.chars) == 1 && s.chars[0].lo == s.chars[0].hi {
		return s.chars[0].lo, true
	}
	return 0, false
}

var asciiLetters = charSet{chars: []charRange{{'A', 'Z'}, {'a', 'z'}}}

// foldCase adds every case variant of the runes in s. With unicode set the
// full simple-fold orbit is used, otherwise only ASCII letters are paired.
func (s *charSet) foldCase(unicodeMode bool) {
	var extra charSet
	if !unicodeMode {
		letters := s.clone()
		letters.intersection(&asciiLetters)
		for _, range_ := range letters.chars {
			for r := range_.lo; r <= range_.hi; r++ {
				extra.unionChar(r ^ 0x20)
			}
		}
		s.union(&extra)
		return
	}
	// Every rune that has another case form is covered by unicode.CaseRanges,
	// so only the intersection with it needs walking.
	var buf []rune
	for _, range_ := range s.chars {
		for _, cr := range unicode.CaseRanges {
			lo := max(range_.lo, rune(cr.Lo))
			hi := min(range_.hi, rune(cr.Hi))
			for r := lo; r <= hi; r++ {
				for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
					buf = append(buf, f)
				}
			}
		}
	}
	extra = runeSet(buf)
	s.union(&extra)
}

// runeSet builds a set from an unordered list of runes.
func runeSet(runes []rune) charSet {
	var res charSet
	if len(runes) == 0 {
		return res
	}
	runes = slices.Clone(runes)
	slices.Sort(runes)
	for i := 0; i < len(runes); {
		lo := runes[i]
		for i+1 < len(runes) && (runes[i] == runes[i+1] || runes[i]+1 == runes[i+1]) {
			i++
		}
		res.chars = append(res.chars, charRange{lo: lo, hi: runes[i]})
		i++
	}
	return res
}

// classProp is a Unicode property reference such as \p{Lu} or \P{Greek}.
// A rune has the property if it is in any of tables.
type classProp struct {
	name   string
	negate bool
	tables []*unicode.RangeTable
}

func (p *classProp) matches(r rune) bool {
	return unicode.In(r, p.tables...) != p.negate
}

// charClass is the matcher's view of a bracket expression or class escape.
// A rune is a member if it is in set, has one of props, or is a member of
// one of subs; negate inverts the result.
type charClass struct {
	set    charSet
	props  []classProp
	subs   []*charClass
	negate bool
}

func (c *charClass) matches(r rune) bool {
	m := c.set.containsRune(r)
	for i := 0; !m && i < len(c.props); i++ {
		m = c.props[i].matches(r)
	}
	for i := 0; !m && i < len(c.subs); i++ {
		m = c.subs[i].matches(r)
	}
	return m != c.negate
}

// add merges other into c as an additional alternative member.
func (c *charClass) add(other *charClass) {
	if other.negate || len(other.subs) > 0 {
		c.subs = append(c.subs, other)
		return
	}
	c.set.union(&other.set)
	c.props = append(c.props, other.props...)
}

// isSimple reports whether membership is decided by set alone.
func (c *charClass) isSimple() bool {
	return len(c.props) == 0 && len(c.subs) == 0
}

// flatten returns the explicit ranges of c when they can be computed
// without property tables.
func (c *charClass) flatten() (charSet, bool) {
	if len(c.props) > 0 {
		return charSet{}, false
	}
	res := c.set.clone()
	for _, sub := range c.subs {
		s, ok := sub.flatten()
		if !ok {
			return charSet{}, false
		}
		res.union(&s)
	}
	if c.negate {
		res.complement()
	}
	return res, true
}
