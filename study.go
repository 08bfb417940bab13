package pcre

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
	"github.com/coregx/coregex"
)

// StudyData describes what [Regexp.Study] learned about a pattern. It only
// ever makes matching faster: a studied and an unstudied pattern report the
// same matches, except that a studied one may finish a search that the
// unstudied one abandons with a [RuntimeError] because fewer start
// positions are tried.
type StudyData struct {
	// MinLength is the fewest characters any match consumes.
	MinLength int
	// FirstBytes, if not nil, is the set of bytes a match attempt can begin
	// with.
	FirstBytes *[256]bool
	// Prefixes, if not empty, are equal-length literals one of which begins
	// every successful match attempt.
	Prefixes []string
	// FastPath reports whether candidate start positions are found by a
	// finite-automaton engine.
	FastPath bool
}

type studyData struct {
	data      StudyData
	prefilter *ahocorasick.Automaton
	fast      *coregex.Regex
}

// candidate returns the first position at or after pos at which a match
// attempt could succeed. ok is false if there is none.
func (s *studyData) candidate(b []byte, pos int) (int, bool) {
	switch {
	case s.fast != nil:
		loc := s.fast.FindIndex(b[pos:])
		if loc == nil {
			return 0, false
		}
		return pos + loc[0], true
	case s.prefilter != nil:
		m := s.prefilter.Find(b, pos)
		if m == nil {
			return 0, false
		}
		return m.Start, true
	case s.data.FirstBytes != nil:
		first := s.data.FirstBytes
		for ; pos < len(b); pos++ {
			if first[b[pos]] {
				return pos, true
			}
		}
		return 0, false
	}
	return pos, true
}

const (
	maxPrefixes   = 64
	maxPrefixLen  = 64
	maxFoldPrefix = 8
)

func study(prog *program, root *node, flags StudyFlag) *studyData {
	utf := prog.flags&FlagUTF != 0
	st := &studyData{data: StudyData{MinLength: prog.minLen}}

	if set, canEmpty, ok := firstBytes(root, utf); ok && !canEmpty {
		st.data.FirstBytes = &set
	}

	if prefixes := literalPrefixes(root, utf); len(prefixes) > 0 {
		builder := ahocorasick.NewBuilder()
		for _, p := range prefixes {
			builder.AddPattern([]byte(p))
		}
		if auto, err := builder.Build(); err == nil {
			st.prefilter = auto
			st.data.Prefixes = prefixes
		}
	}

	if flags&StudyJIT != 0 && utf && prog.minLen > 0 && jitEligible(root) {
		var b strings.Builder
		if writeRE2(&b, root) {
			if re, err := coregex.Compile(b.String()); err == nil {
				st.fast = re
				st.data.FastPath = true
			}
		}
	}
	return st
}

func leadByte(r rune) byte {
	switch {
	case r < 0x80:
		return byte(r)
	case r < 0x800:
		return byte(0xC0 | r>>6)
	case r < 0x10000:
		return byte(0xE0 | r>>12)
	}
	return byte(0xF0 | r>>18)
}

func addRangeBytes(set *[256]bool, lo, hi rune, utf bool) {
	if !utf {
		for r := lo; r <= min(hi, 0xFF); r++ {
			set[r] = true
		}
		return
	}
	// Lead bytes grow with the code point, so a range maps onto a run.
	for c := int(leadByte(lo)); c <= int(leadByte(hi)); c++ {
		set[c] = true
	}
}

// firstBytes computes the bytes a match of n can start with. canEmpty is
// set when n can match without consuming anything, in which case what
// follows n decides.
func firstBytes(n *node, utf bool) (set [256]bool, canEmpty bool, ok bool) {
	switch n.op {
	case nodeEmpty, nodeAssert, nodeLook, nodeKeep:
		return set, true, true
	case nodeLiteral:
		runes := []rune{n.r}
		if n.fold {
			runes = foldOrbit(n.r, utf)
		}
		for _, r := range runes {
			addRangeBytes(&set, r, r, utf)
		}
		return set, false, true
	case nodeClass:
		ranges, ok := n.cls.flatten()
		if !ok {
			return set, false, false
		}
		for _, r := range ranges.chars {
			addRangeBytes(&set, r.lo, r.hi, utf)
		}
		return set, false, true
	case nodeAny, nodeAnyNL:
		for i := range set {
			set[i] = true
		}
		if n.op == nodeAny {
			set['\n'] = false
		}
		return set, false, true
	case nodeCapture, nodeAtomic:
		return firstBytes(n.sub(), utf)
	case nodeRepeat:
		if n.max == 0 {
			return set, true, true
		}
		set, canEmpty, ok = firstBytes(n.sub(), utf)
		return set, canEmpty || n.min == 0, ok
	case nodeConcat:
		for _, s := range n.subs {
			sub, subEmpty, subOK := firstBytes(s, utf)
			if !subOK {
				return set, false, false
			}
			for i, b := range sub {
				set[i] = set[i] || b
			}
			if !subEmpty {
				return set, false, true
			}
		}
		return set, true, true
	case nodeAlternate, nodeCond:
		subs := n.subs
		if n.op == nodeCond && len(subs) == 1 {
			canEmpty = true
		}
		for _, s := range subs {
			sub, subEmpty, subOK := firstBytes(s, utf)
			if !subOK {
				return set, false, false
			}
			for i, b := range sub {
				set[i] = set[i] || b
			}
			canEmpty = canEmpty || subEmpty
		}
		return set, canEmpty, true
	}
	return set, false, false
}

func encodeChar(r rune, utf bool) (string, bool) {
	if !utf {
		if r > 0xFF {
			return "", false
		}
		return string([]byte{byte(r)}), true
	}
	return string(utf8.AppendRune(nil, r)), true
}

// prefixes returns strings one of which every match of n starts with.
// complete is set when a match of n is exactly one of them.
func prefixes(n *node, utf bool) (set []string, complete bool) {
	switch n.op {
	case nodeEmpty, nodeAssert, nodeLook, nodeKeep:
		return []string{""}, true
	case nodeLiteral:
		runes := []rune{n.r}
		if n.fold {
			runes = foldOrbit(n.r, utf)
		}
		for _, r := range runes {
			if s, ok := encodeChar(r, utf); ok {
				set = append(set, s)
			}
		}
		return set, true
	case nodeClass:
		ranges, ok := n.cls.flatten()
		if !ok {
			return []string{""}, false
		}
		count := 0
		for _, r := range ranges.chars {
			count += int(r.hi-r.lo) + 1
			if count > maxFoldPrefix {
				return []string{""}, false
			}
		}
		for _, rg := range ranges.chars {
			for r := rg.lo; r <= rg.hi; r++ {
				if s, ok := encodeChar(r, utf); ok {
					set = append(set, s)
				}
			}
		}
		return set, true
	case nodeCapture:
		return prefixes(n.sub(), utf)
	case nodeAtomic:
		set, _ = prefixes(n.sub(), utf)
		return set, false
	case nodeRepeat:
		if n.min == 0 {
			return []string{""}, false
		}
		set, complete = prefixes(n.sub(), utf)
		return set, complete && n.min == 1 && n.max == 1
	case nodeConcat:
		set = []string{""}
		for _, s := range n.subs {
			sub, subComplete := prefixes(s, utf)
			if len(sub)*len(set) > maxPrefixes {
				return set, false
			}
			next := make([]string, 0, len(sub)*len(set))
			for _, a := range set {
				for _, b := range sub {
					next = append(next, a+b)
				}
			}
			set = next
			if len(set) == 0 {
				return nil, true
			}
			if !subComplete || len(set[0]) > maxPrefixLen {
				return set, false
			}
		}
		return set, true
	case nodeAlternate:
		complete = true
		for _, s := range n.subs {
			sub, subComplete := prefixes(s, utf)
			set = append(set, sub...)
			complete = complete && subComplete
			if len(set) > maxPrefixes {
				return []string{""}, false
			}
		}
		return set, complete
	}
	return []string{""}, false
}

// literalPrefixes returns the prefix set of n cut to a common length, or
// nil if some match may begin with anything.
func literalPrefixes(n *node, utf bool) []string {
	set, _ := prefixes(n, utf)
	if len(set) == 0 {
		return nil
	}
	shortest := len(set[0])
	for _, s := range set {
		shortest = min(shortest, len(s))
	}
	if shortest == 0 {
		return nil
	}
	res := make([]string, 0, len(set))
	for _, s := range set {
		res = append(res, s[:shortest])
	}
	slices.Sort(res)
	return slices.Compact(res)
}

// jitEligible reports whether n stays within the regular subset that a
// finite automaton can run with the same set of match start positions.
// Patterns that can match empty are not eligible, and neither are those
// naming both cases of a letter: coregex misplaces the leftmost empty
// match and misses case-pair classes such as [bB].
func jitEligible(n *node) bool {
	var chars charSet
	ok := n.walk(func(n *node) bool {
		switch n.op {
		case nodeAssert, nodeLook, nodeBackref, nodeAtomic, nodeCond, nodeKeep:
			return false
		case nodeRepeat:
			return !n.possessive && n.min <= 1000 && n.max <= 1000
		case nodeLiteral:
			if n.fold && len(foldOrbit(n.r, true)) > 1 {
				return false
			}
			chars.unionChar(n.r)
		case nodeClass:
			set, flat := n.cls.flatten()
			if !flat {
				set = n.cls.set
			}
			chars.union(&set)
		}
		return true
	})
	return ok && !hasCasePair(&chars)
}

const maxCasePairScan = 4096

// hasCasePair reports whether set holds a character together with another
// member of its case-folding orbit. Sets too large to scan count as having
// one.
func hasCasePair(set *charSet) bool {
	total := 0
	for _, cr := range set.chars {
		total += int(cr.hi-cr.lo) + 1
		if total > maxCasePairScan {
			return true
		}
	}
	for _, cr := range set.chars {
		for r := cr.lo; r <= cr.hi; r++ {
			for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
				if set.containsRune(f) {
					return true
				}
			}
		}
	}
	return false
}

func writeRE2Rune(b *strings.Builder, r rune) {
	b.WriteString(`\x{`)
	b.WriteString(strconv.FormatInt(int64(r), 16))
	b.WriteString(`}`)
}

func re2Property(b *strings.Builder, p classProp) bool {
	names := []string{p.name}
	switch p.name {
	case "L&", "LC":
		if p.negate {
			return false
		}
		names = []string{"Lu", "Ll", "Lt"}
	case "Any":
		if p.negate {
			return false
		}
		b.WriteString(`\x{0}-\x{10ffff}`)
		return true
	}
	for _, name := range names {
		_, isCat := unicode.Categories[name]
		_, isScript := unicode.Scripts[name]
		if !isCat && !isScript {
			return false
		}
		if p.negate {
			b.WriteString(`\P{` + name + `}`)
		} else {
			b.WriteString(`\p{` + name + `}`)
		}
	}
	return true
}

// writeRE2 renders n in RE2 syntax, reporting false if some part cannot be
// expressed there.
func writeRE2(b *strings.Builder, n *node) bool {
	switch n.op {
	case nodeEmpty:
		b.WriteString(`(?:)`)
	case nodeLiteral:
		if !n.fold {
			writeRE2Rune(b, n.r)
			break
		}
		b.WriteString(`[`)
		for _, r := range foldOrbit(n.r, true) {
			writeRE2Rune(b, r)
		}
		b.WriteString(`]`)
	case nodeClass:
		cls := n.cls
		set, flat := cls.flatten()
		if !flat && len(cls.subs) > 0 {
			return false
		}
		negate := false
		if !flat {
			set = cls.set
			negate = cls.negate
		}
		if flat && len(set.chars) == 0 {
			b.WriteString(`[^\x{0}-\x{10ffff}]`)
			break
		}
		b.WriteString(`[`)
		if negate {
			b.WriteString(`^`)
		}
		for _, r := range set.chars {
			writeRE2Rune(b, r.lo)
			if r.hi != r.lo {
				b.WriteString(`-`)
				writeRE2Rune(b, r.hi)
			}
		}
		if !flat {
			for _, p := range cls.props {
				if !re2Property(b, p) {
					return false
				}
			}
		}
		b.WriteString(`]`)
	case nodeAny:
		b.WriteString(`[^\n]`)
	case nodeAnyNL:
		b.WriteString(`(?s:.)`)
	case nodeCapture:
		b.WriteString(`(?:`)
		if !writeRE2(b, n.sub()) {
			return false
		}
		b.WriteString(`)`)
	case nodeRepeat:
		b.WriteString(`(?:`)
		if !writeRE2(b, n.sub()) {
			return false
		}
		b.WriteString(`)`)
		switch {
		case n.min == 0 && n.max == repeatInfinite:
			b.WriteString(`*`)
		case n.min == 1 && n.max == repeatInfinite:
			b.WriteString(`+`)
		case n.min == 0 && n.max == 1:
			b.WriteString(`?`)
		case n.max == repeatInfinite:
			b.WriteString(`{` + strconv.Itoa(n.min) + `,}`)
		default:
			b.WriteString(`{` + strconv.Itoa(n.min) + `,` + strconv.Itoa(n.max) + `}`)
		}
		if !n.greedy {
			b.WriteString(`?`)
		}
	case nodeConcat, nodeAlternate:
		b.WriteString(`(?:`)
		for i, s := range n.subs {
			if i > 0 && n.op == nodeAlternate {
				b.WriteString(`|`)
			}
			if !writeRE2(b, s) {
				return false
			}
		}
		b.WriteString(`)`)
	default:
		return false
	}
	return true
}
