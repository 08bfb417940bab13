package pcre

type nodeOp uint8

const (
	nodeEmpty nodeOp = iota
	// Single character r, case-insensitive if fold is set.
	nodeLiteral
	nodeClass
	// "." without DOTALL, and \N.
	nodeAny
	// "." with DOTALL.
	nodeAnyNL
	nodeAssert
	nodeCapture
	nodeAtomic
	nodeLook
	nodeRepeat
	nodeConcat
	nodeAlternate
	nodeBackref
	nodeCond
	// \K
	nodeKeep
)

type assertKind uint8

const (
	assertBOL assertKind = iota
	assertMultilineBOL
	assertEOL
	assertEOLOnly
	assertMultilineEOL
	assertBeginText
	assertEndText
	assertEndTextNL
	assertWordBoundary
	assertNotWordBoundary
	assertStartOffset
	assertKindCount
)

var assertNames = [assertKindCount]string{
	assertBOL:             "^",
	assertMultilineBOL:    "(?m)^",
	assertEOL:             "$",
	assertEOLOnly:         "$(ENDONLY)",
	assertMultilineEOL:    "(?m)$",
	assertBeginText:       `\A`,
	assertEndText:         `\z`,
	assertEndTextNL:       `\Z`,
	assertWordBoundary:    `\b`,
	assertNotWordBoundary: `\B`,
	assertStartOffset:     `\G`,
}

func (k assertKind) String() string {
	if k < assertKindCount {
		return assertNames[k]
	}
	return "assert?"
}

// node is one construct of a parsed pattern. Which fields are meaningful
// depends on op.
type node struct {
	op nodeOp
	// Byte offset of the construct in the pattern.
	pos int

	r    rune
	fold bool
	cls  *charClass

	assert assertKind

	// Group number of nodeCapture, nodeBackref and group conditions.
	index int
	name  string

	min, max   int
	greedy     bool
	possessive bool

	// nodeLook
	behind bool
	negate bool

	// Children: the alternatives of nodeAlternate, the items of nodeConcat,
	// the body of groups, lookarounds and repeats, and yes/no of nodeCond.
	subs []*node
	// Assertion condition of nodeCond, nil for a group condition.
	cond *node
}

// repeatInfinite is the max of an unbounded quantifier.
const repeatInfinite = -1

func (n *node) sub() *node {
	if len(n.subs) == 0 {
		return &node{op: nodeEmpty, pos: n.pos}
	}
	return n.subs[0]
}

// isZeroWidth reports whether n is an assertion that cannot be quantified.
func (n *node) isZeroWidth() bool {
	return n.op == nodeAssert || n.op == nodeKeep
}

// minLength is the fewest characters any match of n consumes.
func (n *node) minLength() int {
	switch n.op {
	case nodeLiteral, nodeClass, nodeAny, nodeAnyNL:
		return 1
	case nodeCapture, nodeAtomic:
		return n.sub().minLength()
	case nodeRepeat:
		l := n.sub().minLength() * n.min
		return min(l, maxMinLength)
	case nodeConcat:
		l := 0
		for _, s := range n.subs {
			l += s.minLength()
		}
		return min(l, maxMinLength)
	case nodeAlternate:
		l := -1
		for _, s := range n.subs {
			if sl := s.minLength(); l == -1 || sl < l {
				l = sl
			}
		}
		return max(l, 0)
	case nodeCond:
		yes := n.subs[0].minLength()
		no := 0
		if len(n.subs) > 1 {
			no = n.subs[1].minLength()
		}
		return min(yes, no)
	}
	return 0
}

const maxMinLength = 1 << 30

// fixedLength is the exact number of characters every match of n consumes,
// if there is such a number.
func (n *node) fixedLength() (int, bool) {
	switch n.op {
	case nodeEmpty, nodeAssert, nodeLook, nodeKeep:
		return 0, true
	case nodeLiteral, nodeClass, nodeAny, nodeAnyNL:
		return 1, true
	case nodeCapture, nodeAtomic:
		return n.sub().fixedLength()
	case nodeRepeat:
		if n.min != n.max {
			return 0, false
		}
		l, ok := n.sub().fixedLength()
		return l * n.min, ok
	case nodeConcat:
		total := 0
		for _, s := range n.subs {
			l, ok := s.fixedLength()
			if !ok {
				return 0, false
			}
			total += l
		}
		return total, true
	case nodeAlternate, nodeCond:
		subs := n.subs
		if n.op == nodeCond && len(subs) == 1 {
			subs = append(subs, &node{op: nodeEmpty})
		}
		first := -1
		for _, s := range subs {
			l, ok := s.fixedLength()
			if !ok || (first != -1 && l != first) {
				return 0, false
			}
			first = l
		}
		return max(first, 0), true
	}
	return 0, false
}

// anchoredStart reports whether every match of n must begin at the start of
// the subject or at the start offset.
func (n *node) anchoredStart() bool {
	switch n.op {
	case nodeAssert:
		return n.assert == assertBOL || n.assert == assertBeginText || n.assert == assertStartOffset
	case nodeCapture, nodeAtomic:
		return n.sub().anchoredStart()
	case nodeConcat:
		for _, s := range n.subs {
			if s.anchoredStart() {
				return true
			}
			// Only zero-width items may precede the anchor.
			if s.op != nodeAssert && s.op != nodeLook {
				return false
			}
		}
		return false
	case nodeAlternate:
		for _, s := range n.subs {
			if !s.anchoredStart() {
				return false
			}
		}
		return len(n.subs) > 0
	case nodeRepeat:
		return n.min > 0 && n.sub().anchoredStart()
	}
	return false
}

// walk calls fn for n and all of its descendants, depth first.
func (n *node) walk(fn func(*node) bool) bool {
	if !fn(n) {
		return false
	}
	if n.cond != nil && !n.cond.walk(fn) {
		return false
	}
	for _, s := range n.subs {
		if !s.walk(fn) {
			return false
		}
	}
	return true
}
