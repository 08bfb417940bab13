package pcre

import (
	"unicode"
)

const (
	maxGroups      = 65535
	maxRepeat      = 65535
	maxNameLength  = 32
	maxNestingDeep = 250
)

// Flags that inline option settings may change.
const inlineFlags = FlagCaseless | FlagMultiline | FlagDotAll | FlagExtended | FlagUngreedy

type parser struct {
	src   patternSource
	flags Flag

	ncap       int
	names      map[string]int
	groupNames []string

	// Nodes referring to a group by name, resolved once every group is known.
	namedRefs []*node

	quoting   bool
	lookDepth int
	depth     int
}

type parseResult struct {
	root *node
	ncap int
	// Group number to name, "" for unnamed groups. Index 0 is the whole match.
	groupNames []string
	names      map[string]int
}

func parse(pattern string, flags Flag) (*parseResult, error) {
	p := parser{
		src:        patternSource{src: []byte(pattern), utf: flags&FlagUTF != 0},
		flags:      flags,
		names:      map[string]int{},
		groupNames: []string{""},
	}
	if p.src.utf {
		if off := validateUTF8(p.src.src); off >= 0 {
			return nil, newSyntaxError(off, "invalid UTF-8 string")
		}
	}
	root, err := p.parseAlternation(flags & inlineFlags)
	if err != nil {
		return nil, err
	}
	if !p.src.atEnd() {
		return nil, newSyntaxError(p.src.pos, "unmatched closing parenthesis")
	}
	for _, n := range p.namedRefs {
		idx, ok := p.names[n.name]
		if !ok {
			return nil, newSyntaxError(n.pos, "reference to non-existent subpattern")
		}
		n.index = idx
	}
	return &parseResult{
		root:       root,
		ncap:       p.ncap,
		groupNames: p.groupNames,
		names:      p.names,
	}, nil
}

// parseAlternation parses alternatives up to an unmatched ")" or the end of
// the pattern. Option changes made in one alternative carry into the ones
// after it.
func (p *parser) parseAlternation(flags Flag) (*node, error) {
	start := p.src.pos
	var alts []*node
	for {
		concat, err := p.parseConcat(&flags)
		if err != nil {
			return nil, err
		}
		alts = append(alts, concat)
		if !p.src.eat('|') {
			break
		}
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return &node{op: nodeAlternate, pos: start, subs: alts}, nil
}

func (p *parser) parseConcat(flags *Flag) (*node, error) {
	start := p.src.pos
	var items []*node
	for {
		if p.quoting {
			if p.src.eatPrefix(`\E`) {
				p.quoting = false
				continue
			}
			if p.src.atEnd() {
				break
			}
			pos := p.src.pos
			atom := p.literal(p.src.next(), *flags, pos)
			if p.src.hasPrefix(`\E`) {
				p.src.pos += 2
				p.quoting = false
				p.skipExtended(*flags)
				var err error
				if atom, err = p.parseQuantifier(atom, *flags); err != nil {
					return nil, err
				}
			}
			items = append(items, atom)
			continue
		}

		p.skipExtended(*flags)
		if c := p.src.peek(); c == -1 || c == '|' || c == ')' {
			break
		}
		atom, err := p.parseAtom(flags)
		if err != nil {
			return nil, err
		}
		if atom == nil {
			continue
		}
		p.skipExtended(*flags)
		if atom, err = p.parseQuantifier(atom, *flags); err != nil {
			return nil, err
		}
		items = append(items, atom)
	}
	switch len(items) {
	case 0:
		return &node{op: nodeEmpty, pos: start}, nil
	case 1:
		return items[0], nil
	}
	return &node{op: nodeConcat, pos: start, subs: items}, nil
}

func (p *parser) skipExtended(flags Flag) {
	if flags&FlagExtended == 0 {
		return
	}
	for !p.src.atEnd() {
		switch p.src.peek() {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.src.pos++
		case '#':
			for !p.src.atEnd() && p.src.next() != '\n' {
			}
		default:
			return
		}
	}
}

func (p *parser) literal(c rune, flags Flag, pos int) *node {
	n := &node{op: nodeLiteral, pos: pos, r: c}
	if flags&FlagCaseless != 0 && p.hasOtherCase(c) {
		n.fold = true
	}
	return n
}

func (p *parser) hasOtherCase(c rune) bool {
	if !p.src.utf {
		return c < 0x80 && 'a' <= c|0x20 && c|0x20 <= 'z'
	}
	return unicode.SimpleFold(c) != c
}

// braces parses a {n}, {n,} or {n,m} quantifier at the cursor without
// consuming it. ok is false if the text there is not a quantifier, in which
// case "{" is an ordinary character.
func (p *parser) braces() (lo, hi, size int, ok bool, err error) {
	save := p.src.pos
	defer func() { p.src.pos = save }()
	if !p.src.eat('{') {
		return 0, 0, 0, false, nil
	}
	lo, ok = p.src.decimal()
	if !ok {
		return 0, 0, 0, false, nil
	}
	hi = lo
	if p.src.eat(',') {
		hi = repeatInfinite
		if n, ok := p.src.decimal(); ok {
			hi = n
		}
	}
	if !p.src.eat('}') {
		return 0, 0, 0, false, nil
	}
	if lo > maxRepeat || hi > maxRepeat {
		return 0, 0, 0, false, newSyntaxError(save, "number too big in {} quantifier")
	}
	if hi != repeatInfinite && hi < lo {
		return 0, 0, 0, false, newSyntaxError(save, "numbers out of order in {} quantifier")
	}
	return lo, hi, p.src.pos - save, true, nil
}

func (p *parser) atQuantifier() (bool, error) {
	switch p.src.peek() {
	case '*', '+', '?':
		return true, nil
	case '{':
		_, _, _, ok, err := p.braces()
		return ok, err
	}
	return false, nil
}

func (p *parser) parseQuantifier(atom *node, flags Flag) (*node, error) {
	start := p.src.pos
	var lo, hi int
	switch p.src.peek() {
	case '*':
		lo, hi = 0, repeatInfinite
		p.src.pos++
	case '+':
		lo, hi = 1, repeatInfinite
		p.src.pos++
	case '?':
		lo, hi = 0, 1
		p.src.pos++
	case '{':
		var size int
		var ok bool
		var err error
		lo, hi, size, ok, err = p.braces()
		if err != nil {
			return nil, err
		}
		if !ok {
			return atom, nil
		}
		p.src.pos += size
	default:
		return atom, nil
	}
	if atom.isZeroWidth() {
		return nil, newSyntaxError(start, "quantifier does not follow a repeatable item")
	}
	rep := &node{
		op:     nodeRepeat,
		pos:    start,
		min:    lo,
		max:    hi,
		greedy: flags&FlagUngreedy == 0,
		subs:   []*node{atom},
	}
	if p.src.eat('?') {
		rep.greedy = !rep.greedy
	} else if p.src.eat('+') {
		rep.possessive = true
		rep.greedy = true
	}
	p.skipExtended(flags)
	if again, err := p.atQuantifier(); err != nil {
		return nil, err
	} else if again {
		return nil, newSyntaxError(p.src.pos, "nested quantifier must be enclosed in a group")
	}
	return rep, nil
}

func (p *parser) parseAtom(flags *Flag) (*node, error) {
	start := p.src.pos
	c := p.src.next()
	switch c {
	case '(':
		return p.parseGroup(flags, start)
	case '[':
		cls, err := p.parseClass(*flags, start)
		if err != nil {
			return nil, err
		}
		return &node{op: nodeClass, pos: start, cls: cls}, nil
	case '.':
		if *flags&FlagDotAll != 0 {
			return &node{op: nodeAnyNL, pos: start}, nil
		}
		return &node{op: nodeAny, pos: start}, nil
	case '^':
		kind := assertBOL
		if *flags&FlagMultiline != 0 {
			kind = assertMultilineBOL
		}
		return &node{op: nodeAssert, pos: start, assert: kind}, nil
	case '$':
		kind := assertEOL
		if *flags&FlagMultiline != 0 {
			kind = assertMultilineEOL
		} else if p.flags&FlagDollarEndOnly != 0 {
			kind = assertEOLOnly
		}
		return &node{op: nodeAssert, pos: start, assert: kind}, nil
	case '\\':
		return p.parseEscape(*flags, start)
	case '*', '+', '?':
		return nil, newSyntaxError(start, "quantifier does not follow a repeatable item")
	case '{':
		p.src.pos = start
		_, _, _, ok, err := p.braces()
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, newSyntaxError(start, "quantifier does not follow a repeatable item")
		}
		p.src.pos++
	}
	return p.literal(c, *flags, start), nil
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > maxNestingDeep {
		return newSyntaxError(pos, "parentheses are too deeply nested")
	}
	return nil
}

// closeGroup consumes the ")" that ends a group.
func (p *parser) closeGroup() error {
	p.depth--
	if !p.src.eat(')') {
		return newSyntaxError(p.src.pos, "missing closing parenthesis")
	}
	return nil
}

func (p *parser) parseGroup(flags *Flag, start int) (*node, error) {
	if p.src.peek() == '*' {
		return nil, newSyntaxError(start, "(*VERB) control verbs are not supported")
	}
	if !p.src.eat('?') {
		return p.parseCapture(*flags, start, "")
	}

	switch {
	case p.src.eat('#'):
		for {
			if p.src.atEnd() {
				return nil, newSyntaxError(p.src.pos, "missing ) after comment")
			}
			if p.src.next() == ')' {
				return nil, nil
			}
		}
	case p.src.eat(':'):
		return p.parseSubgroup(*flags, start, nil)
	case p.src.eat('>'):
		return p.parseSubgroup(*flags, start, &node{op: nodeAtomic, pos: start})
	case p.src.eat('='):
		return p.parseLook(*flags, start, false, false)
	case p.src.eat('!'):
		return p.parseLook(*flags, start, false, true)
	case p.src.eatPrefix("<="):
		return p.parseLook(*flags, start, true, false)
	case p.src.eatPrefix("<!"):
		return p.parseLook(*flags, start, true, true)
	case p.src.eat('<'):
		return p.parseNamedCapture(*flags, start, '>')
	case p.src.eat('\''):
		return p.parseNamedCapture(*flags, start, '\'')
	case p.src.eatPrefix("P<"):
		return p.parseNamedCapture(*flags, start, '>')
	case p.src.eatPrefix("P="):
		name, err := p.parseName(')')
		if err != nil {
			return nil, err
		}
		return p.namedBackref(name, *flags, start), nil
	case p.src.eat('('):
		return p.parseConditional(flags, start)
	case p.src.eat('|'):
		return nil, newSyntaxError(start, "branch reset groups are not supported")
	}

	switch c := p.src.peek(); {
	case c == 'R' || c == '&' || c == '+' || isDigit(c) || p.src.hasPrefix("P>") || (c == '-' && isDigit(p.src.peekAt(1))):
		return nil, newSyntaxError(start, "recursion and subroutine calls are not supported")
	}

	// Option setting: (?imsxU-imsxU) or (?imsxU-imsxU:...)
	on, off := Flag(0), Flag(0)
	negative := false
	for {
		c := p.src.next()
		switch c {
		case ')':
			*flags = (*flags | on) &^ off
			return nil, nil
		case ':':
			return p.parseSubgroup((*flags|on)&^off, start, nil)
		case '-':
			if negative {
				return nil, newSyntaxError(p.src.pos-1, "unrecognized character after (? or (?-")
			}
			negative = true
			continue
		}
		f, ok := inlineFlag(c)
		if !ok {
			if c == -1 {
				return nil, newSyntaxError(p.src.pos, "missing closing parenthesis")
			}
			return nil, newSyntaxError(p.src.pos-1, "unrecognized character after (? or (?-")
		}
		if negative {
			off |= f
		} else {
			on |= f
		}
	}
}

// parseSubgroup parses a group body. With wrap nil the group only scopes
// options; otherwise the body becomes wrap's child.
func (p *parser) parseSubgroup(flags Flag, start int, wrap *node) (*node, error) {
	if err := p.enter(start); err != nil {
		return nil, err
	}
	body, err := p.parseAlternation(flags)
	if err != nil {
		return nil, err
	}
	if err := p.closeGroup(); err != nil {
		return nil, err
	}
	if wrap == nil {
		// A grouped assertion may be quantified.
		if body.isZeroWidth() {
			return &node{op: nodeConcat, pos: start, subs: []*node{body}}, nil
		}
		return body, nil
	}
	wrap.subs = []*node{body}
	return wrap, nil
}

func (p *parser) parseCapture(flags Flag, start int, name string) (*node, error) {
	if p.ncap >= maxGroups {
		return nil, newCompileError(start, "too many capturing groups")
	}
	p.ncap++
	n := &node{op: nodeCapture, pos: start, index: p.ncap, name: name}
	p.groupNames = append(p.groupNames, name)
	if name != "" {
		p.names[name] = n.index
	}
	return p.parseSubgroup(flags, start, n)
}

func (p *parser) parseNamedCapture(flags Flag, start int, term rune) (*node, error) {
	namePos := p.src.pos
	name, err := p.parseName(term)
	if err != nil {
		return nil, err
	}
	if _, dup := p.names[name]; dup {
		return nil, newSyntaxError(namePos, "two named subpatterns have the same name")
	}
	return p.parseCapture(flags, start, name)
}

func (p *parser) parseLook(flags Flag, start int, behind, negate bool) (*node, error) {
	p.lookDepth++
	n, err := p.parseSubgroup(flags, start, &node{op: nodeLook, pos: start, behind: behind, negate: negate})
	p.lookDepth--
	return n, err
}

// parseName reads a group name followed by term.
func (p *parser) parseName(term rune) (string, error) {
	start := p.src.pos
	c := p.src.peek()
	if isDigit(c) {
		return "", newSyntaxError(start, "group name must start with a non-digit")
	}
	for {
		c = p.src.peek()
		if c == term {
			break
		}
		if c == -1 || !isASCIIWordChar(c) {
			return "", newSyntaxError(p.src.pos, "missing terminator for subpattern name")
		}
		p.src.pos++
	}
	name := string(p.src.src[start:p.src.pos])
	p.src.pos++
	if name == "" {
		return "", newSyntaxError(start, "group name expected")
	}
	if len(name) > maxNameLength {
		return "", newSyntaxError(start, "subpattern name is too long (maximum 32 characters)")
	}
	return name, nil
}

func (p *parser) namedBackref(name string, flags Flag, pos int) *node {
	n := &node{op: nodeBackref, pos: pos, name: name, fold: flags&FlagCaseless != 0}
	p.namedRefs = append(p.namedRefs, n)
	return n
}

func (p *parser) parseConditional(flags *Flag, start int) (*node, error) {
	n := &node{op: nodeCond, pos: start}
	condPos := p.src.pos
	switch c := p.src.peek(); {
	case isDigit(c), c == '+', c == '-':
		sign := 0
		if p.src.eat('+') {
			sign = 1
		} else if p.src.eat('-') {
			sign = -1
		}
		num, ok := p.src.decimal()
		if !ok || !p.src.eat(')') {
			return nil, newSyntaxError(p.src.pos, "malformed number or name after (?(")
		}
		switch sign {
		case 1:
			num += p.ncap
		case -1:
			num = p.ncap - num + 1
		}
		if num <= 0 {
			return nil, newSyntaxError(condPos, "invalid condition (?(0)")
		}
		n.index = num
	case c == '<' || c == '\'':
		term := rune('>')
		if p.src.next() == '\'' {
			term = '\''
		}
		name, err := p.parseName(term)
		if err != nil {
			return nil, err
		}
		if !p.src.eat(')') {
			return nil, newSyntaxError(p.src.pos, "malformed number or name after (?(")
		}
		n.name = name
		p.namedRefs = append(p.namedRefs, n)
	case c == '?':
		p.src.pos++
		var behind, negate bool
		switch {
		case p.src.eat('='):
		case p.src.eat('!'):
			negate = true
		case p.src.eatPrefix("<="):
			behind = true
		case p.src.eatPrefix("<!"):
			behind, negate = true, true
		default:
			return nil, newSyntaxError(p.src.pos, "assertion expected after (?(")
		}
		look, err := p.parseLook(*flags, condPos-1, behind, negate)
		if err != nil {
			return nil, err
		}
		n.cond = look
	case p.src.hasPrefix("R)") || p.src.hasPrefix("R&") || (c == 'R' && isDigit(p.src.peekAt(1))) || p.src.hasPrefix("DEFINE)"):
		return nil, newSyntaxError(condPos, "recursion conditions and DEFINE are not supported")
	default:
		name, err := p.parseName(')')
		if err != nil {
			return nil, err
		}
		n.name = name
		p.namedRefs = append(p.namedRefs, n)
	}

	if err := p.enter(start); err != nil {
		return nil, err
	}
	body, err := p.parseAlternation(*flags)
	if err != nil {
		return nil, err
	}
	if err := p.closeGroup(); err != nil {
		return nil, err
	}
	if body.op == nodeAlternate {
		if len(body.subs) > 2 {
			return nil, newSyntaxError(start, "conditional group contains more than two branches")
		}
		n.subs = body.subs
	} else {
		n.subs = []*node{body}
	}
	return n, nil
}

func (p *parser) parseEscape(flags Flag, start int) (*node, error) {
	if p.src.atEnd() {
		return nil, newSyntaxError(start, `\ at end of pattern`)
	}
	ucp := p.flags&FlagUCP != 0
	c := p.src.next()
	switch c {
	case 'd', 'D', 'w', 'W', 's', 'S', 'h', 'H', 'v', 'V':
		return &node{op: nodeClass, pos: start, cls: escapeClass(c, ucp)}, nil
	case 'p', 'P':
		cls, err := p.parseProperty(c == 'P', start)
		if err != nil {
			return nil, err
		}
		return &node{op: nodeClass, pos: start, cls: cls}, nil
	case 'b':
		return &node{op: nodeAssert, pos: start, assert: assertWordBoundary}, nil
	case 'B':
		return &node{op: nodeAssert, pos: start, assert: assertNotWordBoundary}, nil
	case 'A':
		return &node{op: nodeAssert, pos: start, assert: assertBeginText}, nil
	case 'z':
		return &node{op: nodeAssert, pos: start, assert: assertEndText}, nil
	case 'Z':
		return &node{op: nodeAssert, pos: start, assert: assertEndTextNL}, nil
	case 'G':
		return &node{op: nodeAssert, pos: start, assert: assertStartOffset}, nil
	case 'K':
		if p.lookDepth > 0 {
			return nil, newSyntaxError(start, `\K is not allowed in lookarounds`)
		}
		return &node{op: nodeKeep, pos: start}, nil
	case 'N':
		if p.src.peek() == '{' {
			return nil, newSyntaxError(start, `\N{name} is not supported`)
		}
		return &node{op: nodeAny, pos: start}, nil
	case 'R':
		return lineBreak(start), nil
	case 'X', 'C':
		return nil, newSyntaxError(start, "unsupported escape sequence")
	case 'Q':
		p.quoting = true
		return nil, nil
	case 'E':
		return nil, nil
	case 'g':
		return p.parseGBackref(flags, start)
	case 'k':
		var term rune
		switch p.src.next() {
		case '<':
			term = '>'
		case '\'':
			term = '\''
		case '{':
			term = '}'
		default:
			return nil, newSyntaxError(start, `\k is not followed by a braced, angle-bracketed, or quoted name`)
		}
		name, err := p.parseName(term)
		if err != nil {
			return nil, err
		}
		return p.namedBackref(name, flags, start), nil
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		digitsPos := p.src.pos - 1
		p.src.pos = digitsPos
		n, _ := p.src.decimal()
		if n < 8 || n <= p.ncap {
			return &node{op: nodeBackref, pos: start, index: n, fold: flags&FlagCaseless != 0}, nil
		}
		p.src.pos = digitsPos
		if c >= '8' {
			p.src.pos++
			return p.literal(c, flags, start), nil
		}
		r, err := p.octal(3, start)
		if err != nil {
			return nil, err
		}
		return p.literal(r, flags, start), nil
	}
	r, err := p.parseCharEscape(c, start)
	if err != nil {
		return nil, err
	}
	return p.literal(r, flags, start), nil
}

func (p *parser) parseGBackref(flags Flag, start int) (*node, error) {
	if p.src.peek() == '<' || p.src.peek() == '\'' {
		return nil, newSyntaxError(start, "subroutine calls are not supported")
	}
	braced := p.src.eat('{')
	numPos := p.src.pos
	relative := p.src.eat('-')
	if !relative && braced && !isDigit(p.src.peek()) {
		name, err := p.parseName('}')
		if err != nil {
			return nil, err
		}
		return p.namedBackref(name, flags, start), nil
	}
	num, ok := p.src.decimal()
	if !ok {
		return nil, newSyntaxError(numPos, `\g is not followed by a braced, angle-bracketed, or quoted name/number or by a plain number`)
	}
	if braced && !p.src.eat('}') {
		return nil, newSyntaxError(p.src.pos, `\g is not followed by a braced, angle-bracketed, or quoted name/number or by a plain number`)
	}
	if num == 0 {
		return nil, newSyntaxError(numPos, "a numbered reference must not be zero")
	}
	if relative {
		num = p.ncap - num + 1
		if num <= 0 {
			return nil, newSyntaxError(numPos, "reference to non-existent subpattern")
		}
	}
	return &node{op: nodeBackref, pos: start, index: num, fold: flags&FlagCaseless != 0}, nil
}

// lineBreak builds the equivalent of (?>\r\n|\n|\x0b|\f|\r|\x85|\x{2028}|\x{2029}).
func lineBreak(pos int) *node {
	crlf := &node{op: nodeConcat, pos: pos, subs: []*node{
		{op: nodeLiteral, pos: pos, r: '\r'},
		{op: nodeLiteral, pos: pos, r: '\n'},
	}}
	single := &node{op: nodeClass, pos: pos, cls: rangesClass(verticalSpace...)}
	return &node{op: nodeAtomic, pos: pos, subs: []*node{
		{op: nodeAlternate, pos: pos, subs: []*node{crlf, single}},
	}}
}

func (p *parser) parseProperty(upper bool, start int) (*charClass, error) {
	negate := upper
	var name string
	if p.src.eat('{') {
		if p.src.eat('^') {
			negate = !negate
		}
		nameStart := p.src.pos
		for {
			c := p.src.peek()
			if c == '}' {
				break
			}
			if c == -1 || !(isASCIIWordChar(c) || c == '&') {
				return nil, newSyntaxError(p.src.pos, `malformed \P or \p sequence`)
			}
			p.src.pos++
		}
		name = string(p.src.src[nameStart:p.src.pos])
		p.src.pos++
	} else {
		c := p.src.next()
		if c == -1 || !('a' <= c|0x20 && c|0x20 <= 'z') {
			return nil, newSyntaxError(start, `malformed \P or \p sequence`)
		}
		name = string(c)
	}
	cls, ok := propertyClass(name, negate)
	if !ok {
		return nil, newSyntaxError(start, `unknown property name after \P or \p`)
	}
	return cls, nil
}

// parseCharEscape decodes an escape that stands for a single character.
// c is the character after the backslash.
func (p *parser) parseCharEscape(c rune, start int) (rune, error) {
	switch c {
	case 'a':
		return 0x07, nil
	case 'e':
		return 0x1B, nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '0':
		p.src.pos--
		return p.octal(3, start)
	case 'o':
		if !p.src.eat('{') {
			return 0, newSyntaxError(start, `missing opening brace after \o`)
		}
		var v rune
		digits := 0
		for c := p.src.peek(); '0' <= c && c <= '7'; c = p.src.peek() {
			p.src.pos++
			if v <= unicode.MaxRune {
				v = v*8 + c - '0'
			}
			digits++
		}
		if digits == 0 || !p.src.eat('}') {
			return 0, newSyntaxError(p.src.pos, `non-octal character in \o{} (closing brace missing?)`)
		}
		return p.checkChar(v, start)
	case 'x':
		var v rune
		if p.src.eat('{') {
			digits := 0
			for isHexDigit(p.src.peek()) {
				if v <= unicode.MaxRune {
					v = v*16 + hexValue(p.src.next())
				} else {
					p.src.next()
				}
				digits++
			}
			if digits == 0 || !p.src.eat('}') {
				return 0, newSyntaxError(p.src.pos, `non-hex character in \x{} (closing brace missing?)`)
			}
			return p.checkChar(v, start)
		}
		for i := 0; i < 2 && isHexDigit(p.src.peek()); i++ {
			v = v*16 + hexValue(p.src.next())
		}
		return v, nil
	case 'u':
		var v rune
		for i := 0; i < 4; i++ {
			if !isHexDigit(p.src.peek()) {
				return 0, newSyntaxError(start, `\u must be followed by four hex digits`)
			}
			v = v*16 + hexValue(p.src.next())
		}
		return p.checkChar(v, start)
	case 'c':
		x := p.src.next()
		if x == -1 {
			return 0, newSyntaxError(start, `\c at end of pattern`)
		}
		if x < 0x20 || x > 0x7E {
			return 0, newSyntaxError(start, `\c must be followed by a printable ASCII character`)
		}
		if 'a' <= x && x <= 'z' {
			x -= 'a' - 'A'
		}
		return x ^ 0x40, nil
	}
	if c < 0x80 && c != '_' && isASCIIWordChar(c) {
		return 0, newSyntaxError(start, `unrecognized character follows \`)
	}
	return c, nil
}

// octal reads up to n octal digits at the cursor.
func (p *parser) octal(n int, start int) (rune, error) {
	var v rune
	for i := 0; i < n; i++ {
		c := p.src.peek()
		if c < '0' || c > '7' {
			break
		}
		p.src.pos++
		v = v*8 + c - '0'
	}
	return p.checkChar(v, start)
}

func (p *parser) checkChar(v rune, start int) (rune, error) {
	if !p.src.utf {
		if v > 0xFF {
			return 0, newSyntaxError(start, "character value in escape sequence is too large")
		}
		return v, nil
	}
	if v > unicode.MaxRune {
		return 0, newSyntaxError(start, "character value in escape sequence is too large")
	}
	if isSurrogate(v) {
		return 0, newSyntaxError(start, "disallowed Unicode code point (>= 0xd800 && <= 0xdfff)")
	}
	return v, nil
}

func (p *parser) parseClass(flags Flag, start int) (*charClass, error) {
	cls := &charClass{}
	var lits charSet
	if p.src.eat('^') {
		cls.negate = true
	}
	first := true
	for {
		if p.src.atEnd() {
			return nil, newSyntaxError(start, "missing terminating ] for character class")
		}
		var lo rune
		if p.quoting {
			if p.src.eatPrefix(`\E`) {
				p.quoting = false
				continue
			}
			lo = p.src.next()
		} else {
			if p.src.peek() == ']' && !first {
				p.src.pos++
				break
			}
			if p.src.peek() == '[' {
				posix, ok, err := p.parsePosixClass()
				if err != nil {
					return nil, err
				}
				if ok {
					first = false
					cls.add(posix)
					continue
				}
			}
			r, set, skip, err := p.parseClassAtom()
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			first = false
			if set != nil {
				cls.add(set)
				if p.src.peek() == '-' && p.src.peekAt(1) != ']' && p.src.peekAt(1) != -1 {
					return nil, newSyntaxError(p.src.pos, "invalid range in character class")
				}
				continue
			}
			lo = r
		}
		first = false

		if p.src.peek() == '-' && p.src.peekAt(1) != ']' && p.src.peekAt(1) != -1 {
			dash := p.src.pos
			p.src.pos++
			var hi rune
			if p.quoting {
				hi = p.src.next()
			} else {
				r, set, skip, err := p.parseClassAtom()
				if err != nil {
					return nil, err
				}
				if set != nil || skip {
					return nil, newSyntaxError(dash, "invalid range in character class")
				}
				hi = r
			}
			if hi < lo {
				return nil, newSyntaxError(dash, "range out of order in character class")
			}
			lits.unionRange(lo, hi)
			continue
		}
		lits.unionChar(lo)
	}
	if flags&FlagCaseless != 0 {
		lits.foldCase(p.src.utf)
	}
	cls.set.union(&lits)
	return cls, nil
}

// parseClassAtom reads one member of a bracket expression: either a single
// character or a class escape. skip is set for \Q and \E.
func (p *parser) parseClassAtom() (r rune, set *charClass, skip bool, err error) {
	start := p.src.pos
	c := p.src.next()
	if c != '\\' {
		return c, nil, false, nil
	}
	if p.src.atEnd() {
		return 0, nil, false, newSyntaxError(start, `\ at end of pattern`)
	}
	c = p.src.next()
	switch c {
	case 'd', 'D', 'w', 'W', 's', 'S', 'h', 'H', 'v', 'V':
		return 0, escapeClass(c, p.flags&FlagUCP != 0), false, nil
	case 'p', 'P':
		cls, err := p.parseProperty(c == 'P', start)
		return 0, cls, false, err
	case 'b':
		return '\b', nil, false, nil
	case 'Q':
		p.quoting = true
		return 0, nil, true, nil
	case 'E':
		return 0, nil, true, nil
	case 'B', 'R', 'X', 'N', 'A', 'z', 'Z', 'G', 'K', 'g', 'k':
		return 0, nil, false, newSyntaxError(start, "escape sequence is invalid in character class")
	case '1', '2', '3', '4', '5', '6', '7':
		p.src.pos--
		r, err := p.octal(3, start)
		return r, nil, false, err
	case '8', '9':
		return c, nil, false, nil
	}
	r, err = p.parseCharEscape(c, start)
	return r, nil, false, err
}

// parsePosixClass parses [:name:] or [:^name:] at the cursor. If the text
// is not a POSIX class the cursor is left unchanged and ok is false.
func (p *parser) parsePosixClass() (cls *charClass, ok bool, err error) {
	start := p.src.pos
	delim := p.src.peekAt(1)
	if delim != ':' && delim != '.' && delim != '=' {
		return nil, false, nil
	}
	i := 2
	for {
		c := p.src.peekAt(i)
		if c == -1 || c == ']' {
			return nil, false, nil
		}
		if c == delim && p.src.peekAt(i+1) == ']' {
			break
		}
		i++
	}
	if delim != ':' {
		return nil, false, newSyntaxError(start, "POSIX collating elements are not supported")
	}
	body := string(p.src.src[start+2 : start+i])
	negate := false
	if len(body) > 0 && body[0] == '^' {
		negate = true
		body = body[1:]
	}
	cls, ok = posixNamedClass(body, negate, p.flags&FlagUCP != 0)
	if !ok {
		return nil, false, newSyntaxError(start, "unknown POSIX class name")
	}
	p.src.pos = start + i + 2
	return cls, true, nil
}
