package pcre

import (
	"slices"
	"unicode"
)

const maxProgramSize = 1 << 20

type compiler struct {
	prog *program
	utf  bool
	// closed[i] is set once the code for group i has been emitted; a
	// backreference may only refer to a closed group.
	closed []bool
}

func compileProgram(res *parseResult, flags Flag) (*program, error) {
	c := compiler{
		prog: &program{
			ncap:       res.ncap,
			nslot:      2 * (res.ncap + 1),
			flags:      flags,
			groupNames: res.groupNames,
			names:      res.names,
		},
		utf:    flags&FlagUTF != 0,
		closed: make([]bool, res.ncap+1),
	}
	c.emit(inst{op: opSave, arg: 0})
	if err := c.emitNode(res.root); err != nil {
		return nil, err
	}
	c.emit(inst{op: opSave, arg: 1})
	c.emit(inst{op: opMatch})

	c.prog.minLen = res.root.minLength()
	c.prog.anchored = flags&FlagAnchored != 0 || res.root.anchoredStart()
	return c.prog, nil
}

// Returns the position of inserted instruction
func (c *compiler) emit(in inst) int {
	pc := len(c.prog.insts)
	c.prog.insts = append(c.prog.insts, in)
	return pc
}

func (c *compiler) pc() int {
	return len(c.prog.insts)
}

// newReg allocates n consecutive scratch slots after the capture slots.
func (c *compiler) newReg(n int) int {
	r := c.prog.nslot
	c.prog.nslot += n
	return r
}

func (c *compiler) emitNode(n *node) error {
	if len(c.prog.insts) > maxProgramSize {
		return newCompileError(n.pos, "regular expression is too large")
	}
	switch n.op {
	case nodeEmpty:
	case nodeLiteral:
		if n.fold {
			c.emit(inst{op: opCharFold, r: foldOrbit(n.r, c.utf)})
		} else {
			c.emit(inst{op: opChar, arg: int(n.r)})
		}
	case nodeClass:
		if r, ok := n.cls.set.single(); ok && n.cls.isSimple() && !n.cls.negate {
			c.emit(inst{op: opChar, arg: int(r)})
			break
		}
		c.prog.classes = append(c.prog.classes, n.cls)
		c.emit(inst{op: opClass, arg: len(c.prog.classes) - 1})
	case nodeAny:
		c.emit(inst{op: opAny})
	case nodeAnyNL:
		c.emit(inst{op: opAnyNL})
	case nodeAssert:
		c.emit(inst{op: opAssert, arg: int(n.assert)})
	case nodeKeep:
		c.emit(inst{op: opKeep})
	case nodeCapture:
		c.emit(inst{op: opSave, arg: 2 * n.index})
		if err := c.emitNode(n.sub()); err != nil {
			return err
		}
		c.emit(inst{op: opSave, arg: 2*n.index + 1})
		c.closed[n.index] = true
	case nodeAtomic:
		r := c.newReg(1)
		c.emit(inst{op: opAtomicStart, arg: r})
		if err := c.emitNode(n.sub()); err != nil {
			return err
		}
		c.emit(inst{op: opAtomicEnd, arg: r})
	case nodeLook:
		return c.emitLook(n)
	case nodeRepeat:
		return c.emitRepeat(n)
	case nodeConcat:
		for _, s := range n.subs {
			if err := c.emitNode(s); err != nil {
				return err
			}
		}
	case nodeAlternate:
		return c.emitAlternation(n.subs, nil)
	case nodeBackref:
		if n.index > c.prog.ncap {
			return newCompileError(n.pos, "reference to non-existent subpattern")
		}
		if !c.closed[n.index] {
			return newCompileError(n.pos, "reference to a group that is not closed")
		}
		fold := 0
		if n.fold {
			fold = 1
		}
		c.emit(inst{op: opBackref, arg: n.index, arg2: fold})
	case nodeCond:
		return c.emitCond(n)
	}
	return nil
}

// emitAlternation emits subs in order of preference. Each alternative is
// preceded by the instructions produced by prefix, if any.
func (c *compiler) emitAlternation(subs []*node, prefix func(*node) error) error {
	var jumps []int
	for i, alt := range subs {
		split := -1
		if i < len(subs)-1 {
			split = c.emit(inst{op: opSplit})
			c.prog.insts[split].arg = c.pc()
		}
		if prefix != nil {
			if err := prefix(alt); err != nil {
				return err
			}
		}
		if err := c.emitNode(alt); err != nil {
			return err
		}
		if split >= 0 {
			jumps = append(jumps, c.emit(inst{op: opJmp}))
			c.prog.insts[split].arg2 = c.pc()
		}
	}
	for _, j := range jumps {
		c.prog.insts[j].arg = c.pc()
	}
	return nil
}

func (c *compiler) emitLook(n *node) error {
	body := n.sub()
	emitBody := func() error {
		if !n.behind {
			return c.emitNode(body)
		}
		alts := []*node{body}
		if body.op == nodeAlternate {
			alts = body.subs
		}
		return c.emitAlternation(alts, func(alt *node) error {
			l, ok := alt.fixedLength()
			if !ok {
				return newCompileError(n.pos, "lookbehind assertion is not fixed length")
			}
			if l > 0 {
				c.emit(inst{op: opBack, arg: l})
			}
			return nil
		})
	}

	if !n.negate {
		r := c.newReg(2)
		c.emit(inst{op: opLookStart, arg: r})
		if err := emitBody(); err != nil {
			return err
		}
		c.emit(inst{op: opLookEnd, arg: r})
		return nil
	}
	r := c.newReg(1)
	start := c.emit(inst{op: opNegLookStart, arg: r})
	if err := emitBody(); err != nil {
		return err
	}
	c.emit(inst{op: opNegLookEnd, arg: r})
	c.prog.insts[start].arg2 = c.pc()
	return nil
}

func (c *compiler) emitCond(n *node) error {
	yes := n.subs[0]
	no := &node{op: nodeEmpty, pos: n.pos}
	if len(n.subs) > 1 {
		no = n.subs[1]
	}
	if n.cond != nil {
		// (?(?=X)yes|no) runs as (?:(?=X)yes|(?!X)no).
		inverse := *n.cond
		inverse.negate = !inverse.negate
		return c.emitAlternation([]*node{
			{op: nodeConcat, pos: n.pos, subs: []*node{n.cond, yes}},
			{op: nodeConcat, pos: n.pos, subs: []*node{&inverse, no}},
		}, nil)
	}
	if n.index > c.prog.ncap {
		return newCompileError(n.pos, "reference to non-existent subpattern")
	}
	cond := c.emit(inst{op: opCondGroup, arg: n.index})
	if err := c.emitNode(yes); err != nil {
		return err
	}
	jmp := c.emit(inst{op: opJmp})
	c.prog.insts[cond].arg2 = c.pc()
	if err := c.emitNode(no); err != nil {
		return err
	}
	c.prog.insts[jmp].arg = c.pc()
	return nil
}

func (c *compiler) emitRepeat(n *node) error {
	sub := n.sub()
	if n.possessive {
		inner := *n
		inner.possessive = false
		return c.emitNode(&node{op: nodeAtomic, pos: n.pos, subs: []*node{&inner}})
	}
	if n.max == 0 {
		return nil
	}
	if n.max == repeatInfinite {
		if n.min == 0 {
			return c.emitStar(sub, n.greedy)
		}
		for i := 0; i < n.min-1; i++ {
			if err := c.emitNode(sub); err != nil {
				return err
			}
		}
		return c.emitPlus(sub, n.greedy)
	}

	for i := 0; i < n.min; i++ {
		if err := c.emitNode(sub); err != nil {
			return err
		}
	}
	var splits []int
	for i := n.min; i < n.max; i++ {
		splits = append(splits, c.emit(inst{op: opSplit}))
		if err := c.emitNode(sub); err != nil {
			return err
		}
	}
	exit := c.pc()
	for _, s := range splits {
		c.patchSplit(s, s+1, exit, n.greedy)
	}
	return nil
}

// patchSplit points a split at body and exit in the order the quantifier
// prefers them.
func (c *compiler) patchSplit(pc, body, exit int, greedy bool) {
	in := &c.prog.insts[pc]
	if greedy {
		in.arg, in.arg2 = body, exit
	} else {
		in.arg, in.arg2 = exit, body
	}
}

func (c *compiler) emitStar(sub *node, greedy bool) error {
	loop := c.emit(inst{op: opSplit})
	check, err := c.emitIteration(sub)
	if err != nil {
		return err
	}
	c.emit(inst{op: opJmp, arg: loop})
	exit := c.pc()
	c.patchSplit(loop, loop+1, exit, greedy)
	if check >= 0 {
		c.prog.insts[check].arg2 = exit
	}
	return nil
}

func (c *compiler) emitPlus(sub *node, greedy bool) error {
	body := c.pc()
	check, err := c.emitIteration(sub)
	if err != nil {
		return err
	}
	split := c.emit(inst{op: opSplit})
	exit := c.pc()
	c.patchSplit(split, body, exit, greedy)
	if check >= 0 {
		c.prog.insts[check].arg2 = exit
	}
	return nil
}

// emitIteration emits one pass of a loop body. A body that can match empty
// is bracketed by mark/emptycheck so that an empty pass leaves the loop; the
// position of the emptycheck is returned for patching, or -1.
func (c *compiler) emitIteration(sub *node) (int, error) {
	if sub.minLength() > 0 {
		return -1, c.emitNode(sub)
	}
	r := c.newReg(1)
	c.emit(inst{op: opMark, arg: r})
	if err := c.emitNode(sub); err != nil {
		return -1, err
	}
	return c.emit(inst{op: opEmptyCheck, arg: r}), nil
}

// foldOrbit returns every case variant of r, r included, in ascending order.
func foldOrbit(r rune, utf bool) []rune {
	if !utf {
		if 'a' <= r|0x20 && r|0x20 <= 'z' {
			return []rune{r &^ 0x20, r | 0x20}
		}
		return []rune{r}
	}
	orbit := []rune{r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		orbit = append(orbit, f)
	}
	slices.Sort(orbit)
	return orbit
}
