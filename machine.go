package pcre

import (
	"bytes"
	"context"
	"slices"
	"unicode"
)

// Limits bounds the work a single match call may do. A zero field means
// the default.
type Limits struct {
	// MatchLimit caps the number of instructions executed, summed over every
	// start position tried by one call.
	MatchLimit int
	// StackLimit caps the number of pending backtrack choice points.
	StackLimit int
}

const (
	defaultMatchLimit = 10_000_000
	defaultStackLimit = 10_000_000
)

// DefaultLimits returns the limits used by a freshly compiled [Regexp].
func DefaultLimits() Limits {
	return Limits{MatchLimit: defaultMatchLimit, StackLimit: defaultStackLimit}
}

func (l Limits) withDefaults() Limits {
	if l.MatchLimit <= 0 {
		l.MatchLimit = defaultMatchLimit
	}
	if l.StackLimit <= 0 {
		l.StackLimit = defaultStackLimit
	}
	return l
}

// How often, in steps, a context is checked for cancellation.
const cancelCheckInterval = 1 << 10

type stack[T any] []T

func (s *stack[T]) push(v T) { *s = append(*s, v) }

func (s *stack[T]) pop() T {
	i := len(*s) - 1
	v := (*s)[i]
	*s = (*s)[:i]
	return v
}

func (s *stack[T]) truncate(n int) { *s = (*s)[:n] }

// frame is a choice point: where to resume, and how much of the trail to
// undo, when the current path fails.
type frame struct {
	pc    int
	pos   int
	trail int
}

// trailEntry records the previous value of a slot overwritten after the
// newest choice point was pushed.
type trailEntry struct {
	slot int
	old  int
}

type machine struct {
	prog  *program
	study *studyData
	subj  subject
	flags Flag
	// The start offset of the call, for \G and NOTEMPTY_ATSTART.
	start int

	slots []int
	stack stack[frame]
	trail stack[trailEntry]

	steps  int
	limits Limits
	ctx    context.Context
	done   <-chan struct{}
}

func (p *program) getMachine() *machine {
	if m, ok := p.pool.Get().(*machine); ok {
		return m
	}
	return &machine{
		prog:  p,
		slots: make([]int, p.nslot),
	}
}

func (p *program) putMachine(m *machine) {
	m.subj = subject{}
	m.ctx = nil
	m.done = nil
	m.study = nil
	p.pool.Put(m)
}

func (m *machine) reset(ctx context.Context, b []byte, start int, flags Flag, limits Limits, st *studyData) {
	m.subj = subject{b: b, utf: m.prog.flags&FlagUTF != 0}
	m.start = start
	m.flags = flags
	m.limits = limits
	m.study = st
	m.steps = 0
	m.ctx = ctx
	m.done = nil
	if ctx != nil {
		m.done = ctx.Done()
	}
}

func (m *machine) setSlot(i, v int) {
	// With no choice point pending nothing can ever be restored.
	if len(m.stack) > 0 {
		m.trail.push(trailEntry{slot: i, old: m.slots[i]})
	}
	m.slots[i] = v
}

func (m *machine) push(pc, pos int) error {
	if len(m.stack) >= m.limits.StackLimit {
		return &RuntimeError{Kind: RuntimeStackLimit, Steps: m.steps}
	}
	m.stack.push(frame{pc: pc, pos: pos, trail: len(m.trail)})
	return nil
}

func (m *machine) unwind(height int) {
	for len(m.trail) > height {
		e := m.trail.pop()
		m.slots[e.slot] = e.old
	}
}

// cut discards the choice points above the height stored in slots[reg].
func (m *machine) cut(reg int) bool {
	h := m.slots[reg]
	if h < 0 || h > len(m.stack) {
		return false
	}
	m.stack.truncate(h)
	return true
}

// search tries each start position from start until a match is found. On
// success the spans are left in m.slots.
func (m *machine) search(start int, anchored bool) (bool, error) {
	end := len(m.subj.b)
	pos := start
	for {
		if end-pos < m.prog.minLen {
			return false, nil
		}
		if !anchored && m.study != nil {
			next, ok := m.study.candidate(m.subj.b, pos)
			if !ok {
				return false, nil
			}
			pos = next
		}
		matched, err := m.run(pos)
		if matched || err != nil {
			return matched, err
		}
		if anchored || pos >= end {
			return false, nil
		}
		_, w := m.subj.decode(pos)
		pos += w
	}
}

// run makes one match attempt anchored at pos.
func (m *machine) run(pos int) (bool, error) {
	for i := range m.slots {
		m.slots[i] = -1
	}
	m.stack.truncate(0)
	m.trail.truncate(0)

	insts := m.prog.insts
	pc := 0
	for {
		m.steps++
		if m.steps > m.limits.MatchLimit {
			return false, &RuntimeError{Kind: RuntimeMatchLimit, Steps: m.steps}
		}
		if m.done != nil && m.steps%cancelCheckInterval == 0 {
			select {
			case <-m.done:
				return false, &RuntimeError{Kind: RuntimeCancelled, Steps: m.steps, Err: m.ctx.Err()}
			default:
			}
		}

		in := &insts[pc]
		ok := true
		switch in.op {
		case opFail:
			ok = false
		case opMatch:
			if pos == m.slots[0] && (m.flags&FlagNotEmpty != 0 ||
				(m.flags&FlagNotEmptyAtStart != 0 && pos == m.start)) {
				ok = false
				break
			}
			return true, nil
		case opChar:
			r, w := m.subj.decode(pos)
			if ok = w > 0 && r == rune(in.arg); ok {
				pos += w
				pc++
			}
		case opCharFold:
			r, w := m.subj.decode(pos)
			if ok = w > 0 && slices.Contains(in.r, r); ok {
				pos += w
				pc++
			}
		case opAny:
			r, w := m.subj.decode(pos)
			if ok = w > 0 && r != '\n'; ok {
				pos += w
				pc++
			}
		case opAnyNL:
			_, w := m.subj.decode(pos)
			if ok = w > 0; ok {
				pos += w
				pc++
			}
		case opClass:
			r, w := m.subj.decode(pos)
			if ok = w > 0 && m.prog.classes[in.arg].matches(r); ok {
				pos += w
				pc++
			}
		case opSplit:
			if err := m.push(in.arg2, pos); err != nil {
				return false, err
			}
			pc = in.arg
		case opJmp:
			pc = in.arg
		case opSave, opMark:
			m.setSlot(in.arg, pos)
			pc++
		case opEmptyCheck:
			if pos == m.slots[in.arg] {
				pc = in.arg2
			} else {
				pc++
			}
		case opAtomicStart:
			m.setSlot(in.arg, len(m.stack))
			pc++
		case opAtomicEnd:
			if ok = m.cut(in.arg); ok {
				pc++
			}
		case opLookStart:
			m.setSlot(in.arg, len(m.stack))
			m.setSlot(in.arg+1, pos)
			pc++
		case opLookEnd:
			saved := m.slots[in.arg+1]
			if ok = saved >= 0 && saved <= len(m.subj.b) && m.cut(in.arg); ok {
				pos = saved
				pc++
			}
		case opNegLookStart:
			m.setSlot(in.arg, len(m.stack))
			if err := m.push(in.arg2, pos); err != nil {
				return false, err
			}
			pc++
		case opNegLookEnd:
			m.cut(in.arg)
			ok = false
		case opBack:
			for i := 0; i < in.arg; i++ {
				_, w := m.subj.decodeLast(pos)
				if w == 0 {
					ok = false
					break
				}
				pos -= w
			}
			if ok {
				pc++
			}
		case opAssert:
			if ok = m.assert(assertKind(in.arg), pos); ok {
				pc++
			}
		case opBackref:
			var n int
			if n, ok = m.backref(in.arg, in.arg2 != 0, pos); ok {
				pos += n
				pc++
			}
		case opCondGroup:
			if m.slots[2*in.arg] >= 0 && m.slots[2*in.arg+1] >= 0 {
				pc++
			} else {
				pc = in.arg2
			}
		case opKeep:
			m.setSlot(0, pos)
			pc++
		default:
			ok = false
		}

		if !ok {
			if len(m.stack) == 0 {
				return false, nil
			}
			f := m.stack.pop()
			m.unwind(f.trail)
			pc, pos = f.pc, f.pos
		}
	}
}

func (m *machine) assert(kind assertKind, pos int) bool {
	b := m.subj.b
	end := len(b)
	switch kind {
	case assertBOL:
		return pos == 0 && m.flags&FlagNotBOL == 0
	case assertMultilineBOL:
		if pos == 0 {
			return m.flags&FlagNotBOL == 0
		}
		return pos < end && b[pos-1] == '\n'
	case assertEOL:
		return m.flags&FlagNotEOL == 0 && (pos == end || (pos == end-1 && b[pos] == '\n'))
	case assertEOLOnly:
		return m.flags&FlagNotEOL == 0 && pos == end
	case assertMultilineEOL:
		if pos == end {
			return m.flags&FlagNotEOL == 0
		}
		return b[pos] == '\n'
	case assertBeginText:
		return pos == 0
	case assertEndText:
		return pos == end
	case assertEndTextNL:
		return pos == end || (pos == end-1 && b[pos] == '\n')
	case assertWordBoundary, assertNotWordBoundary:
		ucp := m.prog.flags&FlagUCP != 0
		before, after := false, false
		if r, w := m.subj.decodeLast(pos); w > 0 {
			before = isWordChar(r, ucp)
		}
		if r, w := m.subj.decode(pos); w > 0 {
			after = isWordChar(r, ucp)
		}
		return (before != after) == (kind == assertWordBoundary)
	case assertStartOffset:
		return pos == m.start
	}
	return false
}

// backref reports whether the text of group g occurs at pos, and its length
// in the subject.
func (m *machine) backref(g int, fold bool, pos int) (int, bool) {
	s, e := m.slots[2*g], m.slots[2*g+1]
	if s < 0 || e < s {
		return 0, false
	}
	b := m.subj.b
	if !fold {
		if bytes.HasPrefix(b[pos:], b[s:e]) {
			return e - s, true
		}
		return 0, false
	}
	i, j := s, pos
	for i < e {
		r1, w1 := m.subj.decode(i)
		r2, w2 := m.subj.decode(j)
		if w2 == 0 || !equalFold(r1, r2, m.subj.utf) {
			return 0, false
		}
		i += w1
		j += w2
	}
	return j - pos, true
}

func equalFold(a, b rune, utf bool) bool {
	if a == b {
		return true
	}
	if !utf {
		return a < 0x80 && a^0x20 == b && 'a' <= a|0x20 && a|0x20 <= 'z'
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}
