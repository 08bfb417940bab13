package pcre

import (
	"strconv"
	"strings"
	"sync"
)

type opcode uint8

const (
	opFail opcode = iota
	opMatch
	// Match the character arg.
	opChar
	// Match any character in r, the case orbit of a literal.
	opCharFold
	// Any character except "\n".
	opAny
	// Any character.
	opAnyNL
	// Match a member of classes[arg].
	opClass
	// Continue at arg; on failure resume at arg2.
	opSplit
	opJmp
	// slots[arg] = pos
	opSave
	// slots[arg] = pos; used as an iteration start marker.
	opMark
	// If pos == slots[arg] the iteration matched empty: jump to arg2.
	opEmptyCheck
	// slots[arg] = backtrack stack height.
	opAtomicStart
	// Discard choice points pushed since slots[arg] was recorded.
	opAtomicEnd
	// slots[arg] = stack height, slots[arg+1] = pos.
	opLookStart
	// Discard choice points since the lookaround began and restore pos.
	opLookEnd
	// slots[arg] = stack height, then push a choice point at arg2.
	opNegLookStart
	// The negated body matched: cut back to slots[arg] and fail.
	opNegLookEnd
	// Move back arg characters.
	opBack
	opAssert
	// Match the text of group arg again, case-insensitively if arg2 != 0.
	opBackref
	// Continue if group arg is set, otherwise jump to arg2.
	opCondGroup
	// slots[0] = pos
	opKeep
	opCount
)

var opNames = [opCount]string{
	opFail:         "fail",
	opMatch:        "match",
	opChar:         "char",
	opCharFold:     "charfold",
	opAny:          "any",
	opAnyNL:        "anynl",
	opClass:        "class",
	opSplit:        "split",
	opJmp:          "jmp",
	opSave:         "save",
	opMark:         "mark",
	opEmptyCheck:   "emptycheck",
	opAtomicStart:  "atomic",
	opAtomicEnd:    "atomicend",
	opLookStart:    "look",
	opLookEnd:      "lookend",
	opNegLookStart: "neglook",
	opNegLookEnd:   "neglookend",
	opBack:         "back",
	opAssert:       "assert",
	opBackref:      "backref",
	opCondGroup:    "condgroup",
	opKeep:         "keep",
}

func (op opcode) String() string {
	if op < opCount {
		return opNames[op]
	}
	return "op" + strconv.Itoa(int(op))
}

type inst struct {
	op   opcode
	arg  int
	arg2 int
	// Case orbit for opCharFold.
	r []rune
}

// program is the compiled, immutable form of a pattern.
type program struct {
	insts   []inst
	classes []*charClass

	// Number of capturing groups, not counting group 0.
	ncap int
	// Total slots: two per group including group 0, then registers.
	nslot int

	flags      Flag
	minLen     int
	anchored   bool
	groupNames []string
	names      map[string]int

	// Idle machines, reused across calls.
	pool sync.Pool
}

func (p *program) String() string {
	var b strings.Builder
	for pc, in := range p.insts {
		b.WriteString(strconv.Itoa(pc))
		b.WriteString("\t")
		b.WriteString(in.op.String())
		switch in.op {
		case opChar:
			b.WriteString(" " + strconv.QuoteRune(rune(in.arg)))
		case opCharFold:
			for _, r := range in.r {
				b.WriteString(" " + strconv.QuoteRune(r))
			}
		case opClass, opJmp, opSave, opMark, opAtomicStart, opAtomicEnd, opLookStart, opLookEnd, opNegLookEnd, opBack:
			b.WriteString(" " + strconv.Itoa(in.arg))
		case opSplit, opEmptyCheck, opNegLookStart, opCondGroup, opBackref:
			b.WriteString(" " + strconv.Itoa(in.arg) + ", " + strconv.Itoa(in.arg2))
		case opAssert:
			b.WriteString(" " + assertKind(in.arg).String())
		}
		b.WriteString("\n")
	}
	return b.String()
}
