package pcre

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"unicode"

	"github.com/pkg/errors"
)

// The serialized form is
//
//	magic, version,
//	flags, pattern, ncap, nslot, minLen, anchored,
//	group names, classes, instructions,
//	CRC-32 (IEEE, little endian) of everything before it.
//
// Integers are uvarints and strings are length-prefixed.
const (
	dumpMagic   = "PCRE"
	dumpVersion = 1

	maxClassDepth = 16
)

// Dump serializes the compiled pattern. The result can be turned back into
// an equivalent Regexp with [Load], also by a different process. Study data
// and limits are not included.
func (re *Regexp) Dump() []byte {
	p := re.prog
	b := []byte(dumpMagic)
	b = append(b, dumpVersion)
	b = binary.AppendUvarint(b, uint64(p.flags))
	b = appendString(b, re.pattern)
	b = binary.AppendUvarint(b, uint64(p.ncap))
	b = binary.AppendUvarint(b, uint64(p.nslot))
	b = binary.AppendUvarint(b, uint64(p.minLen))
	b = appendBool(b, p.anchored)
	for _, name := range p.groupNames {
		b = appendString(b, name)
	}
	b = binary.AppendUvarint(b, uint64(len(p.classes)))
	for _, cls := range p.classes {
		b = appendClass(b, cls)
	}
	b = binary.AppendUvarint(b, uint64(len(p.insts)))
	for _, in := range p.insts {
		b = append(b, byte(in.op))
		b = binary.AppendUvarint(b, uint64(in.arg))
		b = binary.AppendUvarint(b, uint64(in.arg2))
		b = binary.AppendUvarint(b, uint64(len(in.r)))
		for _, r := range in.r {
			b = binary.AppendUvarint(b, uint64(r))
		}
	}
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func appendClass(b []byte, cls *charClass) []byte {
	b = appendBool(b, cls.negate)
	b = binary.AppendUvarint(b, uint64(len(cls.set.chars)))
	for _, r := range cls.set.chars {
		b = binary.AppendUvarint(b, uint64(r.lo))
		b = binary.AppendUvarint(b, uint64(r.hi))
	}
	b = binary.AppendUvarint(b, uint64(len(cls.props)))
	for _, p := range cls.props {
		b = appendString(b, p.name)
		b = appendBool(b, p.negate)
	}
	b = binary.AppendUvarint(b, uint64(len(cls.subs)))
	for _, sub := range cls.subs {
		b = appendClass(b, sub)
	}
	return b
}

type decoder struct {
	b   []byte
	off int
}

var errTruncated = errors.New("unexpected end of data")

func (d *decoder) uvarint(limit int) (int, error) {
	v, n := binary.Uvarint(d.b[d.off:])
	if n <= 0 {
		return 0, errors.WithStack(errTruncated)
	}
	if v > uint64(limit) {
		return 0, errors.Errorf("value %d exceeds %d", v, limit)
	}
	d.off += n
	return int(v), nil
}

func (d *decoder) byte() (byte, error) {
	if d.off >= len(d.b) {
		return 0, errors.WithStack(errTruncated)
	}
	c := d.b[d.off]
	d.off++
	return c, nil
}

func (d *decoder) bool() (bool, error) {
	c, err := d.byte()
	if err != nil {
		return false, err
	}
	if c > 1 {
		return false, errors.Errorf("invalid boolean %d", c)
	}
	return c == 1, nil
}

func (d *decoder) string() (string, error) {
	n, err := d.uvarint(len(d.b) - d.off)
	if err != nil {
		return "", err
	}
	s := string(d.b[d.off : d.off+n])
	d.off += n
	return s, nil
}

func (d *decoder) class(depth int) (*charClass, error) {
	if depth > maxClassDepth {
		return nil, errors.New("character classes nested too deeply")
	}
	cls := &charClass{}
	var err error
	if cls.negate, err = d.bool(); err != nil {
		return nil, err
	}
	// Every encoded item takes at least one byte, which bounds the counts.
	remaining := len(d.b) - d.off
	n, err := d.uvarint(remaining)
	if err != nil {
		return nil, err
	}
	prev := rune(-2)
	for i := 0; i < n; i++ {
		lo, err := d.uvarint(unicode.MaxRune)
		if err != nil {
			return nil, err
		}
		hi, err := d.uvarint(unicode.MaxRune)
		if err != nil {
			return nil, err
		}
		if lo > hi || rune(lo) <= prev+1 {
			return nil, errors.Errorf("class range %d-%d out of order", lo, hi)
		}
		cls.set.chars = append(cls.set.chars, charRange{lo: rune(lo), hi: rune(hi)})
		prev = rune(hi)
	}
	if n, err = d.uvarint(len(d.b) - d.off); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		name, err := d.string()
		if err != nil {
			return nil, err
		}
		negate, err := d.bool()
		if err != nil {
			return nil, err
		}
		tables, ok := lookupProperty(name)
		if !ok {
			return nil, errors.Errorf("unknown property %q", name)
		}
		cls.props = append(cls.props, classProp{name: name, negate: negate, tables: tables})
	}
	if n, err = d.uvarint(len(d.b) - d.off); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		sub, err := d.class(depth + 1)
		if err != nil {
			return nil, errors.Wrapf(err, "subclass %d", i)
		}
		cls.subs = append(cls.subs, sub)
	}
	return cls, nil
}

// Load restores a Regexp serialized by [Regexp.Dump]. Data that is
// truncated, corrupt, or written by an incompatible version is rejected
// with a *SyntaxError.
func Load(data []byte) (*Regexp, error) {
	re, off, err := load(data)
	if err != nil {
		return nil, &SyntaxError{Offset: off, Msg: "invalid serialized pattern: " + err.Error(), Err: err}
	}
	return re, nil
}

func load(data []byte) (*Regexp, int, error) {
	header := len(dumpMagic) + 1
	if len(data) < header+4 {
		return nil, 0, errors.WithStack(errTruncated)
	}
	if string(data[:len(dumpMagic)]) != dumpMagic {
		return nil, 0, errors.New("bad magic")
	}
	if v := data[len(dumpMagic)]; v != dumpVersion {
		return nil, len(dumpMagic), errors.Errorf("unsupported format version %d", v)
	}
	body := data[:len(data)-4]
	if sum := binary.LittleEndian.Uint32(data[len(body):]); sum != crc32.ChecksumIEEE(body) {
		return nil, len(body), errors.New("checksum mismatch")
	}

	d := &decoder{b: body, off: header}
	re, err := d.regexp()
	if err != nil {
		return nil, d.off, err
	}
	if d.off != len(body) {
		return nil, d.off, errors.New("trailing data")
	}
	return re, 0, nil
}

func (d *decoder) regexp() (*Regexp, error) {
	rawFlags, err := d.uvarint(math.MaxUint32)
	if err != nil {
		return nil, errors.Wrap(err, "flags")
	}
	flags := Flag(rawFlags)
	if flags&^compileFlags != 0 {
		return nil, errors.Errorf("invalid flags %s", flags)
	}
	pattern, err := d.string()
	if err != nil {
		return nil, errors.Wrap(err, "pattern")
	}
	p := &program{flags: flags}
	if p.ncap, err = d.uvarint(maxGroups); err != nil {
		return nil, errors.Wrap(err, "group count")
	}
	captureSlots := 2 * (p.ncap + 1)
	if p.nslot, err = d.uvarint(math.MaxInt32); err != nil {
		return nil, errors.Wrap(err, "slot count")
	}
	if p.nslot < captureSlots {
		return nil, errors.Errorf("slot count %d below %d", p.nslot, captureSlots)
	}
	if p.minLen, err = d.uvarint(maxMinLength); err != nil {
		return nil, errors.Wrap(err, "minimum length")
	}
	if p.anchored, err = d.bool(); err != nil {
		return nil, errors.Wrap(err, "anchored")
	}

	p.names = map[string]int{}
	for i := 0; i <= p.ncap; i++ {
		name, err := d.string()
		if err != nil {
			return nil, errors.Wrapf(err, "name of group %d", i)
		}
		if name != "" {
			if i == 0 {
				return nil, errors.New("group 0 cannot be named")
			}
			if _, dup := p.names[name]; dup {
				return nil, errors.Errorf("duplicate group name %q", name)
			}
			p.names[name] = i
		}
		p.groupNames = append(p.groupNames, name)
	}

	nclass, err := d.uvarint(len(d.b) - d.off)
	if err != nil {
		return nil, errors.Wrap(err, "class count")
	}
	for i := 0; i < nclass; i++ {
		cls, err := d.class(0)
		if err != nil {
			return nil, errors.Wrapf(err, "class %d", i)
		}
		p.classes = append(p.classes, cls)
	}

	ninst, err := d.uvarint(len(d.b) - d.off)
	if err != nil {
		return nil, errors.Wrap(err, "instruction count")
	}
	if ninst == 0 || ninst > maxProgramSize*2 {
		return nil, errors.Errorf("invalid instruction count %d", ninst)
	}
	if p.nslot > captureSlots+2*ninst {
		return nil, errors.Errorf("slot count %d too large", p.nslot)
	}
	p.insts = make([]inst, 0, ninst)
	for pc := 0; pc < ninst; pc++ {
		in, err := d.inst()
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d", pc)
		}
		p.insts = append(p.insts, in)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Regexp{prog: p, pattern: pattern, limits: DefaultLimits()}, nil
}

func (d *decoder) inst() (inst, error) {
	var in inst
	op, err := d.byte()
	if err != nil {
		return in, err
	}
	in.op = opcode(op)
	if in.arg, err = d.uvarint(math.MaxInt32); err != nil {
		return in, err
	}
	if in.arg2, err = d.uvarint(math.MaxInt32); err != nil {
		return in, err
	}
	nr, err := d.uvarint(len(d.b) - d.off)
	if err != nil {
		return in, err
	}
	for i := 0; i < nr; i++ {
		r, err := d.uvarint(unicode.MaxRune)
		if err != nil {
			return in, err
		}
		in.r = append(in.r, rune(r))
	}
	return in, nil
}

// validate checks every operand so that running the program can never
// index out of range.
func (p *program) validate() error {
	n := len(p.insts)
	captureSlots := 2 * (p.ncap + 1)
	isPC := func(v int) bool { return v >= 0 && v < n }
	isReg := func(v, width int) bool { return v >= captureSlots && v+width <= p.nslot }

	for pc, in := range p.insts {
		ok := true
		switch in.op {
		case opFail, opMatch, opAny, opAnyNL, opKeep:
		case opChar:
			ok = in.arg <= unicode.MaxRune
		case opCharFold:
			ok = len(in.r) > 0
		case opClass:
			ok = in.arg < len(p.classes)
		case opSplit:
			ok = isPC(in.arg) && isPC(in.arg2)
		case opJmp:
			ok = isPC(in.arg)
		case opSave:
			ok = in.arg < captureSlots
		case opMark, opAtomicStart, opAtomicEnd, opNegLookEnd:
			ok = isReg(in.arg, 1)
		case opEmptyCheck, opNegLookStart:
			ok = isReg(in.arg, 1) && isPC(in.arg2)
		case opLookStart, opLookEnd:
			ok = isReg(in.arg, 2)
		case opBack:
		case opAssert:
			ok = in.arg < int(assertKindCount)
		case opBackref:
			ok = in.arg >= 1 && in.arg <= p.ncap && in.arg2 <= 1
		case opCondGroup:
			ok = in.arg >= 1 && in.arg <= p.ncap && isPC(in.arg2)
		default:
			return errors.Errorf("instruction %d: unknown opcode %d", pc, in.op)
		}
		if !ok {
			return errors.Errorf("instruction %d: invalid operands for %s", pc, in.op)
		}
		if in.op != opCharFold && len(in.r) > 0 {
			return errors.Errorf("instruction %d: unexpected rune list", pc)
		}
	}
	// Execution must never fall off the end of the program.
	switch p.insts[n-1].op {
	case opMatch, opFail, opJmp, opNegLookEnd:
	default:
		return errors.New("program does not end in a terminal instruction")
	}
	return nil
}
