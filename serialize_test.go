package pcre

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"gotest.tools/v3/assert"
)

func TestDumpLoad(t *testing.T) {
	t.Parallel()

	patterns := []struct {
		pattern string
		flags   Flag
	}{
		{"a|b", 0},
		{"(?<y>\\d{4})-(?<m>\\d\\d)", 0},
		{"(?i)straße", FlagUTF},
		{"[^\\p{Greek}\\d[:punct:]]+", FlagUCP},
		{"(?<=ab|c)(?!x)(?>a+)b*?c{2,5}", FlagMultiline | FlagDotAll},
		{"(a)?(?(1)b|c)(?(?=d)d|e)\\1?", 0},
		{"\\bfoo\\K\\w+$", FlagDollarEndOnly},
		{"x", FlagAnchored},
	}
	for _, p := range patterns {
		t.Run(p.pattern, func(t *testing.T) {
			t.Parallel()
			re := MustCompile(p.pattern, p.flags)
			data := re.Dump()
			assert.Assert(t, bytes.Equal(data, re.Dump()))

			loaded, err := Load(data)
			assert.NilError(t, err)
			assert.Equal(t, loaded.String(), re.String())
			assert.Equal(t, loaded.Flags(), re.Flags())
			assert.Equal(t, loaded.NumGroups(), re.NumGroups())
			assert.Equal(t, loaded.MinLength(), re.MinLength())
			assert.DeepEqual(t, loaded.SubexpNames(), re.SubexpNames())
			assert.DeepEqual(t, loaded.GroupIndex(), re.GroupIndex())
			assert.Equal(t, loaded.Disassemble(), re.Disassemble())
			assert.Equal(t, loaded.Limits(), DefaultLimits())
			assert.Assert(t, bytes.Equal(loaded.Dump(), data))
		})
	}

	t.Run("StudyLoaded", func(t *testing.T) {
		t.Parallel()
		loaded, err := Load(MustCompile("(?<w>foo|bar)\\d", FlagUTF).Dump())
		assert.NilError(t, err)
		studied := loaded.Study(StudyJIT)
		data, ok := studied.StudyData()
		assert.Assert(t, ok)
		assert.DeepEqual(t, data.Prefixes, []string{"bar", "foo"})
		assert.Assert(t, data.FastPath)

		match, err := studied.FindMatch([]byte("xx bar7"))
		assert.NilError(t, err)
		assert.DeepEqual(t, match.GroupDict(""), map[string]string{"w": "bar"})
	})
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	valid := MustCompile("(a+)(?<n>[bc])\\1", 0).Dump()
	mutate := func(fn func(b []byte) []byte) []byte {
		return fn(bytes.Clone(valid))
	}
	loadErr := func(t *testing.T, data []byte, msg string) *SyntaxError {
		t.Helper()
		re, err := Load(data)
		assert.Assert(t, re == nil)
		var syntaxErr *SyntaxError
		assert.Assert(t, errors.As(err, &syntaxErr), "got %v", err)
		assert.ErrorContains(t, err, msg)
		return syntaxErr
	}

	t.Run("Empty", func(t *testing.T) {
		loadErr(t, nil, "unexpected end of data")
	})
	t.Run("Magic", func(t *testing.T) {
		loadErr(t, mutate(func(b []byte) []byte { b[0] = 'X'; return b }), "bad magic")
	})
	t.Run("Version", func(t *testing.T) {
		err := loadErr(t, mutate(func(b []byte) []byte { b[4] = 9; return b }), "unsupported format version 9")
		assert.Equal(t, err.Offset, 4)
	})
	t.Run("Checksum", func(t *testing.T) {
		loadErr(t, mutate(func(b []byte) []byte { b[len(b)/2] ^= 0x40; return b }), "checksum mismatch")
	})
	t.Run("Truncated", func(t *testing.T) {
		for n := 0; n < len(valid); n++ {
			loadErr(t, valid[:n], "")
		}
	})
	t.Run("TrailingData", func(t *testing.T) {
		loadErr(t, reseal(append(unseal(valid), 0)), "trailing data")
	})
	t.Run("Cause", func(t *testing.T) {
		err := loadErr(t, nil, "")
		assert.Assert(t, errors.Is(err, errTruncated))
	})

	build := func(p *program) []byte {
		if p.groupNames == nil {
			p.groupNames = []string{""}
		}
		if p.nslot == 0 {
			p.nslot = 2 * (p.ncap + 1)
		}
		return (&Regexp{prog: p}).Dump()
	}
	t.Run("ValidHandBuilt", func(t *testing.T) {
		re, err := Load(build(&program{insts: []inst{
			{op: opSave, arg: 0},
			{op: opChar, arg: 'z'},
			{op: opSave, arg: 1},
			{op: opMatch},
		}}))
		assert.NilError(t, err)
		match, err := re.FindMatch([]byte("xyz"))
		assert.NilError(t, err)
		assert.Equal(t, match.Groups[0].Start, 2)
	})
	t.Run("JumpOutOfRange", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opJmp, arg: 5}}}), "instruction 0: invalid operands for jmp")
	})
	t.Run("SaveOutOfRange", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opSave, arg: 2}, {op: opMatch}}}), "invalid operands for save")
	})
	t.Run("RegisterOutOfRange", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opMark, arg: 1}, {op: opMatch}}}), "invalid operands for mark")
	})
	t.Run("BackrefGroup", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opBackref, arg: 1}, {op: opMatch}}}), "invalid operands for backref")
	})
	t.Run("ClassIndex", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opClass, arg: 0}, {op: opMatch}}}), "invalid operands for class")
	})
	t.Run("UnknownOpcode", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opCount}, {op: opMatch}}}), "unknown opcode")
	})
	t.Run("RuneList", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opChar, arg: 'a', r: []rune{'b'}}, {op: opMatch}}}), "unexpected rune list")
	})
	t.Run("NotTerminal", func(t *testing.T) {
		loadErr(t, build(&program{insts: []inst{{op: opSave, arg: 0}}}), "program does not end in a terminal instruction")
	})
	t.Run("NoInstructions", func(t *testing.T) {
		loadErr(t, build(&program{}), "invalid instruction count 0")
	})
	t.Run("BadFlags", func(t *testing.T) {
		loadErr(t, build(&program{flags: FlagNotBOL, insts: []inst{{op: opMatch}}}), "invalid flags NOTBOL")
	})
	t.Run("NamedGroupZero", func(t *testing.T) {
		loadErr(t, build(&program{groupNames: []string{"x"}, insts: []inst{{op: opMatch}}}), "group 0 cannot be named")
	})
	t.Run("DuplicateName", func(t *testing.T) {
		loadErr(t, build(&program{
			ncap:       2,
			groupNames: []string{"", "x", "x"},
			insts:      []inst{{op: opMatch}},
		}), `duplicate group name "x"`)
	})
	t.Run("UnknownProperty", func(t *testing.T) {
		cls := &charClass{props: []classProp{{name: "NoSuchProperty"}}}
		loadErr(t, build(&program{classes: []*charClass{cls}, insts: []inst{{op: opMatch}}}), `unknown property "NoSuchProperty"`)
	})
	t.Run("ClassOrder", func(t *testing.T) {
		cls := &charClass{set: charSet{chars: []charRange{{'m', 'z'}, {'a', 'c'}}}}
		loadErr(t, build(&program{classes: []*charClass{cls}, insts: []inst{{op: opMatch}}}), "out of order")
	})
	t.Run("ClassDepth", func(t *testing.T) {
		cls := &charClass{}
		for i := 0; i <= maxClassDepth; i++ {
			cls = &charClass{subs: []*charClass{cls}}
		}
		loadErr(t, build(&program{classes: []*charClass{cls}, insts: []inst{{op: opMatch}}}), "nested too deeply")
	})
}

// unseal strips the checksum from a serialized pattern.
func unseal(b []byte) []byte {
	return bytes.Clone(b[:len(b)-4])
}

// reseal appends a valid checksum to body.
func reseal(body []byte) []byte {
	return binary.LittleEndian.AppendUint32(body, crc32.ChecksumIEEE(body))
}
