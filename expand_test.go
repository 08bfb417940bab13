package pcre

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	match, err := MustCompile(`(?<first>\w+) (\w+)`, 0).FindMatch([]byte("hello world"))
	assert.NilError(t, err)

	run := func(e Expander, expected string) {
		t.Run(string(expected), func(t *testing.T) {
			t.Parallel()
			res, err := match.Expand(e)
			assert.NilError(t, err)
			assert.Equal(t, res, expected)
		})
	}
	fail := func(e Expander, msg string) {
		t.Run(msg, func(t *testing.T) {
			t.Parallel()
			_, err := match.Expand(e)
			assert.ErrorContains(t, err, msg)
		})
	}

	run(PerlTemplate(`\2 \1`), "world hello")
	run(PerlTemplate(`<\0>`), "<hello world>")
	run(PerlTemplate(`\g<first>!`), "hello!")
	run(PerlTemplate(`\g<2>\g<1>`), "worldhello")
	run(PerlTemplate(`a\\b`), `a\b`)
	run(PerlTemplate(`\n\x`), `\n\x`)
	run(PerlTemplate(`end\`), `end\`)
	run(PerlTemplate(`\10`), "hello0")
	run(PerlTemplate(`plain`), "plain")
	run(PerlTemplate(``), "")
	fail(PerlTemplate(`\g<nope>`), `unknown group "nope"`)
	fail(PerlTemplate(`\5`), `unknown group "5"`)
	fail(PerlTemplate(`\g<first`), "missing >")

	run(FormatTemplate(`{2} {first} {0}`), "world hello hello world")
	run(FormatTemplate(`{{x}}`), "{x}")
	run(FormatTemplate(`{{{1}}}`), "{hello}")
	fail(FormatTemplate(`a}b`), "single }")
	fail(FormatTemplate(`a{b`), "single {")
	fail(FormatTemplate(`{}`), "empty field")
	fail(FormatTemplate(`{9}`), `unknown group "9"`)

	t.Run("UnsetGroup", func(t *testing.T) {
		t.Parallel()
		match, err := MustCompile(`(a)|(b)`, 0).FindMatch([]byte("b"))
		assert.NilError(t, err)
		res, err := match.Expand(PerlTemplate(`[\1][\2]`))
		assert.NilError(t, err)
		assert.Equal(t, res, "[][b]")
		res, err = match.Expand(FormatTemplate(`[{1}]`))
		assert.NilError(t, err)
		assert.Equal(t, res, "[]")
	})
	t.Run("AppendsToBuffer", func(t *testing.T) {
		t.Parallel()
		dst, err := PerlTemplate(`\1`).Expand([]byte("> "), match)
		assert.NilError(t, err)
		assert.Equal(t, string(dst), "> hello")
	})
}

func TestConvertTemplate(t *testing.T) {
	cases := map[PerlTemplate]FormatTemplate{
		`\1-\g<first>{x}`: `{1}-{first}{{x}}`,
		`a\\b`:            `a\b`,
		`\n`:              `\n`,
		`end\`:            `end\`,
		`\g<x`:            `\g<x`,
		`}{`:              `}}{{`,
	}
	for in, expected := range cases {
		assert.Equal(t, ConvertTemplate(in), expected, "input %q", in)
	}

	match, err := MustCompile(`(?<first>\w+) (\w+)`, 0).FindMatch([]byte("hello world"))
	assert.NilError(t, err)
	for _, tmpl := range []PerlTemplate{`\2 \1`, `\g<first>{}`, `{\0}`} {
		want, err := match.Expand(tmpl)
		assert.NilError(t, err)
		got, err := match.Expand(ConvertTemplate(tmpl))
		assert.NilError(t, err)
		assert.Equal(t, got, want)
	}
}

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"abc123":   "abc123",
		"a.b*c":    `a\.b\*c`,
		"_":        `\_`,
		"a b":      `a\ b`,
		"\x00":     `\000`,
		`\`:        `\\`,
		"é":        `\é`,
		"[x]{1,2}": `\[x\]\{1\,2\}`,
		"":         "",
	}
	for in, expected := range cases {
		assert.Equal(t, Escape(in), expected, "input %q", in)
	}

	for _, s := range []string{"a.b", "(?i)x", "$^|", "é+ü", "_\x00\n#", "\\Q\\E", "a b # c"} {
		t.Run(s, func(t *testing.T) {
			for _, flags := range []Flag{0, FlagUTF, FlagExtended | FlagUTF, FlagCaseless} {
				re, err := Compile(Escape(s), flags)
				assert.NilError(t, err)
				match, err := re.ExecAt([]byte(s), 0, -1, 0)
				assert.NilError(t, err)
				assert.Assert(t, match != nil, "flags %s", flags)
				assert.Equal(t, match.Groups[0].End, len(s))
			}
		})
	}
}
