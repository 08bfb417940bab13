package pcre

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

const nilMatch = "!SPECIAL_NIL_MATCH!"

type runner struct {
	t    *testing.T
	flag Flag
}

func newRunner(t *testing.T) runner {
	return runner{t: t}
}

func (r runner) f(f Flag) *runner {
	r.flag |= f
	return &r
}

const (
	i = FlagCaseless
	m = FlagMultiline
	s = FlagDotAll
	x = FlagExtended
	u = FlagUTF
)

func groupStrings(match *Match) []string {
	res := make([]string, len(match.Groups))
	for i, g := range match.Groups {
		if g.Matched() {
			res[i] = g.String()
		} else {
			res[i] = nilMatch
		}
	}
	return res
}

// variants returns re as compiled, studied with the fast path, and restored
// from its serialized form. All of them must match identically.
func variants(t *testing.T, re *Regexp) map[string]*Regexp {
	t.Helper()
	loaded, err := Load(re.Dump())
	assert.NilError(t, err)
	return map[string]*Regexp{
		"plain":   re,
		"studied": re.Study(StudyJIT),
		"loaded":  loaded,
	}
}

func (r *runner) compile(t *testing.T, pattern string) *Regexp {
	t.Helper()
	t.Logf("Pattern: /%s/ flags: %s", pattern, r.flag)
	re, err := Compile(pattern, r.flag)
	assert.NilError(t, err)
	return re
}

// Match: expected lists the whole match and then every capturing group.
func (r *runner) m(pattern, subject string, expected ...string) {
	r.t.Run("", func(t *testing.T) {
		t.Parallel()
		re := r.compile(t, pattern)
		for name, re := range variants(t, re) {
			match, err := re.FindMatch([]byte(subject))
			assert.NilError(t, err, name)
			assert.Assert(t, match != nil, "%s: no match in %q", name, subject)
			if len(expected) > 0 {
				assert.DeepEqual(t, groupStrings(match), expected)
			}
		}
	})
}

// Not Match
func (r *runner) n(pattern, subject string) {
	r.t.Run("", func(t *testing.T) {
		t.Parallel()
		re := r.compile(t, pattern)
		for name, re := range variants(t, re) {
			match, err := re.FindMatch([]byte(subject))
			assert.NilError(t, err, name)
			if match != nil {
				t.Fatalf("%s: unexpected match %q", name, match.Groups[0].String())
			}
		}
	})
}

// Syntax Error
func (r *runner) se(pattern string) {
	r.t.Run("", func(t *testing.T) {
		t.Parallel()
		t.Logf("Pattern: /%s/ flags: %s", pattern, r.flag)
		_, err := Compile(pattern, r.flag)
		var syntaxErr *SyntaxError
		assert.Assert(t, errors.As(err, &syntaxErr), "got %v", err)
	})
}

// Compile Error
func (r *runner) ce(pattern string) {
	r.t.Run("", func(t *testing.T) {
		t.Parallel()
		t.Logf("Pattern: /%s/ flags: %s", pattern, r.flag)
		_, err := Compile(pattern, r.flag)
		var compileErr *CompileError
		assert.Assert(t, errors.As(err, &compileErr), "got %v", err)
	})
}
