// Package pcre implements Perl-compatible regular expressions with a
// backtracking matcher.
//
// Patterns follow PCRE syntax: leftmost-first alternation, greedy, lazy and
// possessive quantifiers, atomic groups, lookahead and fixed-length
// lookbehind, backreferences, conditionals, named groups and Unicode
// properties. Work done by one match call is bounded by [Limits], so a
// pathological pattern fails with a [RuntimeError] instead of running
// forever.
package pcre

import (
	"context"
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Regexp represents a compiled regular expression.
// It is safe for concurrent use by multiple goroutines.
// All methods on Regexp do not mutate internal state.
type Regexp struct {
	prog    *program
	pattern string
	// Parsed form, kept for Study. Nil for a pattern restored by Load.
	root   *node
	limits Limits
	study  *studyData
}

// Compile parses a regular expression pattern and returns a Regexp.
//
// FlagUCP implies FlagUTF. Without FlagUTF the pattern and the subjects are
// treated as sequences of bytes.
func Compile(pattern string, flags Flag) (*Regexp, error) {
	if bad := flags &^ compileFlags; bad != 0 {
		return nil, errors.Wrapf(ErrInvalidFlag, "%s at compile time", bad)
	}
	if flags&FlagUCP != 0 {
		flags |= FlagUTF
	}
	res, err := parse(pattern, flags)
	if err != nil {
		return nil, err
	}
	prog, err := compileProgram(res, flags)
	if err != nil {
		return nil, err
	}
	return &Regexp{
		prog:    prog,
		pattern: pattern,
		root:    res.root,
		limits:  DefaultLimits(),
	}, nil
}

// MustCompile is like [Compile] but panics if the expression cannot be parsed.
// It simplifies safe initialization of global variables containing regular
// expressions.
func MustCompile(pattern string, flags Flag) *Regexp {
	re, err := Compile(pattern, flags)
	if err != nil {
		panic("pcre: MustCompile: " + err.Error())
	}
	return re
}

// String returns the source text used to compile the regular expression.
func (re *Regexp) String() string {
	return re.pattern
}

// Flags returns the compile-time flags.
func (re *Regexp) Flags() Flag {
	return re.prog.flags
}

// NumGroups returns the number of capturing groups, not counting the whole
// match.
func (re *Regexp) NumGroups() int {
	return re.prog.ncap
}

// GroupIndex returns a copy of the map from group names to group numbers.
func (re *Regexp) GroupIndex() map[string]int {
	return maps.Clone(re.prog.names)
}

// SubexpNames returns the names of the groups indexed by group number.
// Unnamed groups and index 0 have the name "".
func (re *Regexp) SubexpNames() []string {
	return slices.Clone(re.prog.groupNames)
}

// MinLength returns the fewest characters any match consumes.
func (re *Regexp) MinLength() int {
	return re.prog.minLen
}

// Limits returns the resource limits applied to match calls.
func (re *Regexp) Limits() Limits {
	return re.limits
}

// WithLimits returns a copy of re that applies l to match calls. Zero
// fields of l take the defaults.
func (re *Regexp) WithLimits(l Limits) *Regexp {
	cp := *re
	cp.limits = l.withDefaults()
	return &cp
}

// Disassemble returns a listing of the compiled program, one instruction
// per line.
func (re *Regexp) Disassemble() string {
	return re.prog.String()
}

// Study returns a copy of re that carries data for rejecting start
// positions early, plus a finite-automaton fast path if flags asks for one
// and the pattern allows it. The result matches exactly like re.
func (re *Regexp) Study(flags StudyFlag) *Regexp {
	root := re.root
	if root == nil {
		res, err := parse(re.pattern, re.prog.flags)
		if err != nil {
			return re
		}
		root = res.root
	}
	cp := *re
	cp.root = root
	cp.study = study(re.prog, root, flags)
	return &cp
}

// StudyData returns what Study learned. ok is false if re was not studied.
func (re *Regexp) StudyData() (data StudyData, ok bool) {
	if re.study == nil {
		return StudyData{}, false
	}
	return re.study.data, true
}

// ExecAt attempts a match that starts exactly at offset, looking no further
// than endOffset. A negative offset means 0 and a negative endOffset means
// len(subject). It returns (nil, nil) when there is no match, including
// when offset > endOffset or endOffset > len(subject).
func (re *Regexp) ExecAt(subject []byte, offset, endOffset int, flags Flag) (*Match, error) {
	return re.exec(nil, subject, offset, endOffset, flags, true)
}

// ExecAtContext is like [Regexp.ExecAt] but gives up with a RuntimeError
// once ctx is done.
func (re *Regexp) ExecAtContext(ctx context.Context, subject []byte, offset, endOffset int, flags Flag) (*Match, error) {
	return re.exec(ctx, subject, offset, endOffset, flags, true)
}

// Search returns the leftmost match that starts at or after start and
// ends at or before end. Offsets are handled as in [Regexp.ExecAt].
func (re *Regexp) Search(subject []byte, start, end int, flags Flag) (*Match, error) {
	return re.exec(nil, subject, start, end, flags, false)
}

// SearchContext is like [Regexp.Search] but gives up with a RuntimeError
// once ctx is done.
func (re *Regexp) SearchContext(ctx context.Context, subject []byte, start, end int, flags Flag) (*Match, error) {
	return re.exec(ctx, subject, start, end, flags, false)
}

// FindMatch returns the first match in subject, or nil.
func (re *Regexp) FindMatch(subject []byte) (*Match, error) {
	return re.exec(nil, subject, 0, -1, 0, false)
}

// FindMatchStartingAt returns the first match at or after the byte offset
// pos. If pos is out of range or no match is found, it returns nil.
func (re *Regexp) FindMatchStartingAt(subject []byte, pos int) (*Match, error) {
	if pos < 0 || pos > len(subject) {
		return nil, nil
	}
	return re.exec(nil, subject, pos, -1, 0, false)
}

// FindNextMatch searches for the next match in the same subject as a
// previously returned match, within the same end offset.
//
// The search begins at match.Groups[0].End. If the previous match was
// zero-length (Start == End), the search position is advanced by one
// character before matching again to avoid returning the same empty match
// repeatedly.
//
// If match is nil, or if no further match is found, FindNextMatch returns nil.
func (re *Regexp) FindNextMatch(match *Match) (*Match, error) {
	if match == nil {
		return nil, nil
	}
	whole := match.Groups[0]
	pos := whole.End
	if whole.Start == whole.End {
		if pos >= match.EndPos {
			return nil, nil
		}
		s := subject{b: whole.src[:match.EndPos], utf: re.prog.flags&FlagUTF != 0}
		_, w := s.decode(pos)
		pos += w
	}
	// The search that produced match already checked the subject.
	return re.exec(nil, whole.src, pos, match.EndPos, FlagNoUTFCheck, false)
}

func (re *Regexp) exec(ctx context.Context, subj []byte, start, end int, flags Flag, anchored bool) (*Match, error) {
	if bad := flags &^ matchFlags; bad != 0 {
		return nil, errors.Wrapf(ErrInvalidFlag, "%s at match time", bad)
	}
	if start < 0 {
		start = 0
	}
	if end < 0 {
		end = len(subj)
	}
	if start > end || end > len(subj) {
		return nil, nil
	}
	prog := re.prog
	flags |= prog.flags
	if flags&FlagUTF != 0 && flags&FlagNoUTFCheck == 0 {
		if off := validateUTF8(subj); off >= 0 {
			return nil, &EncodingError{Offset: off, Msg: "invalid UTF-8 sequence"}
		}
		if start < len(subj) && !utf8.RuneStart(subj[start]) {
			return nil, &EncodingError{Offset: start, Msg: "start offset is inside a character"}
		}
		if end < len(subj) && !utf8.RuneStart(subj[end]) {
			return nil, &EncodingError{Offset: end, Msg: "end offset is inside a character"}
		}
	}
	anchored = anchored || flags&FlagAnchored != 0 || prog.anchored

	m := prog.getMachine()
	defer prog.putMachine(m)
	m.reset(ctx, subj[:end], start, flags, re.limits, re.study)
	matched, err := m.search(start, anchored)
	if err != nil || !matched {
		return nil, err
	}
	return newMatch(re, subj, m.slots, start, end), nil
}
