package pcre

import (
	"testing"

	"github.com/dlclark/regexp2"
	"gotest.tools/v3/assert"
)

// regexp2Options maps compile flags onto the equivalent .NET options.
func regexp2Options(flags Flag) regexp2.RegexOptions {
	opts := regexp2.None
	if flags&FlagCaseless != 0 {
		opts |= regexp2.IgnoreCase
	}
	if flags&FlagMultiline != 0 {
		opts |= regexp2.Multiline
	}
	if flags&FlagDotAll != 0 {
		opts |= regexp2.Singleline
	}
	if flags&FlagExtended != 0 {
		opts |= regexp2.IgnorePatternWhitespace
	}
	return opts
}

// regexp2Spans collects match spans the way allSpans does. Offsets are
// rune indexes, so it must only be fed ASCII subjects.
func regexp2Spans(re *regexp2.Regexp, subject string) ([][]int, [][]int, error) {
	var spans, groups [][]int
	m, err := re.FindStringMatch(subject)
	for ; err == nil && m != nil; m, err = re.FindNextMatch(m) {
		spans = append(spans, []int{m.Index, m.Index + m.Length})
		if groups != nil {
			continue
		}
		for _, g := range m.Groups() {
			if len(g.Captures) == 0 {
				groups = append(groups, []int{-1, -1})
			} else {
				groups = append(groups, []int{g.Index, g.Index + g.Length})
			}
		}
	}
	return spans, groups, err
}

func TestOracle(t *testing.T) {
	for _, entry := range loadCorpus(t) {
		if !entry.Oracle {
			continue
		}
		t.Run(entry.Pattern, func(t *testing.T) {
			t.Parallel()
			flags, err := entry.flags()
			assert.NilError(t, err)
			oracle, err := regexp2.Compile(entry.Pattern, regexp2Options(flags))
			assert.NilError(t, err)
			want, wantGroups, err := regexp2Spans(oracle, entry.Subject)
			assert.NilError(t, err)

			re := MustCompile(entry.Pattern, flags)
			got, err := allSpans(re, []byte(entry.Subject))
			assert.NilError(t, err)
			assert.DeepEqual(t, got, want)

			match, err := re.FindMatch([]byte(entry.Subject))
			assert.NilError(t, err)
			if match != nil {
				assert.DeepEqual(t, groupSpans(match), wantGroups)
			}
		})
	}
}
