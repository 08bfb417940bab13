package pcre

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

func TestLimits(t *testing.T) {
	t.Parallel()

	t.Run("MatchLimit", func(t *testing.T) {
		t.Parallel()
		re := MustCompile("(a+)+b", 0).WithLimits(Limits{MatchLimit: 100_000})
		_, err := re.FindMatch([]byte(strings.Repeat("a", 30)))
		var rtErr *RuntimeError
		assert.Assert(t, errors.As(err, &rtErr), "got %v", err)
		assert.Equal(t, rtErr.Kind, RuntimeMatchLimit)
		assert.Assert(t, rtErr.Steps > 100_000)
		assert.Assert(t, errors.Is(err, ErrMatchLimit))
		assert.Assert(t, !errors.Is(err, ErrStackLimit))
	})
	t.Run("MatchLimitAcrossStarts", func(t *testing.T) {
		t.Parallel()
		re := MustCompile("x", 0).WithLimits(Limits{MatchLimit: 500})
		_, err := re.FindMatch([]byte(strings.Repeat("a", 1000)))
		assert.Assert(t, errors.Is(err, ErrMatchLimit), "got %v", err)
	})
	t.Run("StackLimit", func(t *testing.T) {
		t.Parallel()
		re := MustCompile("a*", 0).WithLimits(Limits{StackLimit: 10})
		_, err := re.FindMatch([]byte(strings.Repeat("a", 100)))
		var rtErr *RuntimeError
		assert.Assert(t, errors.As(err, &rtErr), "got %v", err)
		assert.Equal(t, rtErr.Kind, RuntimeStackLimit)
		assert.Assert(t, errors.Is(err, ErrStackLimit))

		match, err := re.FindMatch([]byte("aaa"))
		assert.NilError(t, err)
		assert.Equal(t, match.Groups[0].End, 3)
	})
	t.Run("AtomicIterations", func(t *testing.T) {
		t.Parallel()
		re := MustCompile("(?>a)*", 0).WithLimits(Limits{StackLimit: 10})
		_, err := re.FindMatch([]byte(strings.Repeat("a", 5)))
		assert.NilError(t, err)
	})
	t.Run("Cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		re := MustCompile("(a+)+b", 0)
		_, err := re.SearchContext(ctx, []byte(strings.Repeat("a", 30)), 0, -1, 0)
		var rtErr *RuntimeError
		assert.Assert(t, errors.As(err, &rtErr), "got %v", err)
		assert.Equal(t, rtErr.Kind, RuntimeCancelled)
		assert.Assert(t, errors.Is(err, ErrCancelled))
		assert.Assert(t, errors.Is(err, context.Canceled))
		assert.ErrorContains(t, err, "match cancelled")

		_, err = re.ExecAtContext(ctx, []byte(strings.Repeat("a", 30)), 0, -1, 0)
		assert.Assert(t, errors.Is(err, context.Canceled))
	})
	t.Run("ContextNotDone", func(t *testing.T) {
		t.Parallel()
		match, err := MustCompile("b", 0).SearchContext(context.Background(), []byte("ab"), 0, -1, 0)
		assert.NilError(t, err)
		assert.Equal(t, match.Groups[0].Start, 1)
	})
	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		re := MustCompile("a", 0)
		assert.Equal(t, re.Limits(), DefaultLimits())
		assert.Equal(t, re.WithLimits(Limits{}).Limits(), DefaultLimits())
		l := re.WithLimits(Limits{StackLimit: 7}).Limits()
		assert.Equal(t, l.StackLimit, 7)
		assert.Equal(t, l.MatchLimit, DefaultLimits().MatchLimit)
		assert.Equal(t, re.Limits(), DefaultLimits())
	})
	t.Run("ReusableAfterError", func(t *testing.T) {
		t.Parallel()
		re := MustCompile("(a+)+b", 0).WithLimits(Limits{MatchLimit: 10_000})
		_, err := re.FindMatch([]byte(strings.Repeat("a", 30)))
		assert.Assert(t, errors.Is(err, ErrMatchLimit))
		match, err := re.FindMatch([]byte("aab"))
		assert.NilError(t, err)
		assert.DeepEqual(t, groupStrings(match), []string{"aab", "aa"})
	})
}

func TestConcurrentUse(t *testing.T) {
	re := MustCompile(`(?<word>\w+)@(\w+)\.com`, 0).Study(StudyJIT)
	subjects := []string{"x ann@example.com", "bob@test.com y", "none here"}
	expected := [][]string{{"ann@example.com", "ann", "example"}, {"bob@test.com", "bob", "test"}, nil}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				k := (g + n) % len(subjects)
				match, err := re.FindMatch([]byte(subjects[k]))
				if err != nil {
					t.Error(err)
					return
				}
				if expected[k] == nil {
					if match != nil {
						t.Errorf("unexpected match in %q", subjects[k])
					}
					continue
				}
				if match == nil {
					t.Errorf("no match in %q", subjects[k])
					return
				}
				got := groupStrings(match)
				for j := range got {
					if got[j] != expected[k][j] {
						t.Errorf("group %d of %q: got %q, want %q", j, subjects[k], got[j], expected[k][j])
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestBacktrackingSemantics(t *testing.T) {
	r := newRunner(t)

	// Captures set inside a failed alternative are rolled back.
	r.m("(?:(a)x|a(b))", "ab", "ab", nilMatch, "b")
	r.m("(?:(a)|ab)c", "abc", "abc", nilMatch)
	r.m("(?>(a)|b)c", "bc", "bc", nilMatch)
	// A negative lookahead leaves no captures behind.
	r.m("(?!(a)b)a", "ac", "a", nilMatch)
	r.m("(a)(?!(?=\\1)b)", "ab", "a", "a")

	r.m("(?:a|(?=b))+b", "aab", "aab")
	r.m("(?:a*)*b", "aab", "aab")
	r.m("(?:a?)+?b", "aab", "aab")
	r.m("(?:(?:a)*?)*b", "ab", "ab")
	r.m("(a|)*b", "aab", "aab", "")
	r.m("^(?:a|ab)*c", "abac", "abac")
	r.n("^(a+)+$", "aaaaaaaaaaaab")
}
