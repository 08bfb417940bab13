package pcre

import (
	"strconv"
)

// Group represents a single captured substring of a match.
// It is safe for concurrent use by multiple goroutines.
type Group struct {
	src []byte
	// Start is the inclusive start byte offset of the captured substring,
	// or -1 if the group did not participate in the match.
	Start int
	// End is the exclusive end byte offset of the captured substring,
	// or -1 if the group did not participate in the match.
	End int
	// Name is the group name if defined, otherwise empty.
	Name string
}

// Matched reports whether the group participated in the match.
func (g Group) Matched() bool {
	return g.Start >= 0
}

// Data returns the captured substring.
// If the group did not participate in the match (Start == -1), it returns nil.
func (g Group) Data() []byte {
	if g.Start < 0 {
		return nil
	}
	return g.src[g.Start:g.End:g.End]
}

// String returns the captured substring, or "" for an unset group.
func (g Group) String() string {
	return string(g.Data())
}

// Match holds the result of a successful match.
// A Match refers to the subject it was produced from and must not be used
// after that buffer is modified. It is safe for concurrent use by multiple
// goroutines.
type Match struct {
	// Groups is the ordered list of captures.
	// Groups[0] is the full match; subsequent entries correspond to
	// the capturing groups in the pattern.
	Groups []Group
	// NamedGroups maps a group name to its captured group.
	NamedGroups map[string]Group
	// Pos and EndPos are the start and end offsets the search was run with.
	Pos    int
	EndPos int
	// LastIndex is the number of the highest-numbered group that
	// participated, or 0 if none did.
	LastIndex int

	re *Regexp
}

func newMatch(re *Regexp, src []byte, slots []int, pos, endPos int) *Match {
	prog := re.prog
	m := &Match{
		Groups:      make([]Group, prog.ncap+1),
		NamedGroups: make(map[string]Group, len(prog.names)),
		Pos:         pos,
		EndPos:      endPos,
		re:          re,
	}
	for i := range m.Groups {
		g := &m.Groups[i]
		g.src = src
		g.Name = prog.groupNames[i]
		g.Start, g.End = slots[2*i], slots[2*i+1]
		if g.Start < 0 || g.End < 0 || g.End < g.Start {
			g.Start, g.End = -1, -1
		} else if i > 0 {
			m.LastIndex = i
		}
	}
	for name, i := range prog.names {
		m.NamedGroups[name] = m.Groups[i]
	}
	return m
}

// Span returns the offsets of the whole match.
func (m *Match) Span() (start, end int) {
	return m.Groups[0].Start, m.Groups[0].End
}

// GroupSpan returns the offsets of group i, or (-1, -1) if it did not
// participate. ok is false if there is no group i.
func (m *Match) GroupSpan(i int) (start, end int, ok bool) {
	if i < 0 || i >= len(m.Groups) {
		return -1, -1, false
	}
	return m.Groups[i].Start, m.Groups[i].End, true
}

// Group returns the text of group i. ok is false if there is no such group
// or it did not participate.
func (m *Match) Group(i int) (text []byte, ok bool) {
	if i < 0 || i >= len(m.Groups) || !m.Groups[i].Matched() {
		return nil, false
	}
	return m.Groups[i].Data(), true
}

// GroupByName is like [Match.Group] with the group given by name.
func (m *Match) GroupByName(name string) (text []byte, ok bool) {
	g, found := m.NamedGroups[name]
	if !found || !g.Matched() {
		return nil, false
	}
	return g.Data(), true
}

// lookup resolves a group reference that is either a number or a name.
func (m *Match) lookup(ref string) (Group, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 0 || n >= len(m.Groups) {
			return Group{}, false
		}
		return m.Groups[n], true
	}
	g, ok := m.NamedGroups[ref]
	return g, ok
}

// GroupDict returns the text of every named group. Groups that did not
// participate map to def.
func (m *Match) GroupDict(def string) map[string]string {
	res := make(map[string]string, len(m.NamedGroups))
	for name, g := range m.NamedGroups {
		if g.Matched() {
			res[name] = g.String()
		} else {
			res[name] = def
		}
	}
	return res
}

// Strings returns the text of groups 1 and up, with def for a group that
// did not participate.
func (m *Match) Strings(def string) []string {
	res := make([]string, 0, len(m.Groups)-1)
	for _, g := range m.Groups[1:] {
		if g.Matched() {
			res = append(res, g.String())
		} else {
			res = append(res, def)
		}
	}
	return res
}

// LastGroup returns the name of the group numbered LastIndex, or "" if it
// has none.
func (m *Match) LastGroup() string {
	return m.Groups[m.LastIndex].Name
}

// Regexp returns the pattern that produced m.
func (m *Match) Regexp() *Regexp {
	return m.re
}
