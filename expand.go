package pcre

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// An Expander renders a replacement for a match. It appends the result
// to dst and returns the extended buffer.
type Expander interface {
	Expand(dst []byte, m *Match) ([]byte, error)
}

// Expand renders e against m. Groups that did not participate expand to
// the empty string.
func (m *Match) Expand(e Expander) (string, error) {
	b, err := e.Expand(nil, m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PerlTemplate is a replacement template in backslash syntax: \0 to \9
// insert a group by number, \g<n> and \g<name> insert any group, and \\ is
// a literal backslash. Any other backslash sequence is copied unchanged.
type PerlTemplate string

func (t PerlTemplate) Expand(dst []byte, m *Match) ([]byte, error) {
	s := string(t)
	for {
		i := strings.IndexByte(s, '\\')
		if i < 0 {
			return append(dst, s...), nil
		}
		dst = append(dst, s[:i]...)
		s = s[i+1:]
		switch {
		case s == "":
			return append(dst, '\\'), nil
		case isDigit(rune(s[0])):
			var err error
			if dst, err = appendGroup(dst, m, s[:1]); err != nil {
				return nil, err
			}
			s = s[1:]
		case s[0] == '\\':
			dst = append(dst, '\\')
			s = s[1:]
		case strings.HasPrefix(s, "g<"):
			end := strings.IndexByte(s, '>')
			if end < 0 {
				return nil, errors.New("pcre: missing > in template group reference")
			}
			var err error
			if dst, err = appendGroup(dst, m, s[2:end]); err != nil {
				return nil, err
			}
			s = s[end+1:]
		default:
			dst = append(dst, '\\')
		}
	}
}

// FormatTemplate is a replacement template in brace syntax: {0} is the
// whole match, {n} and {name} insert a group, and {{ and }} are literal
// braces.
type FormatTemplate string

func (t FormatTemplate) Expand(dst []byte, m *Match) ([]byte, error) {
	s := string(t)
	for {
		i := strings.IndexAny(s, "{}")
		if i < 0 {
			return append(dst, s...), nil
		}
		dst = append(dst, s[:i]...)
		c := s[i]
		s = s[i+1:]
		if s != "" && s[0] == c {
			dst = append(dst, c)
			s = s[1:]
			continue
		}
		if c == '}' {
			return nil, errors.New("pcre: single } in template")
		}
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return nil, errors.New("pcre: single { in template")
		}
		if end == 0 {
			return nil, errors.New("pcre: empty field in template")
		}
		var err error
		if dst, err = appendGroup(dst, m, s[:end]); err != nil {
			return nil, err
		}
		s = s[end+1:]
	}
}

func appendGroup(dst []byte, m *Match, ref string) ([]byte, error) {
	g, ok := m.lookup(ref)
	if !ok {
		return nil, errors.Errorf("pcre: unknown group %q in template", ref)
	}
	return append(dst, g.Data()...), nil
}

// ConvertTemplate rewrites a [PerlTemplate] into the equivalent
// [FormatTemplate]. Literal braces are doubled.
func ConvertTemplate(t PerlTemplate) FormatTemplate {
	var b strings.Builder
	s := string(t)
	for s != "" {
		c := s[0]
		switch {
		case c == '{' || c == '}':
			b.WriteByte(c)
			b.WriteByte(c)
			s = s[1:]
		case c != '\\' || len(s) == 1:
			b.WriteByte(c)
			s = s[1:]
		case isDigit(rune(s[1])):
			b.WriteString("{" + s[1:2] + "}")
			s = s[2:]
		case s[1] == '\\':
			b.WriteByte('\\')
			s = s[2:]
		case strings.HasPrefix(s[1:], "g<") && strings.IndexByte(s, '>') > 0:
			end := strings.IndexByte(s, '>')
			b.WriteString("{" + s[3:end] + "}")
			s = s[end+1:]
		default:
			b.WriteByte('\\')
			s = s[1:]
		}
	}
	return FormatTemplate(b.String())
}

// Escape returns s with every character that is not an ASCII letter or
// digit preceded by a backslash, so that the result matches s literally.
// NUL becomes \000.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		c := s[0]
		w := 1
		if c >= utf8.RuneSelf {
			_, w = utf8.DecodeRuneInString(s)
		}
		switch {
		case c == 0:
			b.WriteString(`\000`)
		case c < utf8.RuneSelf && c != '_' && isASCIIWordChar(rune(c)):
			b.WriteByte(c)
		default:
			b.WriteByte('\\')
			b.WriteString(s[:w])
		}
		s = s[w:]
	}
	return b.String()
}
