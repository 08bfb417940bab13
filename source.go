package pcre

import (
	"unicode/utf8"
)

// patternSource is a cursor over the pattern text. In UTF mode it yields
// code points, otherwise every byte is a character.
type patternSource struct {
	src []byte
	utf bool
	pos int
}

func (s *patternSource) atEnd() bool {
	return s.pos >= len(s.src)
}

// peek returns the next character without consuming it. At the end of the
// pattern it returns -1.
func (s *patternSource) peek() rune {
	r, _ := s.peekSize()
	return r
}

func (s *patternSource) peekSize() (rune, int) {
	if s.pos >= len(s.src) {
		return -1, 0
	}
	if !s.utf {
		return rune(s.src[s.pos]), 1
	}
	return utf8.DecodeRune(s.src[s.pos:])
}

// peekAt returns the byte n bytes ahead, or -1. It is only used to look for
// ASCII syntax characters.
func (s *patternSource) peekAt(n int) rune {
	if s.pos+n >= len(s.src) {
		return -1
	}
	return rune(s.src[s.pos+n])
}

func (s *patternSource) next() rune {
	r, size := s.peekSize()
	s.pos += size
	return r
}

func (s *patternSource) eat(c rune) bool {
	if s.peek() == c {
		s.pos++
		return true
	}
	return false
}

func (s *patternSource) hasPrefix(prefix string) bool {
	return len(s.src)-s.pos >= len(prefix) && string(s.src[s.pos:s.pos+len(prefix)]) == prefix
}

func (s *patternSource) eatPrefix(prefix string) bool {
	if s.hasPrefix(prefix) {
		s.pos += len(prefix)
		return true
	}
	return false
}

// decimal consumes a run of ASCII digits. ok is false if there are none;
// the value saturates instead of overflowing.
func (s *patternSource) decimal() (n int, ok bool) {
	for isDigit(s.peek()) {
		if n < 1<<24 {
			n = n*10 + int(s.next()-'0')
		} else {
			s.next()
		}
		ok = true
	}
	return n, ok
}

// subject is the text being matched, cut at the end offset.
type subject struct {
	b   []byte
	utf bool
}

// decode returns the character at pos and its width. At the end it
// returns width 0.
func (s *subject) decode(pos int) (rune, int) {
	if pos >= len(s.b) {
		return -1, 0
	}
	c := s.b[pos]
	if !s.utf || c < utf8.RuneSelf {
		return rune(c), 1
	}
	return utf8.DecodeRune(s.b[pos:])
}

// decodeLast returns the character ending at pos and its width. At the
// start it returns width 0.
func (s *subject) decodeLast(pos int) (rune, int) {
	if pos <= 0 {
		return -1, 0
	}
	c := s.b[pos-1]
	if !s.utf || c < utf8.RuneSelf {
		return rune(c), 1
	}
	return utf8.DecodeLastRune(s.b[:pos])
}

// validateUTF8 returns the offset of the first invalid sequence, or -1.
func validateUTF8(b []byte) int {
	for i := 0; i < len(b); {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
