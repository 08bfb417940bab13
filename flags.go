package pcre

import (
	"strconv"
	"strings"
)

// Flag is a bitmask of pattern and match options.
// The zero value compiles a pattern with default PCRE semantics: case
// sensitive, single line, byte-oriented, "." not matching "\n".
// Combine flags with bitwise OR, e.g. FlagCaseless|FlagMultiline.
type Flag uint32

const (
	// Case-insensitive matching ("i").
	FlagCaseless Flag = 1 << iota

	// "^" and "$" also match at internal line boundaries ("m").
	FlagMultiline

	// "." matches "\n" as well ("s").
	FlagDotAll

	// Unescaped whitespace and "#" comments in the pattern are ignored ("x").
	FlagExtended

	// Pattern and subject are UTF-8 and matching works on code points.
	// Offsets stay byte offsets but must fall on code point boundaries.
	FlagUTF

	// Unicode properties decide \d, \w, \s, \b and POSIX classes.
	// Implies FlagUTF.
	FlagUCP

	// Quantifiers are lazy by default and "?" makes them greedy ("U").
	FlagUngreedy

	// "$" matches only at the very end of the subject, never before a
	// final newline. Ignored with FlagMultiline.
	FlagDollarEndOnly

	// The match must start at the start offset.
	FlagAnchored

	// The start of the subject is not the beginning of a line.
	FlagNotBOL

	// The end of the subject is not the end of a line.
	FlagNotEOL

	// An empty string is not a valid match.
	FlagNotEmpty

	// An empty string at the start offset is not a valid match.
	FlagNotEmptyAtStart

	// Skip UTF-8 validation of the subject. Matching an invalid subject
	// with this flag gives unspecified (but memory safe) results.
	FlagNoUTFCheck
)

// StudyFlag selects optional analyses performed by [Regexp.Study].
type StudyFlag uint8

const (
	// Build the regular-language fast path when the pattern allows it.
	StudyJIT StudyFlag = 1 << iota
)

type flagScope uint8

const (
	scopeCompile flagScope = 1 << iota
	scopeMatch
)

type flagInfo struct {
	flag   Flag
	name   string
	letter byte
	scope  flagScope
}

// flagTable is the single list of every option, its inline letter (if any)
// and where it may be passed.
var flagTable = [...]flagInfo{
	{FlagCaseless, "CASELESS", 'i', scopeCompile},
	{FlagMultiline, "MULTILINE", 'm', scopeCompile},
	{FlagDotAll, "DOTALL", 's', scopeCompile},
	{FlagExtended, "EXTENDED", 'x', scopeCompile},
	{FlagUTF, "UTF", 0, scopeCompile},
	{FlagUCP, "UCP", 0, scopeCompile},
	{FlagUngreedy, "UNGREEDY", 'U', scopeCompile},
	{FlagDollarEndOnly, "DOLLAR_ENDONLY", 0, scopeCompile},
	{FlagAnchored, "ANCHORED", 0, scopeCompile | scopeMatch},
	{FlagNotBOL, "NOTBOL", 0, scopeMatch},
	{FlagNotEOL, "NOTEOL", 0, scopeMatch},
	{FlagNotEmpty, "NOTEMPTY", 0, scopeMatch},
	{FlagNotEmptyAtStart, "NOTEMPTY_ATSTART", 0, scopeMatch},
	{FlagNoUTFCheck, "NO_UTF_CHECK", 0, scopeMatch},
}

func flagsWithScope(scope flagScope) Flag {
	var f Flag
	for _, info := range flagTable {
		if info.scope&scope != 0 {
			f |= info.flag
		}
	}
	return f
}

var (
	compileFlags = flagsWithScope(scopeCompile)
	matchFlags   = flagsWithScope(scopeMatch)
)

// inlineFlag maps an option letter used in (?imsxU) to its flag.
func inlineFlag(c rune) (Flag, bool) {
	for _, info := range flagTable {
		if info.letter != 0 && rune(info.letter) == c {
			return info.flag, true
		}
	}
	return 0, false
}

// String returns the names of the set flags joined by "|".
func (f Flag) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	for _, info := range flagTable {
		if f&info.flag != 0 {
			names = append(names, info.name)
			f &^= info.flag
		}
	}
	if f != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(f), 16))
	}
	return strings.Join(names, "|")
}
