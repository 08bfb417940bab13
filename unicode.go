package pcre

import (
	"unicode"
)

var anyTable = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0, Hi: 0xFFFF, Stride: 1}},
	R32: []unicode.Range32{{Lo: 0x10000, Hi: unicode.MaxRune, Stride: 1}},
}

// lookupProperty resolves the name used in \p{...}. General categories are
// tried first, then scripts, then binary properties.
func lookupProperty(name string) ([]*unicode.RangeTable, bool) {
	switch name {
	case "Any":
		return []*unicode.RangeTable{anyTable}, true
	case "L&", "LC":
		return []*unicode.RangeTable{unicode.Lu, unicode.Ll, unicode.Lt}, true
	}
	if t, ok := unicode.Categories[name]; ok {
		return []*unicode.RangeTable{t}, true
	}
	if t, ok := unicode.Scripts[name]; ok {
		return []*unicode.RangeTable{t}, true
	}
	if t, ok := unicode.Properties[name]; ok {
		return []*unicode.RangeTable{t}, true
	}
	return nil, false
}

func propertyClass(name string, negate bool) (*charClass, bool) {
	tables, ok := lookupProperty(name)
	if !ok {
		return nil, false
	}
	return &charClass{props: []classProp{{name: name, negate: negate, tables: tables}}}, true
}

func rangesClass(ranges ...charRange) *charClass {
	c := &charClass{}
	for _, r := range ranges {
		c.set.unionRange(r.lo, r.hi)
	}
	return c
}

var (
	asciiDigit = []charRange{{'0', '9'}}
	asciiWord  = []charRange{{'0', '9'}, {'A', 'Z'}, {'_', '_'}, {'a', 'z'}}
	asciiSpace = []charRange{{'\t', '\r'}, {' ', ' '}}

	horizontalSpace = []charRange{
		{'\t', '\t'}, {' ', ' '}, {0xA0, 0xA0}, {0x1680, 0x1680}, {0x180E, 0x180E},
		{0x2000, 0x200A}, {0x202F, 0x202F}, {0x205F, 0x205F}, {0x3000, 0x3000},
	}
	verticalSpace = []charRange{{'\n', '\r'}, {0x85, 0x85}, {0x2028, 0x2029}}
)

// escapeClass returns the class for \d \D \w \W \s \S \h \H \v \V. Under UCP
// the digit, word and space classes use Unicode properties.
func escapeClass(c rune, ucp bool) *charClass {
	var cls *charClass
	switch c | 0x20 {
	case 'd':
		if ucp {
			cls, _ = propertyClass("Nd", false)
		} else {
			cls = rangesClass(asciiDigit...)
		}
	case 'w':
		if ucp {
			cls = rangesClass(charRange{'_', '_'})
			cls.props = []classProp{
				{name: "L", tables: []*unicode.RangeTable{unicode.L}},
				{name: "N", tables: []*unicode.RangeTable{unicode.N}},
			}
		} else {
			cls = rangesClass(asciiWord...)
		}
	case 's':
		cls = rangesClass(asciiSpace...)
		if ucp {
			cls.props = []classProp{{name: "Z", tables: []*unicode.RangeTable{unicode.Z}}}
		}
	case 'h':
		cls = rangesClass(horizontalSpace...)
	case 'v':
		cls = rangesClass(verticalSpace...)
	default:
		return nil
	}
	if c >= 'A' && c <= 'Z' {
		cls.negate = true
	}
	return cls
}

type posixClass struct {
	ascii []charRange
	// Unicode property names used instead of ascii under UCP, if any.
	ucp []string
	// Extra ASCII members kept alongside ucp.
	ucpExtra []charRange
}

var posixClasses = map[string]posixClass{
	"alnum":  {ascii: []charRange{{'0', '9'}, {'A', 'Z'}, {'a', 'z'}}, ucp: []string{"L", "N"}},
	"alpha":  {ascii: []charRange{{'A', 'Z'}, {'a', 'z'}}, ucp: []string{"L"}},
	"ascii":  {ascii: []charRange{{0, 0x7F}}},
	"blank":  {ascii: []charRange{{'\t', '\t'}, {' ', ' '}}},
	"cntrl":  {ascii: []charRange{{0, 0x1F}, {0x7F, 0x7F}}},
	"digit":  {ascii: asciiDigit, ucp: []string{"Nd"}},
	"graph":  {ascii: []charRange{{'!', '~'}}},
	"lower":  {ascii: []charRange{{'a', 'z'}}, ucp: []string{"Ll"}},
	"print":  {ascii: []charRange{{' ', '~'}}},
	"punct":  {ascii: []charRange{{'!', '/'}, {':', '@'}, {'[', '`'}, {'{', '~'}}},
	"space":  {ascii: asciiSpace, ucp: []string{"Z"}, ucpExtra: asciiSpace},
	"upper":  {ascii: []charRange{{'A', 'Z'}}, ucp: []string{"Lu"}},
	"word":   {ascii: asciiWord, ucp: []string{"L", "N"}, ucpExtra: []charRange{{'_', '_'}}},
	"xdigit": {ascii: []charRange{{'0', '9'}, {'A', 'F'}, {'a', 'f'}}},
}

func posixNamedClass(name string, negate, ucp bool) (*charClass, bool) {
	pc, ok := posixClasses[name]
	if !ok {
		return nil, false
	}
	var cls *charClass
	if ucp && len(pc.ucp) > 0 {
		cls = rangesClass(pc.ucpExtra...)
		for _, prop := range pc.ucp {
			tables, _ := lookupProperty(prop)
			cls.props = append(cls.props, classProp{name: prop, tables: tables})
		}
	} else {
		cls = rangesClass(pc.ascii...)
	}
	cls.negate = negate
	return cls, true
}

func isASCIIWordChar(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r|0x20 && r|0x20 <= 'z') || r == '_'
}

func isWordChar(r rune, ucp bool) bool {
	if r < 0x80 || !ucp {
		return isASCIIWordChar(r)
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c rune) bool {
	return isDigit(c) || ('a' <= c|0x20 && c|0x20 <= 'f')
}

func hexValue(c rune) rune {
	if isDigit(c) {
		return c - '0'
	}
	return c|0x20 - 'a' + 10
}

func isSurrogate(r rune) bool {
	return 0xD800 <= r && r <= 0xDFFF
}
