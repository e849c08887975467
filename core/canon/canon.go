// Package canon defines the identifier vocabulary for canonical works:
// work ids ("T0001", "T0220a", "GA0026"), scroll addresses ("T0220a.15"),
// and the file-stem ids used by source file names ("T08n0251", "J15nB005").
package canon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// WorkID represents a parsed canonical work identifier.
type WorkID struct {
	// Letters is the canon prefix plus any embedded number-prefix letters
	// (e.g., "T", "GA", "JB" in "JB005").
	Letters string `json:"letters"`

	// Number is the digit run as written, zero padding preserved (e.g., "0220").
	Number string `json:"number"`

	// Sub is the trailing lowercase sub-part of a split work (e.g., "a" in
	// "T0220a"). Empty for whole works.
	Sub string `json:"sub,omitempty"`
}

// Address represents a work plus an optional scroll number.
type Address struct {
	Work WorkID `json:"work"`

	// Scroll is the 1-based scroll number, 0 when the address names a whole work.
	Scroll int `json:"scroll,omitempty"`
}

// addrGrammar is the participle grammar for scroll addresses.
// Examples: "T0001", "T0220a", "GA0026", "T0220a.15"
//
//nolint:govet // participle grammar tags are not standard struct tags
type addrGrammar struct {
	Letters string  `parser:"@Ident"`
	Number  string  `parser:"@Int"`
	Sub     *string `parser:"@Lower?"`
	Scroll  *int    `parser:"( \".\" @Int )?"`
}

// addrLexer defines the lexer for scroll addresses.
// Note: Ident starts with uppercase to distinguish from the sub-part token
// (lowercase run after the digits).
var addrLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Z][A-Za-z]*`}, // canon codes start with uppercase
	{Name: "Lower", Pattern: `[a-z]+`},         // split-work sub-part
	{Name: "Punct", Pattern: `[.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// addrParser is the participle parser for scroll addresses.
var addrParser = participle.MustBuild[addrGrammar](
	participle.Lexer(addrLexer),
	participle.Elide("Whitespace"),
)

// ParseAddress parses a work id with an optional scroll suffix.
// Supported formats:
//   - "T0001" (whole work)
//   - "T0220a" (split-work part)
//   - "GA0026" (multi-letter canon)
//   - "T0220a.15" (work and scroll)
func ParseAddress(s string) (*Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty address string")
	}

	parsed, err := addrParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid address format: %q: %w", s, err)
	}

	addr := &Address{
		Work: WorkID{
			Letters: parsed.Letters,
			Number:  parsed.Number,
		},
	}
	if parsed.Sub != nil {
		addr.Work.Sub = *parsed.Sub
	}
	if parsed.Scroll != nil {
		if *parsed.Scroll < 1 {
			return nil, fmt.Errorf("invalid address %q: scroll must be at least 1", s)
		}
		addr.Scroll = *parsed.Scroll
	}

	return addr, nil
}

// ParseWork parses a bare work id. A scroll suffix is rejected.
func ParseWork(s string) (*WorkID, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return nil, err
	}
	if addr.Scroll != 0 {
		return nil, fmt.Errorf("invalid work id %q: unexpected scroll suffix", s)
	}
	w := addr.Work
	return &w, nil
}

// String returns the identifier as written.
func (w WorkID) String() string {
	return w.Letters + w.Number + w.Sub
}

// Canon returns the canon code: the leading uppercase run of Letters.
func (w WorkID) Canon() string {
	for i := 0; i < len(w.Letters); i++ {
		if w.Letters[i] < 'A' || w.Letters[i] > 'Z' {
			return w.Letters[:i]
		}
	}
	return w.Letters
}

// Num returns the numeric value of the work number, ignoring zero padding.
func (w WorkID) Num() int {
	n, _ := strconv.Atoi(w.Number)
	return n
}

// Base returns the work id without its split-work sub-part.
func (w WorkID) Base() WorkID {
	return WorkID{Letters: w.Letters, Number: w.Number}
}

// IsSplit reports whether the id names a part of a split work.
func (w WorkID) IsSplit() bool {
	return w.Sub != ""
}

// Same reports whether two ids name the same work, ignoring zero padding.
func (w WorkID) Same(other WorkID) bool {
	return w.Letters == other.Letters && w.Num() == other.Num() && w.Sub == other.Sub
}

// String returns "work" or "work.scroll".
func (a Address) String() string {
	if a.Scroll == 0 {
		return a.Work.String()
	}
	return fmt.Sprintf("%s.%d", a.Work.String(), a.Scroll)
}

var (
	// workIDPattern matches a work id at the start of a nav leaf label,
	// e.g. "T0001 長阿含經" or "T0220a 大般若波羅蜜多經（第1卷-第200卷）".
	workIDPattern = regexp.MustCompile(`^([A-Z]+[a-zA-Z]*[0-9]+[a-zA-Z]*)\b`)

	// titlePattern captures the display title after the leading id token.
	titlePattern = regexp.MustCompile(`^[A-Z]+[a-zA-Z]*[0-9]+[a-zA-Z]*\s+(.+)$`)

	// canonPattern captures the leading uppercase canon code of an id string.
	canonPattern = regexp.MustCompile(`^([A-Z]+)`)

	// stemPattern matches a source file stem: canon, volume, optional work
	// number prefix letters, work number with optional sub letter.
	// E.g. "T08n0251", "J15nB005", "X10na096".
	stemPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)n([A-Za-z]*)([0-9]+[a-z]?)`)

	// refTargetPattern finds a file-stem id anywhere in a cross-reference
	// target, e.g. "T30n1579_p0279a07" yields "T30n1579".
	refTargetPattern = regexp.MustCompile(`[A-Z]+[0-9]+n[a-z]?[0-9]+[a-z]?`)
)

// ExtractID returns the work id at the start of a nav leaf label.
func ExtractID(label string) (string, bool) {
	m := workIDPattern.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// TitleAfterID returns the display title that follows the leading id token.
// When the label carries no id prefix the label itself is returned.
func TitleAfterID(label string) string {
	m := titlePattern.FindStringSubmatch(label)
	if m == nil {
		return label
	}
	return m[1]
}

// CanonOf returns the canon code guessed from the id prefix.
func CanonOf(id string) string {
	m := canonPattern.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	return m[1]
}

// StripSub removes a trailing split-work letter from an id string.
// The letter is stripped only when it directly follows a digit, so ids whose
// number carries a letter prefix ("JB005") are left alone.
func StripSub(id string) (string, bool) {
	if len(id) > 2 && id[len(id)-1] >= 'a' && id[len(id)-1] <= 'z' &&
		id[len(id)-2] >= '0' && id[len(id)-2] <= '9' {
		return id[:len(id)-1], true
	}
	return id, false
}

// FileStem represents a parsed source file stem like "T08n0251".
type FileStem struct {
	Canon  string // canon code ("T")
	Volume string // volume digits as written ("08")
	Prefix string // letter prefix of the work number, rare ("B" in "J15nB005")
	Number string // work number digits, optionally with a sub letter ("0251", "220a")
}

// ParseFileStem parses a source file stem. The stem may carry trailing
// characters (page citations, scroll suffixes); they are ignored.
func ParseFileStem(stem string) (FileStem, bool) {
	m := stemPattern.FindStringSubmatch(stem)
	if m == nil {
		return FileStem{}, false
	}
	return FileStem{Canon: m[1], Volume: m[2], Prefix: m[3], Number: m[4]}, true
}

// WorkID returns the canonical work id for the stem: the canon code plus the
// work number zero-padded to at least four characters.
func (f FileStem) WorkID() string {
	return f.Canon + zfill(f.Prefix+f.Number, 4)
}

// ExtractStem finds a file-stem id anywhere inside a cross-reference target.
func ExtractStem(target string) (string, bool) {
	m := refTargetPattern.FindString(target)
	if m == "" {
		return "", false
	}
	return m, true
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
