package locator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EmptyCollection is the canonical locator of zero-byte content.
const EmptyCollection = "d41d8cd98f00b204e9800998ecf8427e+0"

var (
	locatorPattern  = regexp.MustCompile(`^[0-9a-f]{32}\+[0-9]+(\+[^+]+)*$`)
	embeddedPattern = regexp.MustCompile(`[0-9a-f]{32}\+[0-9]+`)
)

// Locator is a parsed content locator
type Locator struct {
	Hash  string
	Size  int64
	Hints []string
}

// Parse parses raw as a content locator. It reports false when raw does not
// match the locator grammar; that is not an error condition.
func Parse(raw string) (Locator, bool) {
	if !locatorPattern.MatchString(raw) {
		return Locator{}, false
	}

	parts := strings.Split(raw, "+")
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		// Digits that overflow int64 are not addressable content.
		return Locator{}, false
	}

	loc := Locator{
		Hash: parts[0],
		Size: size,
	}
	if len(parts) > 2 {
		loc.Hints = append([]string(nil), parts[2:]...)
	}
	return loc, true
}

// MustParse is like Parse but panics on invalid input. Intended for tests and
// package level constants.
func MustParse(raw string) Locator {
	loc, ok := Parse(raw)
	if !ok {
		panic(fmt.Sprintf("locator: invalid content locator %q", raw))
	}
	return loc
}

// Canonical returns hash+size with all hints stripped
func (l Locator) Canonical() string {
	return l.Hash + "+" + strconv.FormatInt(l.Size, 10)
}

// String returns the locator including its hints
func (l Locator) String() string {
	if len(l.Hints) == 0 {
		return l.Canonical()
	}
	return l.Canonical() + "+" + strings.Join(l.Hints, "+")
}

// StripHints returns a copy of the locator without hints
func (l Locator) StripHints() Locator {
	return Locator{Hash: l.Hash, Size: l.Size}
}

// IsEmpty reports whether the locator names zero-byte content
func (l Locator) IsEmpty() bool {
	return l.Canonical() == EmptyCollection
}

// Canonicalize returns the canonical form of raw if it is a content locator
func Canonicalize(raw string) (string, bool) {
	loc, ok := Parse(raw)
	if !ok {
		return "", false
	}
	return loc.Canonical(), true
}

// Find returns the first hash+size sequence embedded anywhere in s. Hints are
// never part of the result.
func Find(s string) (string, bool) {
	m := embeddedPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return m, true
}
