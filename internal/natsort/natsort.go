// Package natsort orders file and folder names so that digit runs compare
// numerically ("Lesson 2" before "Lesson 10").
package natsort

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Token is one segment of a sort key: either a run of decimal digits, held
// as ASCII, or a lowercased run of everything else.
type Token struct {
	Numeric bool
	Text    string
}

// Key splits name on digit-run boundaries. The first token is always text
// (possibly empty) and tokens alternate text/number from there on, so two keys
// always compare like-typed tokens position by position.
func Key(name string) []Token {
	var tokens []Token
	var cur strings.Builder
	inDigits := false

	flush := func(numeric bool) {
		s := cur.String()
		if !numeric {
			s = strings.ToLower(s)
		}
		tokens = append(tokens, Token{Numeric: numeric, Text: s})
		cur.Reset()
	}

	for _, r := range name {
		isDigit := unicode.IsDigit(r)
		if isDigit != inDigits {
			flush(inDigits)
			inDigits = isDigit
		}
		if isDigit {
			cur.WriteByte(byte('0' + digitValue(r)))
			continue
		}
		cur.WriteRune(r)
	}
	flush(inDigits)
	if inDigits {
		// keep the text/number alternation closed with a trailing empty text
		tokens = append(tokens, Token{})
	}
	return tokens
}

// Compare returns -1, 0 or 1 comparing the natural keys of a and b.
func Compare(a, b string) int {
	ka, kb := Key(a), Key(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := compareToken(ka[i], kb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ka) < len(kb):
		return -1
	case len(ka) > len(kb):
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Strings sorts names in place in natural order. The sort is stable.
func Strings(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return Less(names[i], names[j]) })
}

// Paths sorts relative paths component by component, so "a/2" precedes "a/10"
// and a parent always precedes its children.
func Paths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool { return ComparePath(paths[i], paths[j]) < 0 })
}

// ComparePath compares two slash- or separator-delimited paths by their
// natural keys, one component at a time.
func ComparePath(a, b string) int {
	pa := splitPath(a)
	pb := splitPath(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if c := Compare(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

func splitPath(p string) []string {
	p = filepath.ToSlash(p)
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Digits rewrites every Unicode decimal digit in s ("１２", "١٢") as its
// ASCII form and leaves everything else untouched.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return rune('0' + digitValue(r))
		}
		return r
	}, s)
}

// digitValue returns the value of a decimal digit rune. Decimal digits are
// encoded in contiguous runs that start at zero, so the distance from the
// start of the run, mod 10, is the value.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	n := 0
	for unicode.IsDigit(r - 1) {
		r--
		n++
	}
	return n % 10
}

func compareToken(a, b Token) int {
	if a.Numeric && b.Numeric {
		return compareDigits(a.Text, b.Text)
	}
	return strings.Compare(a.Text, b.Text)
}

// compareDigits compares two digit strings by numeric value without parsing,
// so runs longer than an int64 still order correctly.
func compareDigits(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	return strings.Compare(ta, tb)
}
