// Package textnorm reproduces the search index tokenizer in Go
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Lowercasing, rune by rune like the unicode61 tokenizer (no full case folding, ß stays ß)
// 3 Split on every rune that is not a token rune
//
// Token runes are letters, numbers, private-use runes and the two symbols '#' and '+',
// which keeps language names such as "c#" and "c++" intact. No stemming, no stopwords.
package textnorm

import (
	"errors"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

// TokenChars are the non-alphanumeric runes kept inside tokens
const TokenChars = "#+"

// Tokenizer is the FTS5 tokenize argument matching Tokenize
const Tokenizer = "unicode61 remove_diacritics 0 tokenchars '" + TokenChars + "'"

// ErrNoTokens is returned when a keyword normalizes to nothing searchable
var ErrNoTokens = errors.New("textnorm: keyword has no searchable tokens")

// pool of fresh lowercasing transformers
var foldPool = sync.Pool{
	New: func() any { return cases.Lower(language.Und) },
}

// Fold returns the lowercased form of s with invalid UTF-8 dropped
// Multi-rune foldings (ß to ss, ligatures) are not applied so tokens agree with the index
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// IsTokenRune reports whether r belongs inside a token
func IsTokenRune(r rune) bool {
	switch {
	case strings.ContainsRune(TokenChars, r):
		return true
	case unicode.IsLetter(r), unicode.IsNumber(r):
		return true
	case unicode.Is(unicode.Co, r):
		return true
	}
	return false
}

// Tokenize folds s and splits it into index tokens
func Tokenize(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool { return !IsTokenRune(r) })
}

// MatchExpr renders keyword as an FTS5 MATCH expression
// Every token becomes a quoted string term; multiple tokens are OR-ed, so an item
// matches when it contains any of them (the disjunctive behaviour of a BM25 query)
func MatchExpr(keyword string) (string, error) {
	toks := Tokenize(keyword)
	if len(toks) == 0 {
		return "", ErrNoTokens
	}
	seen := make(map[string]struct{}, len(toks))
	terms := make([]string, 0, len(toks))
	for _, t := range toks {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR "), nil
}

// Contains reports whether text would match keyword under MatchExpr semantics
func Contains(text, keyword string) bool {
	want := Tokenize(keyword)
	if len(want) == 0 {
		return false
	}
	have := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}
