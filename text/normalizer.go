// Package text normalizes free-form WhatsApp messages so keyword and intent
// matching sees a stable token stream: accents folded, stopwords dropped and
// Portuguese inflections collapsed to a common stem.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var stopwords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {},
	"a": {}, "o": {}, "as": {}, "os": {}, "um": {}, "uma": {},
	"e": {}, "ou": {}, "em": {}, "no": {}, "na": {}, "nos": {}, "nas": {},
	"para": {}, "pra": {}, "por": {}, "com": {}, "sem": {},
	"que": {}, "se": {}, "eu": {}, "meu": {}, "minha": {}, "seu": {}, "sua": {},
	"voce": {}, "vc": {}, "ele": {}, "ela": {}, "isso": {}, "este": {}, "esse": {},
	"esta": {}, "essa": {}, "ja": {}, "ai": {}, "la": {}, "aqui": {},
	"bom": {}, "boa": {}, "ola": {}, "oi": {}, "dia": {}, "tarde": {}, "noite": {},
	"por favor": {}, "favor": {}, "obrigado": {}, "obrigada": {},
}

// verbSuffixes is ordered longest and most specific first; the first suffix
// that fits with at least 2 chars of stem remaining is stripped.
var verbSuffixes = []string{
	"ariam", "eriam", "iriam", "assem", "essem", "issem",
	"ando", "endo", "indo", "arei", "erei", "irei",
	"aria", "eria", "iria", "aram", "eram", "iram",
	"ava", "iam", "ado", "ido",
	"ar", "er", "ir",
}

// canonicalPrefixes collapses morphological families the suffix stripper
// alone cannot unify ("horas", "horario", "horarios" -> "hora").
var canonicalPrefixes = []struct {
	prefix string
	canon  string
}{
	{"horari", "hora"},
	{"hora", "hora"},
	{"agend", "agend"},
	{"financ", "financ"},
	{"avali", "avali"},
}

// Normalize lowercases, strips diacritics and collapses whitespace.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	decomposed := norm.NFD.String(lower)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Fold is Normalize plus punctuation removal, so whole-phrase containment is
// not defeated by a trailing "?" or comma.
func Fold(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, Normalize(text))
	return strings.Join(strings.Fields(cleaned), " ")
}

// Tokenize folds, splits on whitespace, drops short tokens and stopwords, and
// canonicalizes what remains.
func Tokenize(text string) []string {
	var tokens []string
	for _, raw := range strings.Fields(Fold(text)) {
		if len(raw) < 2 {
			continue
		}
		if _, ok := stopwords[raw]; ok {
			continue
		}
		tokens = append(tokens, CanonicalizeToken(raw))
	}
	return tokens
}

// CanonicalizeToken reduces a single token to its canonical stem. Idempotent:
// canonicalizing a canonical token returns it unchanged.
func CanonicalizeToken(token string) string {
	t := Normalize(token)
	if len(t) > 4 && strings.HasSuffix(t, "s") {
		t = t[:len(t)-1]
	}
	for _, suffix := range verbSuffixes {
		if strings.HasSuffix(t, suffix) && len(t)-len(suffix) >= 2 {
			t = t[:len(t)-len(suffix)]
			break
		}
	}
	for _, entry := range canonicalPrefixes {
		if strings.HasPrefix(t, entry.prefix) {
			return entry.canon
		}
	}
	return t
}
