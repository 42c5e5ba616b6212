package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopwords contains common English words excluded from query matching.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true,
}

// particles are Korean postpositions and connective endings that attach to the preceding word.
// Longer forms come first so "에서는" is removed whole rather than as "는".
var particles = []string{
	"에서는", "으로는", "이라면", "에서", "으로", "에게", "까지", "부터", "처럼", "보다",
	"인데", "이고", "이면", "라면", "은", "는", "이", "가", "을", "를", "의", "에", "도", "와", "과", "로", "만",
}

// stripParticle removes one trailing particle from a Hangul word, keeping at least two runes
func stripParticle(w string) string {
	last, _ := utf8.DecodeLastRuneInString(w)
	if !unicode.Is(unicode.Hangul, last) {
		return w
	}
	for _, p := range particles {
		if rest, ok := strings.CutSuffix(w, p); ok && utf8.RuneCountInString(rest) >= 2 {
			return rest
		}
	}
	return w
}

// Tokenize splits text into unique lowercase non-stopword tokens in order of appearance.
// Words break on any rune that is not a letter or digit and on camelCase boundaries;
// a trailing Korean particle is dropped.
func Tokenize(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range splitWords(text) {
		w = stripParticle(strings.ToLower(w))
		if utf8.RuneCountInString(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

func splitWords(text string) []string {
	var (
		words []string
		cur   []rune
		prev  rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			prev = 0
			continue
		}
		if unicode.IsUpper(r) && unicode.IsLower(prev) {
			flush()
		}
		cur = append(cur, r)
		prev = r
	}
	flush()
	return words
}
