package tempr

import (
	"regexp"
	"strings"
)

// tokenPattern splits on runs of non-alphanumeric characters. Deterministic
// and monotone: appending text can only add tokens, never remove them,
// satisfying spec §4.3's count(a+b) >= count(a).
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

// Tokenizer estimates token counts for budget filtering (spec §4.3).
// Does not need to match any specific LLM's tokenizer exactly.
type Tokenizer struct{}

// Count implements the count(text) -> nat contract. ceil(0.75 tokens per
// word), and at least 1 for text with any word, which keeps the estimate
// monotone under concatenation while staying in the right ballpark for
// English prose.
func (Tokenizer) Count(text string) int {
	words := tokenPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return 0
	}
	n := (len(words)*3 + 3) / 4 // ceil(words * 0.75)
	if n < len(words)/2 {
		n = len(words) / 2
	}
	if n == 0 {
		n = 1
	}
	return n
}

// stopwordSet is a small hand-rolled English stopword list. An earlier
// revision used github.com/orsinium-labs/stopwords here; that dependency
// was dropped (see DESIGN.md) because its exported API could not be
// verified, and shipping a guessed call site risked a hard compile
// failure for no real functional gain over a literal set.
var stopwordSet = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {}, "then": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {},
	"about": {}, "against": {}, "between": {}, "into": {}, "through": {}, "during": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {}, "its": {}, "as": {},
	"from": {}, "up": {}, "down": {}, "out": {}, "off": {}, "over": {}, "under": {},
	"again": {}, "further": {}, "so": {}, "than": {}, "too": {}, "very": {}, "just": {},
	"he": {}, "she": {}, "they": {}, "we": {}, "you": {}, "i": {}, "him": {}, "her": {},
	"them": {}, "his": {}, "their": {}, "my": {}, "your": {}, "do": {}, "does": {}, "did": {},
	"have": {}, "has": {}, "had": {}, "not": {}, "no": {}, "can": {}, "will": {}, "would": {},
	"should": {}, "could": {},
}

// keywordTerms extracts lower-cased, stopword-filtered terms for the
// keyword strategy's query-side processing.
func keywordTerms(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, w := range raw {
		if _, ok := stopwordSet[w]; ok {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}
