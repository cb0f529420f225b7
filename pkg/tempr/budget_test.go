package tempr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hundredTokenText repeats a word enough times that Tokenizer{}.Count
// reports roughly 100 tokens, mirroring scenario 5 from spec §8.
func hundredTokenText() string {
	words := make([]string, 134) // ceil(134*0.75) = 101, close enough for the budget math below
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestBudgetFilter_GreedyPrefix(t *testing.T) {
	tok := Tokenizer{}
	text := hundredTokenText()
	perUnit := tok.Count(text)
	require.Greater(t, perUnit, 0)

	items := make([]ResultItem, 10)
	for i := range items {
		items[i] = ResultItem{ID: string(rune('a' + i)), Text: text}
	}

	maxTokens := perUnit*3 + perUnit/2
	out := budgetFilter(tok, items, maxTokens)
	assert.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[2].ID)
}

func TestBudgetFilter_FirstUnitAlwaysIncludedEvenIfOversized(t *testing.T) {
	tok := Tokenizer{}
	huge := strings.Repeat("word ", 10000)
	items := []ResultItem{{ID: "only", Text: huge}}
	out := budgetFilter(tok, items, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "only", out[0].ID)
}

func TestBudgetFilter_EmptyInput(t *testing.T) {
	out := budgetFilter(Tokenizer{}, nil, 100)
	assert.Empty(t, out)
}

func TestTokenizer_Monotone(t *testing.T) {
	tok := Tokenizer{}
	a := "the quick brown fox"
	b := a + " jumps over the lazy dog"
	assert.GreaterOrEqual(t, tok.Count(b), tok.Count(a))
}
