package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/finsolve/rbac-chat/schema"
)

var stopwords = map[string]struct{}{
	"what": {}, "was": {}, "were": {}, "the": {}, "this": {}, "that": {},
	"with": {}, "from": {}, "into": {}, "does": {}, "have": {}, "has": {},
	"had": {}, "about": {}, "which": {}, "where": {}, "when": {},
	"finsolve": {}, "technologies": {}, "please": {}, "give": {},
	"show": {}, "tell": {}, "much": {}, "many": {}, "year": {}, "years": {},
}

var (
	wordPattern     = regexp.MustCompile(`\b\w+\b`)
	sentencePattern = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
)

// Extractive answers by picking the context sentence with the highest
// query-term overlap, falling back to a key-point summary. Same inputs
// always produce the same output.
type Extractive struct{}

// NewExtractive creates the offline answer provider.
func NewExtractive() *Extractive { return &Extractive{} }

// Generate implements Provider.
func (e *Extractive) Generate(_ context.Context, _ string, question string, contexts []schema.SearchResult) (string, error) {
	if len(contexts) == 0 {
		return NoContextAnswer, nil
	}

	if sentence, source := bestSentence(question, contexts); sentence != "" {
		return fmt.Sprintf("%s\n(source: %s)", sentence, source), nil
	}

	lines := []string{"Key points from the knowledge base:"}
	for _, c := range contexts {
		lines = append(lines, fmt.Sprintf("- %s (source: %s)", shorten(c.Document.Content, 180), c.Document.Source))
	}
	return strings.Join(lines, "\n"), nil
}

// bestSentence scores every context sentence by overlap with the question's
// significant terms.
func bestSentence(question string, contexts []schema.SearchResult) (string, string) {
	terms := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(question), -1) {
		if len(w) <= 3 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		terms[w] = struct{}{}
	}
	if len(terms) == 0 {
		return "", ""
	}

	bestScore := 0
	var best, bestSource string
	for _, c := range contexts {
		for _, sentence := range splitSentences(c.Document.Content) {
			lower := strings.ToLower(sentence)
			score := 0
			for term := range terms {
				if strings.Contains(lower, term) {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				best = sentence
				bestSource = c.Document.Source
			}
		}
	}
	return best, bestSource
}

func splitSentences(text string) []string {
	var sentences []string
	rest := text
	for {
		loc := sentencePattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		s := strings.TrimSpace(rest[loc[2]:loc[3]])
		if s != "" {
			sentences = append(sentences, s)
		}
		rest = rest[loc[1]:]
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func shorten(text string, width int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if len(collapsed) <= width {
		return collapsed
	}
	cut := collapsed[:width-3]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
