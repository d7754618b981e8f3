package bm25

import "strings"

// stopwords removed before scoring. The same list is applied at index and
// query time; ingestion workers consume the identical tokenizer, so any
// change here is a reindexing event.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Tokenize is the single token normalizer shared by indexing and query paths.
// Lowercase, split on non-alphanumerics, stopwords dropped. No stemming.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)

	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	out := tokens[:0]
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}
