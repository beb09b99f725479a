package text

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Similarity scores two texts in [0, 1]. Both are lowercased and stripped of
// punctuation, stopwords for languageHint are removed when a lexicon exists,
// and the remainders are compared by cosine similarity of TF-IDF vectors fit
// on exactly these two documents. A side left empty scores 0.
func Similarity(a, b, languageHint string) float64 {
	tag, ok := parseTag(languageHint)
	if !ok {
		tag = language.Und
	}
	lower := cases.Lower(tag)
	lex := Lexicon(languageHint)

	fa := RemoveStopwords(Normalize(lower.String(a)), lex)
	fb := RemoveStopwords(Normalize(lower.String(b)), lex)
	if fa == "" || fb == "" {
		return 0
	}
	return CosineTFIDF(Terms(fa), Terms(fb))
}

// Terms splits cleaned text into index terms: runs of at least two word runes.
func Terms(cleaned string) []string {
	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// CosineTFIDF fits raw term counts with smoothed inverse document frequency
// idf(t) = ln((1+n)/(1+df(t))) + 1 over the two documents, L2-normalizes both
// vectors and returns their dot product. An empty vocabulary scores 0.
func CosineTFIDF(docA, docB []string) float64 {
	ca, cb := countTerms(docA), countTerms(docB)
	if len(ca) == 0 || len(cb) == 0 {
		return 0
	}

	const n = 2.0
	idf := func(t string) float64 {
		df := 0.0
		if _, ok := ca[t]; ok {
			df++
		}
		if _, ok := cb[t]; ok {
			df++
		}
		return math.Log((1+n)/(1+df)) + 1
	}

	var dot, normA, normB float64
	for t, c := range ca {
		w := float64(c) * idf(t)
		normA += w * w
		if cbt, ok := cb[t]; ok {
			dot += w * float64(cbt) * idf(t)
		}
	}
	for t, c := range cb {
		w := float64(c) * idf(t)
		normB += w * w
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return math.Min(1, dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}

func countTerms(doc []string) map[string]int {
	m := make(map[string]int, len(doc))
	for _, t := range doc {
		m[t]++
	}
	return m
}
