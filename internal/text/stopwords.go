package text

import (
	"embed"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed stopwords/*.txt
var stopwordFS embed.FS

var (
	lexiconsOnce sync.Once
	lexicons     map[string]map[string]struct{}
)

// loadLexicons reads one word per line, keyed by ISO 639-1 base language.
// Entries go through the same cleaning as scored text so "don't" matches
// the "dont" token the normalizer produces.
func loadLexicons() {
	lexicons = make(map[string]map[string]struct{})
	entries, err := stopwordFS.ReadDir("stopwords")
	if err != nil {
		return
	}
	for _, e := range entries {
		base := strings.TrimSuffix(e.Name(), ".txt")
		data, err := stopwordFS.ReadFile(path.Join("stopwords", e.Name()))
		if err != nil {
			continue
		}
		lower := cases.Lower(language.Make(base))
		set := make(map[string]struct{})
		for _, line := range strings.Split(string(data), "\n") {
			if w := Normalize(lower.String(line)); w != "" {
				set[w] = struct{}{}
			}
		}
		lexicons[base] = set
	}
}

// Lexicon returns the stopword set for the language named by hint, or nil
// when none is bundled. Hints are parsed as BCP 47 tags, so "en", "en-GB"
// and "zh-cn" resolve by base language.
func Lexicon(hint string) map[string]struct{} {
	lexiconsOnce.Do(loadLexicons)
	tag, ok := parseTag(hint)
	if !ok {
		return nil
	}
	base, _ := tag.Base()
	return lexicons[base.String()]
}

// Languages lists the base languages with a bundled lexicon.
func Languages() []string {
	lexiconsOnce.Do(loadLexicons)
	out := make([]string, 0, len(lexicons))
	for k := range lexicons {
		out = append(out, k)
	}
	return out
}

// RemoveStopwords drops lexicon words from an already cleaned,
// space-separated text. Without a lexicon the text passes through.
func RemoveStopwords(cleaned string, lexicon map[string]struct{}) string {
	if lexicon == nil {
		return cleaned
	}
	fields := strings.Fields(cleaned)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := lexicon[f]; !stop {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func parseTag(hint string) (language.Tag, bool) {
	if hint == "" {
		return language.Und, false
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}
