// Package languages holds the two language-code tables a session selects
// from: Tesseract codes for recognition and Google Translate codes for
// translation. The code spaces differ and must not be mixed.
package languages

import (
	_ "embed"
	"strings"

	"github.com/goccy/go-yaml"

	apperrors "github.com/lingolens/platform/internal/errors"
)

//go:embed languages.yaml
var tablesYAML []byte

// Language is one selectable entry.
type Language struct {
	Name string `yaml:"name" json:"name"`
	Code string `yaml:"code" json:"code"`
}

// Tables is the pair of code tables.
type Tables struct {
	Recognition []Language `yaml:"recognition" json:"recognition"`
	Translation []Language `yaml:"translation" json:"translation"`

	recognition map[string]string
	translation map[string]string
}

// Load parses the bundled tables.
func Load() (*Tables, error) {
	return Parse(tablesYAML)
}

// Parse builds tables from YAML.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "parse language tables")
	}
	if len(t.Recognition) == 0 || len(t.Translation) == 0 {
		return nil, apperrors.New(apperrors.ConfigInvalid, "language tables must not be empty")
	}
	t.recognition = index(t.Recognition)
	t.translation = index(t.Translation)
	return &t, nil
}

func index(langs []Language) map[string]string {
	m := make(map[string]string, len(langs))
	for _, l := range langs {
		m[strings.ToLower(l.Code)] = l.Name
	}
	return m
}

// ValidRecognition accepts a Tesseract code or a "+"-joined combination
// such as "eng+fra".
func (t *Tables) ValidRecognition(code string) bool {
	if code == "" {
		return false
	}
	for _, part := range strings.Split(code, "+") {
		if _, ok := t.recognition[strings.ToLower(part)]; !ok {
			return false
		}
	}
	return true
}

// ValidTranslation accepts a translation target code, case-insensitively.
func (t *Tables) ValidTranslation(code string) bool {
	_, ok := t.translation[strings.ToLower(code)]
	return ok
}

// RecognitionName returns the display name for a recognition code.
func (t *Tables) RecognitionName(code string) string {
	return t.recognition[strings.ToLower(code)]
}

// TranslationName returns the display name for a translation code.
func (t *Tables) TranslationName(code string) string {
	return t.translation[strings.ToLower(code)]
}
