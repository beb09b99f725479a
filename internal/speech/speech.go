// Package speech speaks accepted translations one at a time.
package speech

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"golang.org/x/text/language"
)

// Clip is a transient synthesized audio file.
type Clip struct {
	Path string
}

// Remove deletes the file. A missing file is not an error.
func (c Clip) Remove() error {
	if c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Synthesizer renders text to a WAV clip the caller owns.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (Clip, error)
}

// Player plays a WAV file and blocks until it ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// VoiceTag turns a translation code into the BCP 47 tag a voice is selected
// by, filling in the most likely region: "fr" becomes "fr-FR", "zh-cn"
// becomes "zh-CN".
func VoiceTag(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.No || region.String() == "ZZ" {
		return base.String()
	}
	return base.String() + "-" + region.String()
}
