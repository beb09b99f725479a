package speech

import (
	"os"

	"github.com/go-audio/wav"

	apperrors "github.com/lingolens/platform/internal/errors"
)

// PCM is interleaved signed 16-bit audio.
type PCM struct {
	Samples    []int16
	Channels   int
	SampleRate int
}

// Duration returns the playback length in seconds.
func (p PCM) Duration() float64 {
	if p.Channels == 0 || p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)/p.Channels) / float64(p.SampleRate)
}

// LoadWAV decodes a PCM WAV file into 16-bit samples.
func LoadWAV(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, apperrors.Wrap(err, apperrors.PlaybackFailed, "open clip")
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return PCM{}, apperrors.New(apperrors.PlaybackFailed, "not a PCM WAV file").WithMetadata("path", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return PCM{}, apperrors.Wrap(err, apperrors.PlaybackFailed, "decode clip")
	}

	shift := int(d.BitDepth) - 16
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			// 8-bit WAV is unsigned.
			v = (v - 128) << -shift
		}
		samples[i] = int16(v)
	}
	return PCM{
		Samples:    samples,
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}
