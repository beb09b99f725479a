// Package device plays synthesized clips on a PortAudio output device.
package device

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/speech"
)

const defaultFramesPerBuffer = 1024 // ~43ms at 24kHz

// Player writes WAV clips to an output stream. Play calls are serialized.
type Player struct {
	deviceName   string
	excludedDevs []string
	framesPerBuf int

	mu sync.Mutex
}

// NewPlayer initializes PortAudio. deviceName picks an output device by
// case-insensitive substring; empty uses the system default.
func NewPlayer(deviceName string, excludedDevices []string) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.PlaybackFailed, "initialize portaudio")
	}
	return &Player{
		deviceName:   deviceName,
		excludedDevs: excludedDevices,
		framesPerBuf: defaultFramesPerBuffer,
	}, nil
}

// Play decodes the clip at path and blocks until it has been written out or
// ctx is cancelled.
func (p *Player) Play(ctx context.Context, path string) error {
	pcm, err := speech.LoadWAV(path)
	if err != nil {
		return err
	}
	if len(pcm.Samples) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int16, p.framesPerBuf*pcm.Channels)
	stream, err := p.open(pcm, &out)
	if err != nil {
		return apperrors.Wrap(err, apperrors.PlaybackFailed, "open output stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.PlaybackFailed, "start output stream")
	}
	defer func() { _ = stream.Stop() }()

	slog.Debug("playing voice clip", "seconds", pcm.Duration(), "rate", pcm.SampleRate)
	for off := 0; off < len(pcm.Samples); off += len(out) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := copy(out, pcm.Samples[off:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			return apperrors.Wrap(err, apperrors.PlaybackFailed, "write output stream")
		}
	}
	return nil
}

func (p *Player) open(pcm speech.PCM, out *[]int16) (*portaudio.Stream, error) {
	if p.deviceName == "" {
		return portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), p.framesPerBuf, out)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev := selectOutput(devices, p.deviceName, p.excludedDevs)
	if dev == nil {
		slog.Warn("output device not found, using default", "device", p.deviceName)
		return portaudio.OpenDefaultStream(0, pcm.Channels, float64(pcm.SampleRate), p.framesPerBuf, out)
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: pcm.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(pcm.SampleRate),
		FramesPerBuffer: p.framesPerBuf,
	}
	return portaudio.OpenStream(params, out)
}

// Close releases PortAudio.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return portaudio.Terminate()
}

// selectOutput returns the output-capable device whose name contains want,
// skipping excluded names. Built-in devices win ties.
func selectOutput(devices []*portaudio.DeviceInfo, want string, excluded []string) *portaudio.DeviceInfo {
	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxOutputChannels < 1 || isExcluded(dev.Name, excluded) {
			continue
		}
		if !containsIgnoreCase(dev.Name, want) {
			continue
		}
		if best == nil || (containsIgnoreCase(dev.Name, "built-in") && !containsIgnoreCase(best.Name, "built-in")) {
			best = dev
		}
	}
	return best
}

func isExcluded(name string, excluded []string) bool {
	for _, ex := range excluded {
		if ex != "" && containsIgnoreCase(name, ex) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
