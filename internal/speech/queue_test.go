package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type mockSynthesizer struct {
	dir string
	mu  sync.Mutex
	n   int
	err map[string]error
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text, lang string) (Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.err[text]; err != nil {
		return Clip{}, err
	}
	m.n++
	path := filepath.Join(m.dir, text+".wav")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return Clip{}, err
	}
	return Clip{Path: path}, nil
}

// mockPlayer blocks each Play until release is called or ctx ends.
type mockPlayer struct {
	mu      sync.Mutex
	played  []string
	started chan string
	release chan struct{}
}

func newMockPlayer() *mockPlayer {
	return &mockPlayer{started: make(chan string, 16), release: make(chan struct{})}
}

func (m *mockPlayer) Play(ctx context.Context, path string) error {
	text := filepath.Base(path)
	m.started <- text
	select {
	case <-m.release:
		m.mu.Lock()
		m.played = append(m.played, text)
		m.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockPlayer) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

func waitStarted(t *testing.T, p *mockPlayer, want string) {
	t.Helper()
	select {
	case got := <-p.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to start", want)
	}
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for q.State() != Idle {
		if time.Now().After(deadline) {
			t.Fatal("queue did not go idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestQueuePlaysOneAtATime(t *testing.T) {
	player := newMockPlayer()
	q := NewQueue(&mockSynthesizer{dir: t.TempDir()}, player, time.Second)
	defer q.Close()

	for _, s := range []string{"a", "b", "c"} {
		if !q.Enqueue(s, "fr") {
			t.Fatalf("Enqueue(%q) = false", s)
		}
	}
	waitStarted(t, player, "a.wav")

	if q.State() != Playing {
		t.Errorf("State() = %v, want playing", q.State())
	}
	if n := q.Pending(); n != 2 {
		t.Errorf("Pending() = %d, want 2", n)
	}
	if cur, ok := q.Current(); !ok || cur.Text != "a" {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}

	for _, next := range []string{"b.wav", "c.wav"} {
		player.release <- struct{}{}
		waitStarted(t, player, next)
	}
	player.release <- struct{}{}
	waitIdle(t, q)

	want := []string{"a.wav", "b.wav", "c.wav"}
	got := player.Played()
	if len(got) != len(want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("played[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQueueStopClearsAndDisables(t *testing.T) {
	player := newMockPlayer()
	q := NewQueue(&mockSynthesizer{dir: t.TempDir()}, player, time.Second)
	defer q.Close()

	q.Enqueue("a", "fr")
	q.Enqueue("b", "fr")
	q.Enqueue("c", "fr")
	waitStarted(t, player, "a.wav")

	q.Stop()

	if q.State() != Idle {
		t.Errorf("State() after Stop = %v, want idle", q.State())
	}
	if n := q.Pending(); n != 0 {
		t.Errorf("Pending() after Stop = %d, want 0", n)
	}
	if q.Enqueue("d", "fr") {
		t.Error("Enqueue() while disabled = true, want false")
	}

	// The cancelled playback must not advance to b.
	select {
	case got := <-player.started:
		t.Fatalf("playback %q started after Stop", got)
	case <-time.After(50 * time.Millisecond):
	}
	if got := player.Played(); len(got) != 0 {
		t.Errorf("played %v after Stop, want none", got)
	}
}

func TestQueueEnableAfterStop(t *testing.T) {
	player := newMockPlayer()
	q := NewQueue(&mockSynthesizer{dir: t.TempDir()}, player, time.Second)
	defer q.Close()

	q.Enqueue("a", "fr")
	waitStarted(t, player, "a.wav")
	q.Stop()
	q.Enable()

	if !q.Enqueue("b", "fr") {
		t.Fatal("Enqueue() after Enable = false")
	}
	waitStarted(t, player, "b.wav")
	player.release <- struct{}{}
	waitIdle(t, q)
}

func TestQueueSkipsFailedSynthesis(t *testing.T) {
	player := newMockPlayer()
	synth := &mockSynthesizer{dir: t.TempDir(), err: map[string]error{"bad": errors.New("quota")}}
	q := NewQueue(synth, player, time.Second)
	defer q.Close()

	q.Enqueue("first", "fr")
	waitStarted(t, player, "first.wav")
	q.Enqueue("bad", "fr")
	q.Enqueue("next", "fr")

	player.release <- struct{}{}
	waitStarted(t, player, "next.wav")
	player.release <- struct{}{}
	waitIdle(t, q)
}

func TestQueueRemovesClip(t *testing.T) {
	dir := t.TempDir()
	player := newMockPlayer()
	q := NewQueue(&mockSynthesizer{dir: dir}, player, time.Second)
	defer q.Close()

	q.Enqueue("a", "fr")
	waitStarted(t, player, "a.wav")
	player.release <- struct{}{}
	waitIdle(t, q)
	q.wg.Wait()

	if _, err := os.Stat(filepath.Join(dir, "a.wav")); !os.IsNotExist(err) {
		t.Errorf("clip still on disk: %v", err)
	}
}

func TestQueueIgnoresBlank(t *testing.T) {
	q := NewQueue(&mockSynthesizer{dir: t.TempDir()}, newMockPlayer(), time.Second)
	defer q.Close()
	if q.Enqueue("  \n", "fr") {
		t.Error("Enqueue(blank) = true")
	}
	if q.State() != Idle {
		t.Errorf("State() = %v, want idle", q.State())
	}
}

func TestClipRemoveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := Clip{Path: path}
	if err := c.Remove(); err != nil {
		t.Errorf("first Remove() = %v", err)
	}
	if err := c.Remove(); err != nil {
		t.Errorf("second Remove() = %v", err)
	}
	if err := (Clip{}).Remove(); err != nil {
		t.Errorf("zero Remove() = %v", err)
	}
}

func TestVoiceTag(t *testing.T) {
	tests := []struct{ in, want string }{
		{"fr", "fr-FR"},
		{"en", "en-US"},
		{"ja", "ja-JP"},
		{"zh-cn", "zh-CN"},
		{"pt", "pt-BR"},
	}
	for _, tt := range tests {
		if got := VoiceTag(tt.in); got != tt.want {
			t.Errorf("VoiceTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
