package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the queue's playback state.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Request is one text waiting to be spoken.
type Request struct {
	Text     string
	Language string
}

// Queue speaks requests strictly in order, one at a time. Stop disables it
// and clears pending work; Enable turns it back on.
type Queue struct {
	synth        Synthesizer
	player       Player
	synthTimeout time.Duration
	base         context.Context

	// playMu keeps a cancelled playback from overlapping its successor.
	playMu sync.Mutex
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	current *Request
	pending []Request
	enabled bool
	gen     uint64
	cancel  context.CancelFunc
}

// NewQueue creates an enabled, idle queue.
func NewQueue(synth Synthesizer, player Player, synthTimeout time.Duration) *Queue {
	if synthTimeout <= 0 {
		synthTimeout = DefaultTimeout
	}
	return &Queue{
		synth:        synth,
		player:       player,
		synthTimeout: synthTimeout,
		base:         context.Background(),
		enabled:      true,
	}
}

// Enqueue adds text to speak. It starts immediately when the queue is
// idle. It returns false when the queue is disabled or text is blank.
func (q *Queue) Enqueue(text, lang string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled {
		return false
	}
	req := Request{Text: text, Language: lang}
	if q.state == Idle {
		q.startLocked(req)
	} else {
		q.pending = append(q.pending, req)
	}
	return true
}

// Enable allows Enqueue again after Stop.
func (q *Queue) Enable() {
	q.mu.Lock()
	q.enabled = true
	q.mu.Unlock()
}

// Stop disables the queue, aborts the current item and drops the rest.
// Completions that arrive afterwards do not advance the queue.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enabled = false
	q.gen++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.current = nil
	q.pending = nil
	q.state = Idle
}

// Close stops the queue and waits for playback goroutines to exit.
func (q *Queue) Close() error {
	q.Stop()
	q.wg.Wait()
	return nil
}

// State returns the playback state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Pending returns the number of requests waiting behind the current one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Current returns the request being spoken.
func (q *Queue) Current() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Request{}, false
	}
	return *q.current, true
}

// Enabled reports whether Enqueue accepts work.
func (q *Queue) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

func (q *Queue) startLocked(req Request) {
	ctx, cancel := context.WithCancel(q.base)
	q.state = Playing
	q.current = &req
	q.cancel = cancel
	gen := q.gen

	q.wg.Add(1)
	go q.run(ctx, gen, req)
}

func (q *Queue) run(ctx context.Context, gen uint64, req Request) {
	defer q.wg.Done()

	q.playMu.Lock()
	err := q.speak(ctx, req)
	q.playMu.Unlock()

	if err != nil && ctx.Err() == nil {
		slog.Warn("voice item skipped", "lang", req.Language, "error", err)
	}
	q.advance(gen)
}

func (q *Queue) speak(ctx context.Context, req Request) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	sctx, cancel := context.WithTimeout(ctx, q.synthTimeout)
	clip, err := q.synth.Synthesize(sctx, req.Text, req.Language)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := clip.Remove(); err != nil {
			slog.Warn("failed to remove voice clip", "path", clip.Path, "error", err)
		}
	}()
	return q.player.Play(ctx, clip.Path)
}

// advance starts the next item unless a Stop happened since gen was taken.
func (q *Queue) advance(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen || !q.enabled {
		return
	}
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.current = nil
	if len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.startLocked(next)
		return
	}
	q.state = Idle
}
