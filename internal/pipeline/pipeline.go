// Package pipeline runs the capture, recognize, translate and present loop
// for one session at a time.
package pipeline

import (
	"context"
	"image"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lingolens/platform/internal/delta"
	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/history"
	"github.com/lingolens/platform/internal/ocr"
	"github.com/lingolens/platform/internal/resilience"
	"github.com/lingolens/platform/internal/screen"
	"github.com/lingolens/platform/internal/syncx"
	"github.com/lingolens/platform/internal/text"
	"github.com/lingolens/platform/internal/trace"
	"github.com/lingolens/platform/internal/translate"
)

// Pipeline defaults.
const (
	DefaultInterval            = 3 * time.Second
	DefaultSettleDelay         = 300 * time.Millisecond
	DefaultSimilarityThreshold = 0.8
	DefaultUpscaleFactor       = 2.0
	DefaultBinarizeThreshold   = 128
)

// Presenter shows translated text next to the captured region.
type Presenter interface {
	Present(ctx context.Context, text string, anchor image.Rectangle)
	Hide(ctx context.Context)
	SetVisible(ctx context.Context, visible bool)
	Visible() bool
}

// Speaker speaks accepted translations.
type Speaker interface {
	Enqueue(text, lang string) bool
	Enable()
	Stop()
}

// Journal appends accepted translations to a session log.
type Journal interface {
	Append(text string) error
}

// Publisher records accepted translations and fans out events.
type Publisher interface {
	Add(e history.Entry)
	Emit(e history.Event)
}

// Deps are the collaborators of a Manager. Locator, Speaker, Languages and
// OpenJournal are optional.
type Deps struct {
	Capturer    screen.Capturer
	Locator     screen.Locator
	Detector    delta.Detector
	Recognizer  ocr.Recognizer
	Translator  translate.Translator
	Presenter   Presenter
	Speaker     Speaker
	Publisher   Publisher
	Languages   LanguageValidator
	OpenJournal func(path string) Journal
	Breakers    []*resilience.Breaker
}

// Options tune the loop.
type Options struct {
	Interval            time.Duration
	SettleDelay         time.Duration
	QueueCapacity       int
	SimilarityThreshold float64
	UpscaleFactor       float64
	BinarizeThreshold   uint8
	DebugFramePath      string
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.UpscaleFactor < 1 {
		o.UpscaleFactor = DefaultUpscaleFactor
	}
	if o.BinarizeThreshold == 0 {
		o.BinarizeThreshold = DefaultBinarizeThreshold
	}
	return o
}

// translationState is the last text shown for the running session.
type translationState struct {
	sessionID     string
	target        string
	lastDisplayed *string
}

// Frame is the most recent frame accepted as changed.
type Frame struct {
	Image      *image.Gray
	SessionID  string
	CapturedAt time.Time
}

// Status is a point-in-time view for the status endpoint.
type Status struct {
	State         string                `json:"state"`
	Session       *Session              `json:"session,omitempty"`
	QueueDepth    int                   `json:"queue_depth"`
	QueueDrops    int                   `json:"queue_drops"`
	Captures      uint64                `json:"captures"`
	Changes       uint64                `json:"changes"`
	Recognitions  uint64                `json:"recognitions"`
	Suppressed    uint64                `json:"suppressed"`
	LastDisplayed string                `json:"last_displayed,omitempty"`
	Breakers      []resilience.Snapshot `json:"breakers,omitempty"`
}

// Manager owns the capture and worker goroutines of the running session.
type Manager struct {
	deps Deps
	opts Options

	state stateMachine
	queue *workQueue

	// overlayMu is held from the visibility check until the frame is
	// grabbed; Present takes it too.
	overlayMu sync.Mutex

	mu      sync.Mutex // guards the fields below
	session *Session
	anchor  image.Rectangle
	journal Journal
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	translation *syncx.Guard[translationState]
	frame       *syncx.Guard[Frame]

	captures     atomic.Uint64
	changes      atomic.Uint64
	recognitions atomic.Uint64
	suppressed   atomic.Uint64
}

// New creates an idle manager.
func New(deps Deps, opts Options) *Manager {
	if deps.OpenJournal == nil {
		deps.OpenJournal = func(path string) Journal { return history.NewFileLog(path) }
	}
	opts = opts.withDefaults()
	return &Manager{
		deps:        deps,
		opts:        opts,
		queue:       newWorkQueue(opts.QueueCapacity),
		translation: syncx.NewGuard(translationState{}),
		frame:       syncx.NewGuard(Frame{}),
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State { return m.state.Load() }

// Session returns the running session.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Start validates s and launches the capture and worker goroutines. The
// returned session carries the assigned ID.
func (m *Manager) Start(ctx context.Context, s Session) (Session, error) {
	if err := s.validate(m.deps.Languages); err != nil {
		return Session{}, err
	}
	s = s.withDefaults()

	anchor := s.Region.Rect()
	if m.deps.Locator != nil {
		abs, err := m.deps.Locator.Absolute(s.Monitor, s.Region)
		if err != nil {
			return Session{}, err
		}
		anchor = abs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.transition(Idle, Running) {
		return Session{}, apperrors.ErrAlreadyRunning
	}

	m.session = &s
	m.anchor = anchor
	m.journal = nil
	if s.LogPath != "" {
		m.journal = m.deps.OpenJournal(s.LogPath)
	}
	m.queue.Clear()
	m.translation.Store(translationState{sessionID: s.ID, target: s.TargetLanguage})
	if m.deps.Speaker != nil {
		m.deps.Speaker.Enable()
	}

	runCtx := trace.WithSession(context.WithoutCancel(ctx), s.ID)
	runCtx, cancel := context.WithCancel(runCtx)
	m.cancel = cancel
	m.stopCh = make(chan struct{})

	m.wg.Add(2)
	go m.captureLoop(runCtx, s, m.stopCh)
	go m.worker(runCtx, s, m.stopCh)

	trace.Logger(runCtx).Info("capture started",
		"monitor", s.Monitor, "region", s.Region, "source", s.SourceLanguage, "target", s.TargetLanguage)
	m.deps.Publisher.Emit(history.Event{Type: history.EventStatus, SessionID: s.ID, State: Running.String()})
	return s, nil
}

// Stop ends the running session, waits for its goroutines, clears the
// translation state, hides the overlay and stops the voice queue.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.transition(Running, Stopping) {
		m.mu.Unlock()
		return apperrors.ErrNotRunning
	}
	close(m.stopCh)
	m.cancel()
	sessionID := m.session.ID
	m.mu.Unlock()

	m.wg.Wait()

	m.queue.Clear()
	m.translation.Store(translationState{})
	m.deps.Presenter.Hide(ctx)
	if m.deps.Speaker != nil {
		m.deps.Speaker.Stop()
	}

	m.mu.Lock()
	m.session = nil
	m.journal = nil
	m.cancel = nil
	m.state.transition(Stopping, Idle)
	m.mu.Unlock()

	trace.Logger(trace.WithSession(ctx, sessionID)).Info("capture stopped")
	m.deps.Publisher.Emit(history.Event{Type: history.EventStatus, SessionID: sessionID, State: Idle.String()})
	return nil
}

// LatestFrame returns the last frame accepted as changed.
func (m *Manager) LatestFrame() (Frame, bool) {
	f := m.frame.Load()
	return f, f.Image != nil
}

// Status reports the pipeline state and counters.
func (m *Manager) Status() Status {
	st := Status{
		State:        m.State().String(),
		QueueDepth:   m.queue.Len(),
		QueueDrops:   m.queue.Drops(),
		Captures:     m.captures.Load(),
		Changes:      m.changes.Load(),
		Recognitions: m.recognitions.Load(),
		Suppressed:   m.suppressed.Load(),
	}
	if s, ok := m.Session(); ok {
		st.Session = &s
	}
	m.translation.View(func(ts translationState) {
		if ts.lastDisplayed != nil {
			st.LastDisplayed = *ts.lastDisplayed
		}
	})
	for _, b := range m.deps.Breakers {
		st.Breakers = append(st.Breakers, b.Snapshot())
	}
	return st
}

func (m *Manager) captureLoop(ctx context.Context, s Session, stopCh <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	baseline := m.captureBaseline(ctx, s)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			baseline = m.captureOnce(ctx, s, baseline)
		}
	}
}

// captureBaseline takes the reference frame changes are measured against.
// What is on screen when capture starts is not recognized until it changes.
func (m *Manager) captureBaseline(ctx context.Context, s Session) *image.Gray {
	img, err := m.captureClean(ctx, s)
	if err != nil {
		if ctx.Err() == nil {
			trace.Logger(ctx).Warn("baseline capture failed", "error", err)
		}
		return nil
	}
	m.captures.Add(1)
	gray := delta.ToGray(img)
	if gray.Bounds().Empty() {
		return nil
	}
	return gray
}

// captureOnce grabs the region, compares it to baseline and queues it when
// changed. It returns the baseline for the next cycle.
func (m *Manager) captureOnce(ctx context.Context, s Session, baseline *image.Gray) *image.Gray {
	ctx, span := trace.StartSpan(ctx, "capture")
	defer span.End()
	log := trace.Logger(ctx)

	img, err := m.captureClean(ctx, s)
	if err != nil {
		if ctx.Err() == nil {
			span.SetAttr("error", err.Error())
			log.Warn("capture failed", "error", err)
			m.emitError(s.ID, err)
		}
		return baseline
	}
	m.captures.Add(1)

	gray := delta.ToGray(img)
	if gray.Bounds().Empty() {
		log.Debug("captured region is empty")
		return baseline
	}

	if baseline == nil {
		return gray
	}
	changed, err := m.deps.Detector.Changed(baseline, gray)
	if err != nil {
		log.Error("frame comparison failed, resetting baseline", "error", err)
		return gray
	}
	if !changed {
		span.SetAttr("changed", false)
		return baseline
	}
	span.SetAttr("changed", true)
	m.changes.Add(1)

	now := time.Now()
	m.frame.Store(Frame{Image: gray, SessionID: s.ID, CapturedAt: now})
	m.writeDebugFrame(ctx, gray)

	if m.queue.Push(WorkItem{Frame: gray, SourceLanguage: s.SourceLanguage, SessionID: s.ID, CapturedAt: now}) {
		log.Warn("recognition queue full, dropped oldest frame", "capacity", m.opts.QueueCapacity)
	}
	return gray
}

// captureClean captures with the overlay hidden so it never recognizes its
// own output.
func (m *Manager) captureClean(ctx context.Context, s Session) (*image.RGBA, error) {
	m.overlayMu.Lock()
	p := m.deps.Presenter
	if !p.Visible() {
		defer m.overlayMu.Unlock()
		return m.deps.Capturer.Capture(ctx, s.Monitor, s.Region)
	}

	p.SetVisible(ctx, false)
	if !sleep(ctx, m.opts.SettleDelay) {
		p.SetVisible(ctx, true)
		m.overlayMu.Unlock()
		return nil, ctx.Err()
	}
	img, err := m.deps.Capturer.Capture(ctx, s.Monitor, s.Region)
	p.SetVisible(ctx, true)
	m.overlayMu.Unlock()

	sleep(ctx, m.opts.SettleDelay)
	return img, err
}

func (m *Manager) writeDebugFrame(ctx context.Context, img image.Image) {
	if m.opts.DebugFramePath == "" {
		return
	}
	data, err := ocr.EncodePNG(img)
	if err == nil {
		err = os.WriteFile(m.opts.DebugFramePath, data, 0o644)
	}
	if err != nil {
		trace.Logger(ctx).Warn("failed to write debug frame", "path", m.opts.DebugFramePath, "error", err)
	}
}

func (m *Manager) worker(ctx context.Context, s Session, stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		item, ok := m.queue.Pop(ctx, stopCh)
		if !ok {
			return
		}
		m.process(ctx, s, item)
	}
}

// process recognizes one frame. Recognition failures count as empty text.
func (m *Manager) process(ctx context.Context, s Session, item WorkItem) {
	ctx, span := trace.StartSpan(ctx, "recognize")
	defer span.End()
	span.SetAttr("lang", item.SourceLanguage)
	span.SetAttr("queued_for", time.Since(item.CapturedAt).String())

	prepared := ocr.Preprocess(item.Frame, m.opts.UpscaleFactor, m.opts.BinarizeThreshold)
	raw, err := m.deps.Recognizer.Recognize(ctx, prepared, item.SourceLanguage)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Warn("recognition failed", "error", err)
		m.emitError(s.ID, err)
		raw = ""
	}
	m.recognitions.Add(1)
	m.handleText(ctx, s, item, raw)
}

// handleText normalizes, translates and, unless it repeats what is already
// shown, delivers the result.
func (m *Manager) handleText(ctx context.Context, s Session, item WorkItem, raw string) {
	log := trace.Logger(ctx)
	if !m.isCurrent(item.SessionID) {
		log.Debug("discarding result from finished session", "result_session", item.SessionID)
		return
	}

	cleaned := text.Normalize(raw)
	if cleaned == "" {
		m.deps.Publisher.Emit(history.Event{Type: history.EventNoText, SessionID: s.ID})
		return
	}

	translated := m.deps.Translator.Translate(ctx, cleaned, s.TargetLanguage)
	if ctx.Err() != nil {
		return
	}

	accepted := syncx.Compute(m.translation, func(ts *translationState) bool {
		if ts.sessionID != item.SessionID {
			return false
		}
		if ts.lastDisplayed != nil && text.Similarity(*ts.lastDisplayed, translated, ts.target) > m.opts.SimilarityThreshold {
			return false
		}
		ts.lastDisplayed = &translated
		return true
	})
	if !accepted {
		m.suppressed.Add(1)
		log.Debug("translation matches what is shown, skipping")
		return
	}

	m.deliver(ctx, s, cleaned, translated)
}

func (m *Manager) deliver(ctx context.Context, s Session, source, translated string) {
	log := trace.Logger(ctx)

	m.mu.Lock()
	journal, anchor := m.journal, m.anchor
	m.mu.Unlock()

	if !text.IsBlank(translated) {
		if journal != nil {
			if err := journal.Append(translated); err != nil {
				log.Error("failed to append translation log", "error", err)
				m.deps.Publisher.Emit(history.Event{Type: history.EventJournalError, SessionID: s.ID, Error: err.Error()})
			}
		}
		if s.Voice && m.deps.Speaker != nil {
			m.deps.Speaker.Enqueue(translated, s.TargetLanguage)
		}
	}

	m.overlayMu.Lock()
	m.deps.Presenter.Present(ctx, translated, anchor)
	m.overlayMu.Unlock()
	m.deps.Publisher.Add(history.Entry{
		SessionID:      s.ID,
		SourceText:     source,
		Text:           translated,
		SourceLanguage: s.SourceLanguage,
		TargetLanguage: s.TargetLanguage,
	})
	m.deps.Publisher.Emit(history.Event{Type: history.EventTranslation, SessionID: s.ID, Text: translated, SourceText: source})
	log.Info("translation shown", "chars", len(translated))
}

func (m *Manager) isCurrent(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.ID == sessionID && m.state.Load() == Running
}

func (m *Manager) emitError(sessionID string, err error) {
	m.deps.Publisher.Emit(history.Event{
		Type:      history.EventEngineError,
		SessionID: sessionID,
		State:     string(apperrors.GetCode(err)),
		Error:     err.Error(),
	})
}

// sleep waits d or until ctx ends; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
