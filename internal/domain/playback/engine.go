package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"versecast/internal/domain/audio"
)

// State is the engine's coarse lifecycle position.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFinished State = "finished"
)

var (
	// ErrInvalidAudioData marks bytes the decoder rejected. Fatal to the
	// Load call only; the engine stays Idle.
	ErrInvalidAudioData = errors.New("invalid audio data")
	// ErrNoAudioLoaded is returned for Play/Seek before a successful Load.
	ErrNoAudioLoaded = errors.New("no audio loaded")
	// ErrDeviceUnavailable means the audio output could not be activated.
	// Callers retry; the engine never swallows it.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

const (
	minRate = 0.5
	maxRate = 2.0
)

// Snapshot is the full observable playback state. Subscribers receive
// whole snapshots; there is no per-field change granularity.
type Snapshot struct {
	State      State   `json:"state"`
	ChapterKey string  `json:"chapter_key,omitempty"`
	Position   float64 `json:"position"`
	Duration   float64 `json:"duration"`
	Playing    bool    `json:"playing"`
	Loading    bool    `json:"loading"`
	Rate       float64 `json:"rate"`
	Ended      bool    `json:"ended,omitempty"`
}

// Output is where decoded audio actually goes. The engine's clock runs
// independently of the sink so headless deployments use NullOutput.
type Output interface {
	Start(pcm *audio.PCM) error
	SetPaused(paused bool)
	Seek(seconds float64)
	Stop()
}

// NullOutput discards audio. Useful for tests and server-side timing runs.
type NullOutput struct{}

func (NullOutput) Start(*audio.PCM) error { return nil }
func (NullOutput) SetPaused(bool)         {}
func (NullOutput) Seek(float64)           {}
func (NullOutput) Stop()                  {}

// Options configures an Engine.
type Options struct {
	TickInterval time.Duration
	Output       Output
	Logger       *slog.Logger
}

// Engine owns the single active audio stream. Position advances on a
// periodic tick rather than frame callbacks, which bounds notification
// frequency at the cost of up to one tick of boundary jitter.
type Engine struct {
	mu sync.Mutex

	state      State
	chapterKey string
	pcm        *audio.PCM
	position   float64
	duration   float64
	rate       float64
	playing    bool
	outStarted bool

	out    Output
	tick   time.Duration
	logger *slog.Logger

	events chan Snapshot
	done   chan struct{}
	once   sync.Once
}

// NewEngine builds and starts an engine. Close releases its ticker.
func NewEngine(opts Options) *Engine {
	tick := opts.TickInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	out := opts.Output
	if out == nil {
		out = NullOutput{}
	}

	e := &Engine{
		state:  StateIdle,
		rate:   1.0,
		out:    out,
		tick:   tick,
		logger: opts.Logger,
		events: make(chan Snapshot, 64),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

// Events exposes the state-changed notification channel. Slow
// subscribers lose intermediate snapshots, never the channel.
func (e *Engine) Events() <-chan Snapshot {
	return e.events
}

// Load decodes and installs a new stream. Decode failure leaves the
// engine Idle with nothing loaded.
func (e *Engine) Load(chapterKey string, data []byte) error {
	e.mu.Lock()
	if e.state == StateLoading {
		e.mu.Unlock()
		return fmt.Errorf("load already in progress")
	}
	e.out.Stop()
	e.state = StateLoading
	e.playing = false
	e.outStarted = false
	e.mu.Unlock()
	e.notify(false)

	pcm, err := audio.Decode(data)
	if err != nil {
		e.mu.Lock()
		e.state = StateIdle
		e.pcm = nil
		e.chapterKey = ""
		e.position = 0
		e.duration = 0
		e.mu.Unlock()
		e.notify(false)
		return fmt.Errorf("%w: %v", ErrInvalidAudioData, err)
	}

	e.mu.Lock()
	e.state = StateReady
	e.pcm = pcm
	e.chapterKey = chapterKey
	e.position = 0
	e.duration = pcm.Duration()
	e.mu.Unlock()
	e.notify(false)

	if e.logger != nil {
		e.logger.Info("audio loaded", "chapter", chapterKey, "duration", pcm.Duration())
	}
	return nil
}

// Play starts or resumes playback.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.state != StateReady && e.state != StateFinished {
		e.mu.Unlock()
		return ErrNoAudioLoaded
	}
	if e.state == StateFinished {
		// Replaying a finished chapter restarts from the top.
		e.position = 0
		e.state = StateReady
	}
	if !e.outStarted {
		if err := e.out.Start(e.pcm); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		e.outStarted = true
	}
	e.playing = true
	e.out.SetPaused(false)
	e.mu.Unlock()

	e.notify(false)
	return nil
}

// Pause suspends playback; a no-op unless currently playing.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != StateReady || !e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = false
	e.out.SetPaused(true)
	e.mu.Unlock()

	e.notify(false)
}

// Seek clamps to [0, duration] and repositions immediately, playing or not.
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	if e.pcm == nil {
		e.mu.Unlock()
		return ErrNoAudioLoaded
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > e.duration {
		seconds = e.duration
	}
	e.position = seconds
	if e.state == StateFinished && seconds < e.duration {
		e.state = StateReady
	}
	e.out.Seek(seconds)
	e.mu.Unlock()

	e.notify(false)
	return nil
}

// SetRate clamps the playback multiplier into [0.5, 2.0].
func (e *Engine) SetRate(rate float64) {
	if rate < minRate {
		rate = minRate
	}
	if rate > maxRate {
		rate = maxRate
	}
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()

	e.notify(false)
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(false)
}

// CurrentTime is a convenience accessor for the tracker loop.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Close stops the ticker and the output sink.
func (e *Engine) Close() {
	e.once.Do(func() {
		close(e.done)
		e.out.Stop()
	})
}

func (e *Engine) run() {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.advance()
		}
	}
}

func (e *Engine) advance() {
	e.mu.Lock()
	if e.state != StateReady || !e.playing {
		e.mu.Unlock()
		return
	}

	e.position += e.tick.Seconds() * e.rate
	ended := false
	key := e.chapterKey
	if e.position >= e.duration {
		e.position = e.duration
		e.playing = false
		e.state = StateFinished
		e.outStarted = false
		e.out.Stop()
		ended = true
	}
	e.mu.Unlock()

	e.notify(ended)
	if ended && e.logger != nil {
		e.logger.Info("playback finished", "chapter", key)
	}
}

func (e *Engine) snapshotLocked(ended bool) Snapshot {
	return Snapshot{
		State:      e.state,
		ChapterKey: e.chapterKey,
		Position:   e.position,
		Duration:   e.duration,
		Playing:    e.playing,
		Loading:    e.state == StateLoading,
		Rate:       e.rate,
		Ended:      ended,
	}
}

func (e *Engine) notify(ended bool) {
	e.mu.Lock()
	snap := e.snapshotLocked(ended)
	e.mu.Unlock()

	select {
	case e.events <- snap:
	default:
		// Drop rather than block the tick loop.
	}
}
