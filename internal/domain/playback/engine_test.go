package playback

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"versecast/internal/domain/audio"
)

func wavClip(t *testing.T, seconds float64) []byte {
	t.Helper()
	pcm := &audio.PCM{
		Data:       audio.Silence(seconds, 8000, 1),
		SampleRate: 8000,
		Channels:   1,
	}
	return audio.EncodeWAV(pcm)
}

func newTestEngine(t *testing.T, out Output) *Engine {
	t.Helper()
	e := NewEngine(Options{TickInterval: 5 * time.Millisecond, Output: out})
	t.Cleanup(e.Close)
	return e
}

func TestLoadRejectsCorruptAudio(t *testing.T) {
	e := newTestEngine(t, nil)

	err := e.Load("psalm_23_web_aria", []byte("definitely not audio"))
	if !errors.Is(err, ErrInvalidAudioData) {
		t.Fatalf("expected ErrInvalidAudioData, got %v", err)
	}
	if snap := e.Snapshot(); snap.State != StateIdle {
		t.Fatalf("engine should stay idle after bad load, got %s", snap.State)
	}
	if err := e.Play(); !errors.Is(err, ErrNoAudioLoaded) {
		t.Fatalf("play after failed load: %v", err)
	}

	// A later valid load must succeed as if nothing happened.
	if err := e.Load("psalm_23_web_aria", wavClip(t, 1.0)); err != nil {
		t.Fatalf("valid load after corrupt one: %v", err)
	}
	snap := e.Snapshot()
	if snap.State != StateReady || snap.Duration != 1.0 {
		t.Fatalf("unexpected snapshot after recovery: %+v", snap)
	}
}

func TestPlayPauseAndTicking(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.Load("john_3_web_andrew", wavClip(t, 10)); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	pos := e.CurrentTime()
	if pos <= 0 {
		t.Fatalf("position should advance while playing, got %v", pos)
	}

	e.Pause()
	paused := e.CurrentTime()
	time.Sleep(30 * time.Millisecond)
	if got := e.CurrentTime(); got != paused {
		t.Fatalf("position moved while paused: %v -> %v", paused, got)
	}

	// Pause when not playing is a no-op, not an error.
	e.Pause()
	if snap := e.Snapshot(); snap.Playing {
		t.Fatalf("expected paused snapshot, got %+v", snap)
	}
}

func TestSeekClamps(t *testing.T) {
	e := newTestEngine(t, nil)

	if err := e.Seek(1); !errors.Is(err, ErrNoAudioLoaded) {
		t.Fatalf("seek before load: %v", err)
	}

	if err := e.Load("gen_1_web_brian", wavClip(t, 4)); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := e.Seek(-3); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if got := e.CurrentTime(); got != 0 {
		t.Fatalf("negative seek should clamp to 0, got %v", got)
	}

	if err := e.Seek(99); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if got := e.CurrentTime(); got != 4 {
		t.Fatalf("overlong seek should clamp to duration, got %v", got)
	}

	if err := e.Seek(2.5); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if got := e.CurrentTime(); got != 2.5 {
		t.Fatalf("seek landed at %v, want 2.5", got)
	}
}

func TestSetRateClamps(t *testing.T) {
	e := newTestEngine(t, nil)

	cases := []struct {
		in, want float64
	}{
		{0.1, 0.5},
		{0.5, 0.5},
		{1.25, 1.25},
		{2.0, 2.0},
		{5.0, 2.0},
	}
	for _, tc := range cases {
		e.SetRate(tc.in)
		if got := e.Snapshot().Rate; got != tc.want {
			t.Fatalf("SetRate(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNaturalEndReachesFinished(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.Load("jude_1_web_ryan", wavClip(t, 0.05)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-e.Events():
			if snap.Ended {
				if snap.State != StateFinished {
					t.Fatalf("ended snapshot in state %s", snap.State)
				}
				if snap.Position != snap.Duration {
					t.Fatalf("position %v should rest at duration %v", snap.Position, snap.Duration)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no ended notification, snapshot %+v", e.Snapshot())
		}
	}
}

func TestPlayAfterFinishedRestarts(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.Load("jude_1_web_ryan", wavClip(t, 0.02)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.Snapshot().State != StateFinished {
		if time.Now().After(deadline) {
			t.Fatalf("never finished: %+v", e.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("replay: %v", err)
	}
	snap := e.Snapshot()
	if snap.State != StateReady && snap.State != StateFinished {
		t.Fatalf("unexpected state after replay: %+v", snap)
	}
	if !snap.Playing && snap.State == StateReady {
		t.Fatalf("replay should resume playing: %+v", snap)
	}
}

type failingOutput struct{}

func (failingOutput) Start(*audio.PCM) error { return errors.New("no device") }
func (failingOutput) SetPaused(bool)         {}
func (failingOutput) Seek(float64)           {}
func (failingOutput) Stop()                  {}

func TestPlaySurfacesDeviceUnavailable(t *testing.T) {
	e := newTestEngine(t, failingOutput{})
	if err := e.Load("psalm_1_web_aria", wavClip(t, 1)); err != nil {
		t.Fatalf("load: %v", err)
	}

	err := e.Play()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if snap := e.Snapshot(); snap.Playing {
		t.Fatalf("engine must not report playing after device failure")
	}
	// The stream stays loaded; a retry against a recovered device is allowed.
	if snap := e.Snapshot(); snap.State != StateReady {
		t.Fatalf("expected ready state, got %s", snap.State)
	}
}

type recordingOutput struct {
	mu     sync.Mutex
	paused []bool
	seeks  []float64
	stops  int
}

func (r *recordingOutput) Start(*audio.PCM) error { return nil }

func (r *recordingOutput) SetPaused(p bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = append(r.paused, p)
}

func (r *recordingOutput) Seek(s float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeks = append(r.seeks, s)
}

func (r *recordingOutput) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func TestEngineDrivesOutputSink(t *testing.T) {
	out := &recordingOutput{}
	e := newTestEngine(t, out)

	if err := e.Load("rev_22_web_aria", wavClip(t, 5)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	e.Pause()
	if err := e.Seek(1.5); err != nil {
		t.Fatalf("seek: %v", err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.paused) < 2 || out.paused[0] != false || out.paused[1] != true {
		t.Fatalf("unexpected pause sequence: %v", out.paused)
	}
	if len(out.seeks) != 1 || out.seeks[0] != 1.5 {
		t.Fatalf("unexpected seeks: %v", out.seeks)
	}
	if out.stops == 0 {
		t.Fatalf("load should stop any prior stream")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFinishLogNamesFinishedChapter(t *testing.T) {
	var logs lockedBuffer
	e := NewEngine(Options{
		TickInterval: 5 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(&logs, nil)),
	})
	t.Cleanup(e.Close)

	if err := e.Load("jude_1_web_ryan", wavClip(t, 0.02)); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Swap in the next chapter the moment the first one ends, the way a
	// coordinator chaining chapters would.
	go func() {
		for snap := range e.Events() {
			if snap.Ended {
				_ = e.Load("rev_22_web_aria", wavClip(t, 1))
				return
			}
		}
	}()

	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "playback finished") {
		if time.Now().After(deadline) {
			t.Fatalf("finish was never logged; snapshot %+v", e.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(logs.String(), "chapter=jude_1_web_ryan") {
		t.Fatalf("finish log should name the chapter that ended: %s", logs.String())
	}
}
