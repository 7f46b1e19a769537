package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"versecast/internal/domain/audio"
	"versecast/internal/domain/bible"
	"versecast/internal/domain/playback"
	"versecast/internal/domain/timing"
	"versecast/internal/domain/timing/store"
	"versecast/internal/domain/tts"
	"versecast/internal/platform/config"
	verrors "versecast/internal/platform/errors"
)

var (
	// ErrInvalidVerseIndex marks a verse number outside the loaded chapter.
	ErrInvalidVerseIndex = errors.New("verse index out of range")
	// ErrNoChapterLoaded is returned by verse operations before LoadNarration.
	ErrNoChapterLoaded = errors.New("no chapter loaded")
	// ErrStaleChapter means a generation finished after its chapter was
	// superseded; its results were dropped, nothing was cached.
	ErrStaleChapter = errors.New("chapter superseded during generation")
)

const defaultBatchSize = 5

// session is the mutable state for one loaded chapter.
type session struct {
	id         uuid.UUID
	ref        bible.ChapterRef
	voice      string
	key        string
	verses     []bible.Verse
	timeline   *timing.Timeline
	entries    []timing.Entry
	currentIdx int // index into entries, -1 when nothing is narrating
}

// Options wires a Coordinator.
type Options struct {
	Provider tts.Provider
	Cache    *audio.Cache
	Engine   *playback.Engine
	Timings  store.Store
	Bus      *Bus
	Logger   *slog.Logger
	Config   config.NarrationConfig
}

// Coordinator drives the narrate-a-chapter pipeline: fetch-or-synthesize
// audio, keep verse timings in step with playback, and publish verse
// lifecycle events.
type Coordinator struct {
	provider tts.Provider
	cache    *audio.Cache
	engine   *playback.Engine
	timings  store.Store
	bus      *Bus
	logger   *slog.Logger

	wpm         float64
	pause       float64
	batchSize   int
	singleVerse bool

	mu   sync.Mutex
	sess *session

	done chan struct{}
	once sync.Once
}

// NewCoordinator builds a coordinator and starts following engine
// notifications. Close stops the follower.
func NewCoordinator(opts Options) *Coordinator {
	cfg := opts.Config
	wpm := cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = timing.DefaultWordsPerMinute
	}
	pause := cfg.VersePause.Seconds()
	if cfg.VersePause <= 0 {
		pause = 0.7
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	c := &Coordinator{
		provider:    opts.Provider,
		cache:       opts.Cache,
		engine:      opts.Engine,
		timings:     opts.Timings,
		bus:         opts.Bus,
		logger:      opts.Logger,
		wpm:         wpm,
		pause:       pause,
		batchSize:   batch,
		singleVerse: cfg.SingleVerseMode,
		done:        make(chan struct{}),
	}
	go c.follow()
	return c
}

// Close stops the engine follower goroutine.
func (c *Coordinator) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Coordinator) timingOptions() timing.Options {
	return timing.Options{WordsPerMinute: c.wpm, Pause: c.pause}
}

// LoadNarration installs a chapter as the active narration unit. Stored
// timings are reused when present; otherwise a word-count estimate
// stands in until audio is generated.
func (c *Coordinator) LoadNarration(ctx context.Context, chapter *bible.Chapter, voice string) error {
	if chapter == nil || len(chapter.Verses) == 0 {
		return verrors.New(verrors.KindNarration, "LoadNarration", "chapter has no verses")
	}
	key := chapter.Ref.Key(voice)

	timeline := c.storedTimeline(ctx, key)
	if timeline == nil {
		texts := make([]timing.VerseText, len(chapter.Verses))
		for i, v := range chapter.Verses {
			texts[i] = timing.VerseText{Number: v.Number, Text: v.Text}
		}
		timeline = timing.Estimate(texts, c.timingOptions())
	}

	c.mu.Lock()
	c.sess = &session{
		id:         uuid.New(),
		ref:        chapter.Ref,
		voice:      voice,
		key:        key,
		verses:     chapter.Verses,
		timeline:   timeline,
		entries:    timeline.Entries(),
		currentIdx: 0,
	}
	first := c.sess.entries[0]
	c.mu.Unlock()

	c.bus.publishVerseStarted(VerseEvent{
		ChapterKey: key,
		Verse:      first.Verse,
		Start:      first.Start,
		End:        first.End,
	})
	if c.logger != nil {
		c.logger.Info("narration loaded", "chapter", chapter.Ref.String(), "voice", voice, "verses", len(chapter.Verses))
	}
	return nil
}

func (c *Coordinator) storedTimeline(ctx context.Context, key string) *timing.Timeline {
	if c.timings == nil {
		return nil
	}
	blob, err := c.timings.Load(ctx, key)
	if err != nil {
		return nil
	}
	timeline, err := timing.Import(blob)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("stored timings unreadable, re-estimating", "key", key, "error", err)
		}
		return nil
	}
	return timeline
}

// GenerateAndCache synthesizes every verse, measures real timings,
// concatenates the audio with inter-verse silence and caches the result
// under one atomic write. Any verse failure aborts the whole call with
// nothing cached.
func (c *Coordinator) GenerateAndCache(ctx context.Context, chapter *bible.Chapter, voice string) (string, error) {
	if chapter == nil || len(chapter.Verses) == 0 {
		return "", verrors.New(verrors.KindNarration, "GenerateAndCache", "chapter has no verses")
	}
	key := chapter.Ref.Key(voice)
	started := time.Now()

	c.mu.Lock()
	var genID uuid.UUID
	if c.sess != nil && c.sess.key == key {
		genID = c.sess.id
	}
	c.mu.Unlock()

	verses := make([]bible.Verse, len(chapter.Verses))
	copy(verses, chapter.Verses)
	sort.Slice(verses, func(i, j int) bool { return verses[i].Number < verses[j].Number })

	results := make([]*tts.Result, len(verses))
	for start := 0; start < len(verses); start += c.batchSize {
		end := start + c.batchSize
		if end > len(verses) {
			end = len(verses)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := c.provider.Synthesize(gctx, verses[i].Text, tts.SynthesisOptions{Voice: voice})
				if err != nil {
					return fmt.Errorf("verse %d: %w", verses[i].Number, err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			c.bus.publishError(ErrorEvent{ChapterKey: key, Stage: "synthesis", Message: err.Error()})
			return "", verrors.Wrap(verrors.KindSynthesis, "GenerateAndCache", "verse synthesis failed", err)
		}
	}

	pcms := make([]*audio.PCM, len(results))
	measured := make([]timing.MeasuredVerse, len(results))
	for i, res := range results {
		pcm, err := audio.Decode(res.Audio)
		if err != nil {
			c.bus.publishError(ErrorEvent{ChapterKey: key, Stage: "decode", Message: err.Error()})
			return "", verrors.Wrap(verrors.KindSynthesis, "GenerateAndCache",
				fmt.Sprintf("verse %d audio undecodable", verses[i].Number), err)
		}
		pcms[i] = pcm
		measured[i] = timing.MeasuredVerse{
			Number:   verses[i].Number,
			Text:     verses[i].Text,
			Duration: pcm.Duration(),
		}
	}

	timeline := timing.Measure(measured, c.timingOptions())
	combined, err := audio.Concat(pcms, c.pause)
	if err != nil {
		c.bus.publishError(ErrorEvent{ChapterKey: key, Stage: "concat", Message: err.Error()})
		return "", verrors.Wrap(verrors.KindNarration, "GenerateAndCache", "combine verse audio", err)
	}
	wav := audio.EncodeWAV(combined)

	// A chapter loaded after this call started owns the session now;
	// its audio must not be replaced by ours.
	c.mu.Lock()
	if genID != uuid.Nil && (c.sess == nil || c.sess.id != genID) {
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Info("dropping stale generation", "key", key)
		}
		return "", ErrStaleChapter
	}
	sess := c.sess
	c.mu.Unlock()

	path, err := c.cache.Put(key, wav, audio.Metadata{
		Book:        chapter.Ref.Book,
		Chapter:     chapter.Ref.Chapter,
		Translation: chapter.Ref.Translation,
		Voice:       voice,
		Format:      "wav",
	})
	if err != nil {
		c.bus.publishError(ErrorEvent{ChapterKey: key, Stage: "cache", Message: err.Error()})
		return "", verrors.Wrap(verrors.KindCache, "GenerateAndCache", "cache chapter audio", err)
	}

	if c.timings != nil {
		if blob, err := timeline.Export(); err == nil {
			if err := c.timings.Save(ctx, key, blob); err != nil && c.logger != nil {
				c.logger.Warn("timing store save failed", "key", key, "error", err)
			}
		}
	}

	c.mu.Lock()
	if sess != nil && c.sess == sess && sess.key == key {
		sess.timeline = timeline
		sess.entries = timeline.Entries()
	}
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("chapter generated", "key", key,
			"verses", len(verses), "bytes", len(wav), "elapsed", time.Since(started))
	}
	return path, nil
}

// Play starts chapter playback, generating and caching audio first if
// none is cached yet.
func (c *Coordinator) Play(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNoChapterLoaded
	}
	if err := c.ensureEngineLoaded(ctx, sess); err != nil {
		return err
	}
	return c.engine.Play()
}

// Pause suspends playback.
func (c *Coordinator) Pause() {
	c.engine.Pause()
}

// Seek moves the playback position within the chapter stream.
func (c *Coordinator) Seek(seconds float64) error {
	return c.engine.Seek(seconds)
}

// SetRate adjusts playback speed.
func (c *Coordinator) SetRate(rate float64) {
	c.engine.SetRate(rate)
}

// PlayVerse jumps narration to one verse. In chapter mode this seeks the
// combined stream; in single-verse mode the verse is synthesized and
// played in isolation.
func (c *Coordinator) PlayVerse(ctx context.Context, verse int) error {
	c.mu.Lock()
	sess := c.sess
	var timeline *timing.Timeline
	if sess != nil {
		timeline = sess.timeline
	}
	c.mu.Unlock()
	if sess == nil {
		return ErrNoChapterLoaded
	}

	entry, ok := timeline.EntryForVerse(verse)
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidVerseIndex, verse)
	}

	if c.singleVerse {
		return c.playSingleVerse(ctx, sess, verse)
	}

	if err := c.ensureEngineLoaded(ctx, sess); err != nil {
		return err
	}
	if err := c.engine.Seek(entry.Start); err != nil {
		return err
	}
	c.setCurrentVerse(sess, verse)
	return c.engine.Play()
}

// PlayNext advances to the following verse. Past the last verse it
// completes the chapter instead of erroring.
func (c *Coordinator) PlayNext(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	var idx int
	var entries []timing.Entry
	if sess != nil {
		idx = sess.currentIdx
		entries = sess.entries
	}
	c.mu.Unlock()
	if sess == nil {
		return ErrNoChapterLoaded
	}

	if idx+1 >= len(entries) {
		c.engine.Pause()
		c.bus.publishChapterCompleted(ChapterEvent{
			ChapterKey: sess.key,
			Book:       sess.ref.Book,
			Chapter:    sess.ref.Chapter,
		})
		return nil
	}
	return c.PlayVerse(ctx, entries[idx+1].Verse)
}

// PlayPrevious steps back one verse, restarting the first verse when
// already at the top.
func (c *Coordinator) PlayPrevious(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	var idx int
	var entries []timing.Entry
	if sess != nil {
		idx = sess.currentIdx
		entries = sess.entries
	}
	c.mu.Unlock()
	if sess == nil {
		return ErrNoChapterLoaded
	}

	if idx <= 0 {
		idx = 1
	}
	return c.PlayVerse(ctx, entries[idx-1].Verse)
}

// Status reports the full narration state for inspection surfaces.
type Status struct {
	Chapter      *bible.ChapterRef `json:"chapter,omitempty"`
	Voice        string            `json:"voice,omitempty"`
	Key          string            `json:"key,omitempty"`
	CurrentVerse int               `json:"current_verse,omitempty"`
	VerseCount   int               `json:"verse_count"`
	Total        float64           `json:"total_seconds"`
	Cached       bool              `json:"cached"`
	Playback     playback.Snapshot `json:"playback"`
}

// Status snapshots the coordinator and engine together.
func (c *Coordinator) Status() Status {
	snap := c.engine.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Status{Playback: snap}
	}
	ref := c.sess.ref
	st := Status{
		Chapter:    &ref,
		Voice:      c.sess.voice,
		Key:        c.sess.key,
		VerseCount: len(c.sess.entries),
		Total:      c.sess.timeline.Total(),
		Cached:     c.cache.Contains(c.sess.key),
		Playback:   snap,
	}
	if c.sess.currentIdx >= 0 && c.sess.currentIdx < len(c.sess.entries) {
		st.CurrentVerse = c.sess.entries[c.sess.currentIdx].Verse
	}
	return st
}

// Timeline returns the active chapter's timing entries.
func (c *Coordinator) Timeline() ([]timing.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, false
	}
	out := make([]timing.Entry, len(c.sess.entries))
	copy(out, c.sess.entries)
	return out, true
}

func (c *Coordinator) ensureEngineLoaded(ctx context.Context, sess *session) error {
	if snap := c.engine.Snapshot(); snap.ChapterKey == sess.key && snap.State != playback.StateIdle {
		return nil
	}

	path, ok, err := c.cache.Get(sess.key)
	if err != nil {
		return verrors.Wrap(verrors.KindCache, "ensureEngineLoaded", "cache lookup", err)
	}
	if !ok {
		chapter := &bible.Chapter{Ref: sess.ref, Verses: sess.verses}
		if path, err = c.GenerateAndCache(ctx, chapter, sess.voice); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return verrors.Wrap(verrors.KindCache, "ensureEngineLoaded", "read cached audio", err)
	}
	if err := c.engine.Load(sess.key, data); err != nil {
		return verrors.Wrap(verrors.KindPlayback, "ensureEngineLoaded", "load chapter audio", err)
	}
	return nil
}

func (c *Coordinator) playSingleVerse(ctx context.Context, sess *session, verse int) error {
	var text string
	for _, v := range sess.verses {
		if v.Number == verse {
			text = v.Text
			break
		}
	}
	if text == "" {
		return fmt.Errorf("%w: %d", ErrInvalidVerseIndex, verse)
	}

	res, err := c.provider.Synthesize(ctx, text, tts.SynthesisOptions{Voice: sess.voice})
	if err != nil {
		c.bus.publishError(ErrorEvent{ChapterKey: sess.key, Stage: "synthesis", Message: err.Error()})
		return verrors.Wrap(verrors.KindSynthesis, "playSingleVerse", "synthesize verse", err)
	}

	streamKey := fmt.Sprintf("%s:verse:%d", sess.key, verse)
	if err := c.engine.Load(streamKey, res.Audio); err != nil {
		return verrors.Wrap(verrors.KindPlayback, "playSingleVerse", "load verse audio", err)
	}
	c.setCurrentVerse(sess, verse)
	return c.engine.Play()
}

// setCurrentVerse moves the cursor and emits the verse transition events.
func (c *Coordinator) setCurrentVerse(sess *session, verse int) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	prevIdx := sess.currentIdx
	newIdx := prevIdx
	for i, e := range sess.entries {
		if e.Verse == verse {
			newIdx = i
			break
		}
	}
	if newIdx == prevIdx {
		c.mu.Unlock()
		return
	}
	sess.currentIdx = newIdx
	key := sess.key
	var prev *timing.Entry
	if prevIdx >= 0 && prevIdx < len(sess.entries) {
		e := sess.entries[prevIdx]
		prev = &e
	}
	next := sess.entries[newIdx]
	c.mu.Unlock()

	if prev != nil {
		c.bus.publishVerseCompleted(VerseEvent{ChapterKey: key, Verse: prev.Verse, Start: prev.Start, End: prev.End})
	}
	c.bus.publishVerseStarted(VerseEvent{ChapterKey: key, Verse: next.Verse, Start: next.Start, End: next.End})
}

// follow consumes engine snapshots and keeps the verse cursor in sync
// with the playback position.
func (c *Coordinator) follow() {
	for {
		select {
		case <-c.done:
			return
		case snap := <-c.engine.Events():
			c.handleSnapshot(snap)
		}
	}
}

func (c *Coordinator) handleSnapshot(snap playback.Snapshot) {
	c.bus.publishPlaybackState(snap)

	c.mu.Lock()
	sess := c.sess
	var timeline *timing.Timeline
	if sess != nil {
		timeline = sess.timeline
	}
	c.mu.Unlock()
	if sess == nil || snap.ChapterKey != sess.key {
		return
	}

	if snap.Ended {
		c.mu.Lock()
		var last *timing.Entry
		if sess.currentIdx >= 0 && sess.currentIdx < len(sess.entries) {
			e := sess.entries[sess.currentIdx]
			last = &e
		}
		c.mu.Unlock()
		if last != nil {
			c.bus.publishVerseCompleted(VerseEvent{ChapterKey: sess.key, Verse: last.Verse, Start: last.Start, End: last.End})
		}
		c.bus.publishChapterCompleted(ChapterEvent{
			ChapterKey: sess.key,
			Book:       sess.ref.Book,
			Chapter:    sess.ref.Chapter,
		})
		return
	}

	// Gaps between verses resolve to nothing; the cursor holds its verse
	// so the UI does not flicker between entries.
	entry, ok := timeline.VerseAt(snap.Position)
	if !ok {
		return
	}
	c.setCurrentVerse(sess, entry.Verse)
}
