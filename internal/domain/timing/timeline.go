package timing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// DefaultWordsPerMinute is the narration pace assumed before any real
// audio has been measured.
const DefaultWordsPerMinute = 150

// Entry is one verse's half-open [Start, End) interval on the chapter
// timeline, in seconds.
type Entry struct {
	Verse int     `json:"verse"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text,omitempty"`
}

// Duration returns the verse's own length, excluding the trailing gap.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

// Contains reports whether t falls inside the half-open interval.
func (e Entry) Contains(t float64) bool {
	return t >= e.Start && t < e.End
}

// VerseText is the estimation input for one verse.
type VerseText struct {
	Number int
	Text   string
}

// MeasuredVerse carries a measured audio duration for one verse. A
// non-positive Duration falls back to the word-count estimate.
type MeasuredVerse struct {
	Number   int
	Text     string
	Duration float64
}

// Options tunes timeline construction.
type Options struct {
	WordsPerMinute float64
	Pause          float64 // inter-verse gap, seconds
}

func (o Options) normalized() Options {
	if o.WordsPerMinute <= 0 {
		o.WordsPerMinute = DefaultWordsPerMinute
	}
	if o.Pause < 0 {
		o.Pause = 0
	}
	return o
}

// Timeline is an immutable, sorted, non-overlapping set of verse
// intervals covering [0, Total()) with fixed inter-verse gaps.
type Timeline struct {
	entries []Entry
	pause   float64
}

// Estimate builds a timeline from word counts alone: duration =
// words/wpm*60, each verse starting one pause after the previous end.
func Estimate(verses []VerseText, opts Options) *Timeline {
	opts = opts.normalized()
	entries := make([]Entry, 0, len(verses))

	cursor := 0.0
	for i, v := range verses {
		if i > 0 {
			cursor += opts.Pause
		}
		duration := estimateDuration(v.Text, opts.WordsPerMinute)
		entries = append(entries, Entry{
			Verse: v.Number,
			Start: cursor,
			End:   cursor + duration,
			Text:  v.Text,
		})
		cursor += duration
	}

	return &Timeline{entries: entries, pause: opts.Pause}
}

// Measure builds a timeline from measured audio durations, using the
// same accumulation as Estimate. Unmeasurable verses fall back to the
// word-count heuristic so the timeline stays complete.
func Measure(verses []MeasuredVerse, opts Options) *Timeline {
	opts = opts.normalized()
	entries := make([]Entry, 0, len(verses))

	cursor := 0.0
	for i, v := range verses {
		if i > 0 {
			cursor += opts.Pause
		}
		duration := v.Duration
		if duration <= 0 {
			duration = estimateDuration(v.Text, opts.WordsPerMinute)
		}
		entries = append(entries, Entry{
			Verse: v.Number,
			Start: cursor,
			End:   cursor + duration,
			Text:  v.Text,
		})
		cursor += duration
	}

	return &Timeline{entries: entries, pause: opts.Pause}
}

func estimateDuration(text string, wpm float64) float64 {
	words := len(strings.Fields(text))
	return float64(words) / wpm * 60
}

// Entries returns a copy of the ordered timing entries.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of verses on the timeline.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Pause returns the configured inter-verse gap.
func (t *Timeline) Pause() float64 {
	return t.pause
}

// Total returns the end of the last verse interval.
func (t *Timeline) Total() float64 {
	if len(t.entries) == 0 {
		return 0
	}
	return t.entries[len(t.entries)-1].End
}

// VerseAt returns the entry whose interval contains the given time.
// Times inside inter-verse gaps or outside [0, Total()) resolve to
// nothing.
func (t *Timeline) VerseAt(at float64) (Entry, bool) {
	n := len(t.entries)
	if n == 0 || at < 0 || at >= t.Total() {
		return Entry{}, false
	}
	// First entry ending after at; only that one can contain it.
	i := sort.Search(n, func(i int) bool { return t.entries[i].End > at })
	if i < n && t.entries[i].Contains(at) {
		return t.entries[i], true
	}
	return Entry{}, false
}

// Progress returns the elapsed fraction of the verse at the given
// time, clamped to [0,1]. Unknown verses read as 0.
func (t *Timeline) Progress(verse int, at float64) float64 {
	for _, e := range t.entries {
		if e.Verse != verse {
			continue
		}
		d := e.Duration()
		if d <= 0 {
			return 0
		}
		p := (at - e.Start) / d
		if p < 0 {
			return 0
		}
		if p > 1 {
			return 1
		}
		return p
	}
	return 0
}

// EntryForVerse looks an entry up by verse number.
func (t *Timeline) EntryForVerse(verse int) (Entry, bool) {
	for _, e := range t.entries {
		if e.Verse == verse {
			return e, true
		}
	}
	return Entry{}, false
}

type exportEnvelope struct {
	Pause   float64 `json:"pause"`
	Entries []Entry `json:"entries"`
}

// Export serializes the timeline as an opaque blob for persistence.
func (t *Timeline) Export() ([]byte, error) {
	return sonic.Marshal(exportEnvelope{
		Pause:   t.pause,
		Entries: t.entries,
	})
}

// Import rebuilds a timeline from an exported blob, validating the
// ordering invariants before accepting it.
func Import(blob []byte) (*Timeline, error) {
	var env exportEnvelope
	if err := sonic.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("decode timing blob: %w", err)
	}
	for i, e := range env.Entries {
		if e.End < e.Start {
			return nil, fmt.Errorf("entry %d has negative duration", i)
		}
		if i > 0 && e.Start < env.Entries[i-1].End {
			return nil, fmt.Errorf("entry %d overlaps its predecessor", i)
		}
	}
	return &Timeline{entries: env.Entries, pause: env.Pause}, nil
}
