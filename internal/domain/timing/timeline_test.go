package timing

import (
	"math"
	"strings"
	"testing"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEstimateScenario(t *testing.T) {
	// 10, 6, 20 words at 150 wpm with a 1.0s pause.
	verses := []VerseText{
		{Number: 1, Text: words(10)},
		{Number: 2, Text: words(6)},
		{Number: 3, Text: words(20)},
	}
	tl := Estimate(verses, Options{WordsPerMinute: 150, Pause: 1.0})

	entries := tl.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	wantDurations := []float64{4.0, 2.4, 8.0}
	wantStarts := []float64{0, 5.0, 8.4}
	for i, e := range entries {
		if !almost(e.Duration(), wantDurations[i]) {
			t.Errorf("entry %d duration = %v, want %v", i, e.Duration(), wantDurations[i])
		}
		if !almost(e.Start, wantStarts[i]) {
			t.Errorf("entry %d start = %v, want %v", i, e.Start, wantStarts[i])
		}
	}

	if got, ok := tl.VerseAt(5.0); !ok || got.Verse != 2 {
		t.Fatalf("VerseAt(5.0) = %+v ok=%v, want verse 2", got, ok)
	}
	if _, ok := tl.VerseAt(4.5); ok {
		t.Fatalf("VerseAt(4.5) should fall in the gap")
	}
}

func TestEstimateInvariants(t *testing.T) {
	verses := make([]VerseText, 0, 25)
	for i := 1; i <= 25; i++ {
		verses = append(verses, VerseText{Number: i, Text: words(i * 3)})
	}
	tl := Estimate(verses, Options{Pause: 0.7})

	entries := tl.Entries()
	for k := 1; k < len(entries); k++ {
		prev, cur := entries[k-1], entries[k]
		if cur.Start <= prev.Start {
			t.Fatalf("starts not strictly increasing at %d", k)
		}
		if cur.Start < prev.End {
			t.Fatalf("entries overlap at %d", k)
		}
		if !almost(cur.Start, prev.End+0.7) {
			t.Fatalf("entry %d start %v != prev end %v + pause", k, cur.Start, prev.End)
		}
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	verses := []VerseText{{Number: 1, Text: words(7)}, {Number: 2, Text: words(13)}}
	a := Estimate(verses, Options{Pause: 0.5})
	b := Estimate(verses, Options{Pause: 0.5})

	ea, eb := a.Entries(), b.Entries()
	for i := range ea {
		if ea[i] != eb[i] {
			t.Fatalf("estimate not deterministic at entry %d: %+v vs %+v", i, ea[i], eb[i])
		}
	}
}

func TestMeasureFallsBackToEstimate(t *testing.T) {
	verses := []MeasuredVerse{
		{Number: 1, Text: words(10), Duration: 3.2},
		{Number: 2, Text: words(15), Duration: 0}, // unmeasurable
	}
	tl := Measure(verses, Options{WordsPerMinute: 150, Pause: 1.0})

	entries := tl.Entries()
	if !almost(entries[0].Duration(), 3.2) {
		t.Fatalf("measured duration not used: %v", entries[0].Duration())
	}
	if !almost(entries[1].Duration(), 6.0) {
		t.Fatalf("fallback estimate wrong: %v", entries[1].Duration())
	}
	if !almost(entries[1].Start, 4.2) {
		t.Fatalf("accumulation wrong: %v", entries[1].Start)
	}
}

func TestVerseAtBoundaries(t *testing.T) {
	tl := Estimate([]VerseText{
		{Number: 1, Text: words(10)}, // [0, 4)
		{Number: 2, Text: words(10)}, // [5, 9)
	}, Options{WordsPerMinute: 150, Pause: 1.0})

	cases := []struct {
		at    float64
		verse int
		ok    bool
	}{
		{0, 1, true},
		{3.999, 1, true},
		{4.0, 0, false}, // end is exclusive
		{4.5, 0, false}, // gap
		{5.0, 2, true},
		{8.999, 2, true},
		{9.0, 0, false},  // past total
		{-1.0, 0, false}, // before start
	}
	for _, c := range cases {
		got, ok := tl.VerseAt(c.at)
		if ok != c.ok || (ok && got.Verse != c.verse) {
			t.Errorf("VerseAt(%v) = %+v ok=%v, want verse=%d ok=%v", c.at, got, ok, c.verse, c.ok)
		}
	}
}

func TestProgressClamps(t *testing.T) {
	tl := Estimate([]VerseText{{Number: 1, Text: words(10)}}, Options{WordsPerMinute: 150})

	if p := tl.Progress(1, 2.0); !almost(p, 0.5) {
		t.Fatalf("Progress midway = %v, want 0.5", p)
	}
	if p := tl.Progress(1, -5); p != 0 {
		t.Fatalf("Progress before start = %v, want 0", p)
	}
	if p := tl.Progress(1, 100); p != 1 {
		t.Fatalf("Progress past end = %v, want 1", p)
	}
	if p := tl.Progress(42, 2.0); p != 0 {
		t.Fatalf("Progress of unknown verse = %v, want 0", p)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := Estimate([]VerseText{
		{Number: 1, Text: "In the beginning"},
		{Number: 2, Text: "was the Word"},
	}, Options{Pause: 0.7})

	blob, err := src.Export()
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}

	restored, err := Import(blob)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}

	a, b := src.Entries(), restored.Entries()
	if len(a) != len(b) {
		t.Fatalf("entry count mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, a[i], b[i])
		}
	}
	if restored.Pause() != src.Pause() {
		t.Fatalf("pause not preserved")
	}
}

func TestImportRejectsOverlaps(t *testing.T) {
	blob := []byte(`{"pause":0.5,"entries":[{"verse":1,"start":0,"end":4},{"verse":2,"start":3,"end":6}]}`)
	if _, err := Import(blob); err == nil {
		t.Fatalf("expected overlap rejection")
	}
	if _, err := Import([]byte("{broken")); err == nil {
		t.Fatalf("expected decode error")
	}
}
