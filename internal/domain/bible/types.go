package bible

import "fmt"

// Verse is one numbered verse of a chapter. Immutable once fetched.
type Verse struct {
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Number      int    `json:"number"`
	Translation string `json:"translation"`
	Text        string `json:"text"`
}

// ChapterRef identifies a chapter within a translation.
type ChapterRef struct {
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Translation string `json:"translation"`
}

// Key returns the stable identity used for caching and timing lookup.
// The voice is part of the key because different voices produce
// different audio and timings.
func (r ChapterRef) Key(voice string) string {
	return fmt.Sprintf("%s_%d_%s_%s", normalizeBook(r.Book), r.Chapter, r.Translation, voice)
}

func (r ChapterRef) String() string {
	return fmt.Sprintf("%s %d (%s)", r.Book, r.Chapter, r.Translation)
}

// Chapter is an ordered list of verses plus its reference.
type Chapter struct {
	Ref    ChapterRef `json:"ref"`
	Verses []Verse    `json:"verses"`
}
