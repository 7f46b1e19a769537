package tts

import (
	"context"
	"strings"
)

// SynthesisOptions carries per-request overrides. Zero values fall back
// to the provider's configured defaults.
type SynthesisOptions struct {
	Voice  string
	Speed  float64
	Format string
}

// Result is one synthesized utterance. Duration is in seconds and may be
// zero when the provider cannot measure it; callers then measure the
// audio themselves.
type Result struct {
	Audio    []byte
	Format   string
	Duration float64
}

// Voice describes one selectable narration voice.
type Voice struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Language    string   `json:"language"`
	Gender      string   `json:"gender"`
	Description string   `json:"description"`
	Genres      []string `json:"genres,omitempty"`
}

// SuitsGenre reports whether the voice lists the genre as a good fit.
func (v Voice) SuitsGenre(genre string) bool {
	for _, g := range v.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// SubscriptionInfo reports provider-side usage limits, where available.
type SubscriptionInfo struct {
	Provider       string `json:"provider"`
	Plan           string `json:"plan"`
	CharactersUsed int64  `json:"characters_used"`
	CharacterLimit int64  `json:"character_limit"`
	Unlimited      bool   `json:"unlimited"`
}

// Provider is the synthesis contract consumed by the narration engine.
type Provider interface {
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) (*Result, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	SubscriptionInfo(ctx context.Context) (*SubscriptionInfo, error)
}
