package factory

import (
	"fmt"
	"log/slog"
	"strings"

	"versecast/internal/domain/tts"
	"versecast/internal/domain/tts/edge"
	"versecast/internal/domain/tts/openai"
	"versecast/internal/platform/config"
)

// New constructs the TTS provider selected by cfg.
func New(name string, cfg config.TTSConfig, logger *slog.Logger) (tts.Provider, error) {
	voices := make([]tts.Voice, 0, len(cfg.Voices))
	for _, v := range cfg.Voices {
		voices = append(voices, tts.Voice{
			Name:        v.Name,
			DisplayName: v.DisplayName,
			Language:    v.Language,
			Gender:      v.Gender,
			Description: v.Description,
			Genres:      splitGenres(v.Genres),
		})
	}

	switch strings.ToLower(cfg.Type) {
	case "edge":
		return edge.New(edge.Config{
			Voice:  cfg.Voice,
			Format: cfg.Format,
			Speed:  cfg.Speed,
			Voices: voices,
		}, logger), nil
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Voice:   cfg.Voice,
			Format:  cfg.Format,
			Speed:   cfg.Speed,
			Voices:  voices,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported TTS provider type %q for %s", cfg.Type, name)
	}
}

func splitGenres(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
