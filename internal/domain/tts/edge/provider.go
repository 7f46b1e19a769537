package edge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"versecast/internal/domain/tts"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

// Provider synthesizes speech through the Microsoft Edge TTS service.
type Provider struct {
	voice  string
	format string
	speed  float64
	voices []tts.Voice
	logger *slog.Logger
}

// Config holds Edge TTS settings.
type Config struct {
	Voice  string
	Format string
	Speed  float64
	Voices []tts.Voice
}

// New builds an Edge TTS provider.
func New(cfg Config, logger *slog.Logger) *Provider {
	voice := cfg.Voice
	if voice == "" {
		voice = "en-US-AndrewNeural"
	}
	format := cfg.Format
	if format == "" {
		format = "mp3"
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}
	return &Provider{
		voice:  voice,
		format: format,
		speed:  speed,
		voices: cfg.Voices,
		logger: logger,
	}
}

// Synthesize renders text to MP3 bytes. Edge TTS reports no duration;
// the result leaves Duration at zero for downstream measurement.
func (p *Provider) Synthesize(ctx context.Context, text string, opts tts.SynthesisOptions) (*tts.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := opts.Voice
	if voice == "" {
		voice = p.voice
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = p.speed
	}

	conn, err := edge_tts.NewCommunicate(
		text,
		edge_tts.SetVoice(voice),
		edge_tts.SetRate(rateString(speed)),
		edge_tts.SetReceiveTimeout(60),
	)
	if err != nil {
		return nil, fmt.Errorf("create edge tts communicator: %w", err)
	}

	start := time.Now()
	audio, err := conn.Stream()
	if err != nil {
		return nil, fmt.Errorf("edge tts synthesis failed: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("edge tts returned empty audio")
	}

	if p.logger != nil {
		p.logger.Debug("edge synthesis complete",
			"voice", voice, "chars", len(text), "bytes", len(audio), "elapsed", time.Since(start))
	}

	return &tts.Result{Audio: audio, Format: p.format}, nil
}

// ListVoices returns the configured voice catalog.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, len(p.voices))
	copy(out, p.voices)
	return out, nil
}

// SubscriptionInfo reports the Edge service as unlimited; there is no
// quota API to query.
func (p *Provider) SubscriptionInfo(_ context.Context) (*tts.SubscriptionInfo, error) {
	return &tts.SubscriptionInfo{
		Provider:  "edge",
		Plan:      "free",
		Unlimited: true,
	}, nil
}

// rateString converts a speed multiplier to the service's percent form,
// e.g. 1.25 -> "+25%", 0.8 -> "-20%".
func rateString(speed float64) string {
	percent := int((speed - 1.0) * 100)
	if percent >= 0 {
		return fmt.Sprintf("+%d%%", percent)
	}
	return fmt.Sprintf("%d%%", percent)
}
