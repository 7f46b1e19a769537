package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"versecast/internal/domain/tts"

	goopenai "github.com/sashabaranov/go-openai"
)

// Provider synthesizes speech through the OpenAI audio/speech endpoint.
type Provider struct {
	client *goopenai.Client
	model  string
	voice  string
	format string
	speed  float64
	voices []tts.Voice
	logger *slog.Logger
}

// Config holds OpenAI TTS settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Format  string
	Speed   float64
	Voices  []tts.Voice
}

// New builds an OpenAI TTS provider.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai tts requires an api key")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = string(goopenai.TTSModel1)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(goopenai.VoiceAlloy)
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
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  model,
		voice:  voice,
		format: format,
		speed:  speed,
		voices: cfg.Voices,
		logger: logger,
	}, nil
}

// Synthesize renders text through the speech endpoint and returns the
// full audio body.
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

	resp, err := p.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(p.model),
		Input:          text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormat(p.format),
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read openai speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai speech returned empty audio")
	}

	if p.logger != nil {
		p.logger.Debug("openai synthesis complete", "voice", voice, "chars", len(text), "bytes", len(audio))
	}

	return &tts.Result{Audio: audio, Format: p.format}, nil
}

// ListVoices returns the configured voice catalog.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, len(p.voices))
	copy(out, p.voices)
	return out, nil
}

// SubscriptionInfo reports usage as pay-per-character without a hard
// limit; OpenAI exposes no quota endpoint for speech.
func (p *Provider) SubscriptionInfo(_ context.Context) (*tts.SubscriptionInfo, error) {
	return &tts.SubscriptionInfo{
		Provider: "openai",
		Plan:     "metered",
	}, nil
}
