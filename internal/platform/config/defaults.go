package config

import "time"

// DefaultConfig returns the built-in configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:     "0.0.0.0",
			Port:   8000,
			Secret: "your_secret",
			Auth: AuthConfig{
				Enabled: false,
				TTL:     24 * time.Hour,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Storage: StorageConfig{
			Dir: "./data",
		},
		Bible: BibleConfig{
			BaseURL:            "https://bible-api.com",
			DefaultTranslation: "web",
			TimeoutSeconds:     15,
		},
		TTS: map[string]TTSConfig{
			"EdgeTTS": {
				Type:   "edge",
				Voice:  "en-US-AndrewNeural",
				Format: "mp3",
				Voices: []VoiceInfo{
					{Name: "en-US-AndrewNeural", DisplayName: "Andrew", Language: "en-US", Gender: "Male", Description: "Warm, steady narrator", Genres: "gospel,epistle"},
					{Name: "en-US-BrianNeural", DisplayName: "Brian", Language: "en-US", Gender: "Male", Description: "Clear, authoritative read", Genres: "law,history,prophecy"},
					{Name: "en-US-AriaNeural", DisplayName: "Aria", Language: "en-US", Gender: "Female", Description: "Expressive, lyrical delivery", Genres: "poetry,wisdom"},
					{Name: "en-US-EmmaNeural", DisplayName: "Emma", Language: "en-US", Gender: "Female", Description: "Gentle storytelling voice", Genres: "gospel,history"},
					{Name: "en-GB-RyanNeural", DisplayName: "Ryan", Language: "en-GB", Gender: "Male", Description: "Measured British narration", Genres: "epistle,apocalyptic"},
				},
			},
			"OpenAITTS": {
				Type:    "openai",
				Voice:   "onyx",
				Format:  "mp3",
				Model:   "tts-1",
				BaseURL: "https://api.openai.com/v1",
				APIKey:  "your_api_key",
				Speed:   1.0,
				Voices: []VoiceInfo{
					{Name: "onyx", DisplayName: "Onyx", Language: "en-US", Gender: "Male", Description: "Deep narration voice", Genres: "law,prophecy"},
					{Name: "nova", DisplayName: "Nova", Language: "en-US", Gender: "Female", Description: "Bright, clear voice", Genres: "poetry,gospel"},
					{Name: "alloy", DisplayName: "Alloy", Language: "en-US", Gender: "Neutral", Description: "Balanced general-purpose voice", Genres: "history,wisdom,epistle"},
				},
			},
		},
		Narration: NarrationConfig{
			WordsPerMinute: 150,
			VersePause:     700 * time.Millisecond,
			BatchSize:      5,
		},
		Cache: CacheConfig{
			Dir:          "data/audio_cache",
			CeilingBytes: 512 * 1024 * 1024,
		},
		Playback: PlaybackConfig{
			TickInterval: 100 * time.Millisecond,
			Output:       "none",
		},
		Timings: TimingStoreConfig{
			Type: "sqlite",
		},
		Selected: SelectedConfig{
			TTS: "EdgeTTS",
		},
	}
}
