package config

import "time"

type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Log       LogConfig            `yaml:"log"`
	Web       WebConfig            `yaml:"web"`
	Storage   StorageConfig        `yaml:"storage"`
	Bible     BibleConfig          `yaml:"bible"`
	TTS       map[string]TTSConfig `yaml:"TTS"`
	Narration NarrationConfig      `yaml:"narration"`
	Cache     CacheConfig          `yaml:"cache"`
	Playback  PlaybackConfig       `yaml:"playback"`
	Timings   TimingStoreConfig    `yaml:"timing_store"`
	Selected  SelectedConfig       `yaml:"selected_module"`
}

type ServerConfig struct {
	IP     string     `yaml:"ip"`
	Port   int        `yaml:"port"`
	Secret string     `yaml:"secret"`
	Auth   AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// BibleConfig points at the scripture text provider.
type BibleConfig struct {
	BaseURL            string `yaml:"url"`
	APIKey             string `yaml:"api_key"`
	DefaultTranslation string `yaml:"translation"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

type TTSConfig struct {
	Type       string      `yaml:"type"`
	Voice      string      `yaml:"voice"`
	Format     string      `yaml:"format"`
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"url"`
	Model      string      `yaml:"model"`
	Speed      float64     `yaml:"speed"`
	SampleRate int         `yaml:"sample_rate"`
	Voices     []VoiceInfo `yaml:"supported_voices"`
}

type VoiceInfo struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Language    string `yaml:"language"`
	Gender      string `yaml:"gender"`
	Description string `yaml:"description"`
	Genres      string `yaml:"genres"`
}

// NarrationConfig tunes timing estimation and generation fan-out.
type NarrationConfig struct {
	WordsPerMinute  float64       `yaml:"words_per_minute"`
	VersePause      time.Duration `yaml:"verse_pause"`
	BatchSize       int           `yaml:"batch_size"`
	SingleVerseMode bool          `yaml:"single_verse_mode"`
}

type CacheConfig struct {
	Dir          string `yaml:"dir"`
	CeilingBytes int64  `yaml:"ceiling_bytes"`
}

type PlaybackConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Output       string        `yaml:"output"` // "speaker" or "none"
}

type TimingStoreConfig struct {
	Type        string            `yaml:"type"`
	Redis       RedisStoreConfig  `yaml:"redis,omitempty"`
	SQLiteStore SQLiteStoreConfig `yaml:"sqlite,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type SelectedConfig struct {
	TTS string `yaml:"TTS"`
}
