package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Engine backend names accepted in ENGINE.
const (
	EngineDeepgram = "deepgram"
	EngineStub     = "stub"
)

// Client audio encodings accepted in AUDIO_ENCODING.
const (
	AudioEncodingLinear16 = "linear16"
	AudioEncodingMulaw    = "mulaw"
)

// Config holds all configuration for the dictation gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Recognition engine selection. "deepgram" streams against the Deepgram
	// live API; "stub" plays a canned script (development only).
	Engine string `envconfig:"ENGINE" default:"deepgram"`

	// DefaultLanguage is used when a client starts a session without a
	// language tag (BCP 47, e.g. en-US, pt-BR).
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en-US"`

	// Deepgram STT API configuration
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base

	// Audio the clients stream to the gateway. Telephony-style clients may
	// send G.711 mu-law; the gateway decodes it to linear16 before it reaches
	// the engine.
	AudioEncoding   string `envconfig:"AUDIO_ENCODING" default:"linear16"` // linear16 or mulaw
	AudioSampleRate int    `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"`
	AudioChannels   int    `envconfig:"AUDIO_CHANNELS" default:"1"`
	AudioChunkBytes int    `envconfig:"AUDIO_CHUNK_BYTES" default:"3200"` // frames are coalesced into chunks of this size

	// Session behavior
	SpeakingPulseMs int `envconfig:"SPEAKING_PULSE_MS" default:"500"`   // speaking indicator hold time
	RestartMinRunMs int `envconfig:"RESTART_MIN_RUN_MS" default:"1000"` // engine runs shorter than this count as rapid failures
	RestartMaxRapid int `envconfig:"RESTART_MAX_RAPID" default:"5"`     // consecutive rapid failures before halting

	// Persistence
	AutosaveDebounceMs int    `envconfig:"AUTOSAVE_DEBOUNCE_MS" default:"500"`
	HistoryDBPath      string `envconfig:"HISTORY_DB_PATH" default:""` // empty selects the platform default path

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine {
	case EngineDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when ENGINE=deepgram")
		}
	case EngineStub:
	default:
		return fmt.Errorf("unknown ENGINE %q (expected %q or %q)", c.Engine, EngineDeepgram, EngineStub)
	}
	switch c.AudioEncoding {
	case AudioEncodingLinear16, AudioEncodingMulaw:
	default:
		return fmt.Errorf("unknown AUDIO_ENCODING %q (expected %q or %q)", c.AudioEncoding, AudioEncodingLinear16, AudioEncodingMulaw)
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	if c.AudioChannels <= 0 {
		return fmt.Errorf("AUDIO_CHANNELS must be positive, got %d", c.AudioChannels)
	}
	return nil
}

// SpeakingPulse returns the speaking indicator hold time.
func (c *Config) SpeakingPulse() time.Duration {
	return time.Duration(c.SpeakingPulseMs) * time.Millisecond
}

// RestartMinRun returns the minimum engine run duration that is not counted
// as a rapid failure.
func (c *Config) RestartMinRun() time.Duration {
	return time.Duration(c.RestartMinRunMs) * time.Millisecond
}

// AutosaveDebounce returns the document autosave quiet period.
func (c *Config) AutosaveDebounce() time.Duration {
	return time.Duration(c.AutosaveDebounceMs) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
