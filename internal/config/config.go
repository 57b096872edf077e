package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bot service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	KeepAliveInterval        time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	DeepgramAPIKey        string
	DeepgramWSBaseURL     string
	DeepgramModel         string
	DeepgramLanguage      string
	DeepgramEndpointingMS int

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	ElevenLabsAPIKey       string
	ElevenLabsBaseURL      string
	ElevenLabsModelID      string
	ElevenLabsOutputFormat string

	OpenAIAPIKey   string
	EmbeddingModel string

	DailyAPIKey  string
	DailyBaseURL string

	CustomerDataPath string
	TokenSecret      string
	TokenTTL         time.Duration
	DatabaseURL      string

	HistoryLimit      int
	MaxResponseTokens int
	Temperature       float64
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "evavoice"),
		AllowAnyOrigin:    false,
		DeepgramAPIKey:    envTrimmed("DEEPGRAM_API_KEY"),
		DeepgramWSBaseURL: envOrDefault("DEEPGRAM_WS_BASE_URL", "wss://api.deepgram.com"),
		// nova-2 for best realtime accuracy.
		DeepgramModel:         envOrDefault("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage:      envOrDefault("DEEPGRAM_LANGUAGE", "en"),
		DeepgramEndpointingMS: 300,
		GroqAPIKey:            envTrimmed("GROQ_API_KEY"),
		GroqBaseURL:           envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		// Fast 8B model keeps turn latency low.
		GroqModel:         envOrDefault("GROQ_MODEL", "llama-3.1-8b-instant"),
		ElevenLabsAPIKey:  envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsModelID: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_turbo_v2_5"),
		// Raw PCM keeps the browser playback path codec-free.
		ElevenLabsOutputFormat:   envOrDefault("ELEVENLABS_TTS_OUTPUT_FORMAT", "pcm_24000"),
		OpenAIAPIKey:             envTrimmed("OPENAI_API_KEY"),
		EmbeddingModel:           envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		DailyAPIKey:              envTrimmed("DAILY_API_KEY"),
		DailyBaseURL:             envOrDefault("DAILY_BASE_URL", "https://api.daily.co/v1"),
		CustomerDataPath:         envOrDefault("CUSTOMER_DATA_PATH", "./customer_data"),
		TokenSecret:              envOrDefault("TOKEN_SECRET", "voicebot_dev_secret_key_change_in_production"),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		TokenTTL:                 7 * 24 * time.Hour,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		KeepAliveInterval:        30 * time.Second,
		HistoryLimit:             20,
		MaxResponseTokens:        40,
		Temperature:              0.5,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.KeepAliveInterval, err = durationFromEnv("APP_KEEPALIVE_INTERVAL", cfg.KeepAliveInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL, err = durationFromEnv("TOKEN_TTL", cfg.TokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.DeepgramEndpointingMS, err = intFromEnv("DEEPGRAM_ENDPOINTING_MS", cfg.DeepgramEndpointingMS)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("APP_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxResponseTokens, err = intFromEnv("APP_MAX_RESPONSE_TOKENS", cfg.MaxResponseTokens)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.KeepAliveInterval < time.Second {
		return Config{}, fmt.Errorf("APP_KEEPALIVE_INTERVAL must be at least 1s")
	}
	if cfg.DeepgramEndpointingMS <= 0 {
		return Config{}, fmt.Errorf("DEEPGRAM_ENDPOINTING_MS must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_LIMIT must be positive")
	}
	if cfg.MaxResponseTokens <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_RESPONSE_TOKENS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
