package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	RealtimeURL     string
	RealtimeModel   string
	RealtimeVoice   string
	Instructions    string
	Temperature     float64
	MaxOutputTokens int
	TranscribeModel string
	ServerVAD       bool

	CaptureSampleRate    int
	VADThreshold         float64
	VADPlaybackThreshold float64
	VADBins              int
	VADFrames            int
	VADInterval          time.Duration

	TokenIssuer       string
	APIBase           string
	APIKey            string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string
	OAuthScopes       []string
	IssuerRPS         float64
	IssuerBurst       int

	MaxSessions  int
	RateLimitRPS float64
	RateBurst    int

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RealtimeURL:     getEnv("REALTIME_URL", ""),
		RealtimeModel:   getEnv("REALTIME_MODEL", ""),
		RealtimeVoice:   getEnv("REALTIME_VOICE", ""),
		Instructions:    getEnv("REALTIME_INSTRUCTIONS", ""),
		Temperature:     getEnvFloat("REALTIME_TEMPERATURE", 0.8),
		MaxOutputTokens: getEnvInt("REALTIME_MAX_OUTPUT_TOKENS", 4096),
		TranscribeModel: getEnv("REALTIME_TRANSCRIBE_MODEL", ""),
		ServerVAD:       getEnv("REALTIME_SERVER_VAD", "true") == "true",

		CaptureSampleRate:    getEnvInt("CAPTURE_SAMPLE_RATE", 24000),
		VADThreshold:         getEnvFloat("VAD_THRESHOLD", 30),
		VADPlaybackThreshold: getEnvFloat("VAD_PLAYBACK_THRESHOLD", 0),
		VADBins:              getEnvInt("VAD_BINS", 512),
		VADFrames:            getEnvInt("VAD_CONSECUTIVE_FRAMES", 3),
		VADInterval:          time.Duration(getEnvInt("VAD_INTERVAL_MS", 16)) * time.Millisecond,

		TokenIssuer:       getEnv("TOKEN_ISSUER", "ephemeral"),
		APIBase:           getEnv("OPENAI_API_BASE", ""),
		APIKey:            getEnv("OPENAI_API_KEY", ""),
		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		OAuthScopes:       splitList(getEnv("OAUTH_SCOPES", "")),
		IssuerRPS:         getEnvFloat("TOKEN_ISSUER_RPS", 5),
		IssuerBurst:       getEnvInt("TOKEN_ISSUER_BURST", 10),

		MaxSessions:  getEnvInt("MAX_VOICE_SESSIONS", 1),
		RateLimitRPS: getEnvFloat("RATE_LIMIT_RPS", 2),
		RateBurst:    getEnvInt("RATE_LIMIT_BURST", 5),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:    getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(envValue string) []string {
	var out []string
	for _, item := range strings.Split(envValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
