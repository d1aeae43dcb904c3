package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultListenAddr      = ":3000"
	DefaultResolveTimeout  = 60 * time.Second
	DefaultStopTimeout     = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultChunkSize       = 64 * 1024
	DefaultCookiesPath     = "youtube_cookies.txt"
)

const (
	ProviderYTDLP  = "ytdlp"
	ProviderNative = "native"
)

type Config struct {
	ListenAddr  string
	LogLevel    string
	APIKey      string
	CookiesPath string

	ProviderSettings ProviderConfig
	TransferSettings TransferConfig
	RateLimit        RateLimitConfig
	ShutdownTimeout  time.Duration
}

type ProviderConfig struct {
	Name           string
	YTDLPPath      string
	DirectStream   bool
	ResolveTimeout time.Duration
}

type TransferConfig struct {
	ChunkSize   int
	StopTimeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// listenAddr prefers LISTEN_ADDR and falls back to a bare PORT.
func listenAddr() string {
	if addr := getEnv("LISTEN_ADDR", ""); addr != "" {
		return addr
	}
	if port := getEnv("PORT", ""); port != "" {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return DefaultListenAddr
}

func NewConfig() (*Config, error) {
	config := &Config{
		ListenAddr:  listenAddr(),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		APIKey:      getEnv("API_KEY", ""),
		CookiesPath: getEnv("YOUTUBE_COOKIES_PATH", DefaultCookiesPath),

		ProviderSettings: ProviderConfig{
			Name:           strings.ToLower(getEnv("PROVIDER", ProviderYTDLP)),
			YTDLPPath:      getEnv("YTDLP_PATH", "yt-dlp"),
			DirectStream:   getEnvBool("YTDLP_DIRECT_STREAM", false),
			ResolveTimeout: getEnvDuration("RESOLVE_TIMEOUT", DefaultResolveTimeout),
		},

		TransferSettings: TransferConfig{
			ChunkSize:   getEnvInt("CHUNK_SIZE", DefaultChunkSize),
			StopTimeout: getEnvDuration("STOP_TIMEOUT", DefaultStopTimeout),
		},

		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}

	if getEnv("RUNNING_IN_DOCKER", "false") == "true" && os.Getenv("YOUTUBE_COOKIES_PATH") == "" {
		config.CookiesPath = "/app/youtube_cookies.txt"
		log.Printf("Running inside Docker, setting YOUTUBE_COOKIES_PATH to %s", config.CookiesPath)
	}

	if err := config.validate(); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully")
	return config, nil
}

func (c *Config) GetProviderSettings() ProviderConfig {
	return c.ProviderSettings
}

func (c *Config) GetTransferSettings() TransferConfig {
	return c.TransferSettings
}
