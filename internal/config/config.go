// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every setting the binaries read from the environment.
// Values come from the process env; cmd/* autoload a .env file first.
type Config struct {
	Port     string
	LogLevel string

	// WordsDir points at a directory of *.txt / *.csv word lists. Empty
	// means the embedded default list.
	WordsDir string

	TickInterval    time.Duration
	MessageInterval time.Duration

	RedisAddr    string
	RedisDB      int
	HistoryQueue string

	DatabaseURL        string
	HistorianBatchSize int
	HistorianFlush     time.Duration

	// TokenTTL is how long session tokens stay valid; 0 means no expiry.
	TokenTTL time.Duration
	// TokenPrivateKey and TokenPublicKey are paths to an ed25519 PEM pair.
	// When either is empty a key pair is generated at startup.
	TokenPrivateKey string
	TokenPublicKey  string
}

// DefaultHistoryQueue is the Redis list finished games are pushed onto.
const DefaultHistoryQueue = "catchphrase_games"

// Load reads the configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		WordsDir:           os.Getenv("WORDS_DIR"),
		TickInterval:       getEnvDuration("TICK_INTERVAL", 100*time.Millisecond),
		MessageInterval:    getEnvDuration("MESSAGE_INTERVAL", 100*time.Millisecond),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		HistoryQueue:       getEnv("HISTORY_QUEUE", DefaultHistoryQueue),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		TokenTTL:           getTokenTTL("TOKEN_EXPIRE_TIME"),
		TokenPrivateKey:    os.Getenv("TOKEN_PRIVATE_KEY"),
		TokenPublicKey:     os.Getenv("TOKEN_PUBLIC_KEY"),
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else the default.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// getTokenTTL accepts "never", "0" or a Go duration string.
func getTokenTTL(key string) time.Duration {
	s := os.Getenv(key)
	if s == "" || s == "never" || s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
