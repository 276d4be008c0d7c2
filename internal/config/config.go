package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by SPROUT_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("SPROUT_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "mock" if not set, so the engine runs without any external
// dependency; theme matching is then exact-only.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// StalenessNewHypothesisThreshold is how many new hypotheses in an
// artifact's domains flag it for update. Defaults to 2.
func StalenessNewHypothesisThreshold() int {
	n, err := strconv.Atoi(os.Getenv("STALENESS_NEW_HYPOTHESIS_THRESHOLD"))
	if err != nil || n <= 0 {
		return 2
	}
	return n
}

// MaxCards caps the number of cards derived per child. Defaults to 4.
func MaxCards() int {
	n, err := strconv.Atoi(os.Getenv("MAX_CARDS"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// ReflectionInterval is how often the background staleness sweep runs.
// Defaults to 30 minutes.
func ReflectionInterval() time.Duration {
	m, err := strconv.Atoi(os.Getenv("REFLECTION_INTERVAL_MINUTES"))
	if err != nil || m <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(m) * time.Minute
}
