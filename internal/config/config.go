package config

import (
	"os"
	"strconv"
	"strings"

	"onboarding-forms/internal/datastore"
)

// Config is everything the CLI and the API server read from the environment.
type Config struct {
	DataStore        datastore.Config
	RedisURL         string
	GeminiAPIKey     string
	APIAddr          string
	LogLevel         string
	LogFormat        string
	TemplatesDir     string
	BroadcastWorkers int
}

// Load reads the full configuration.
func Load() Config {
	return Config{
		DataStore:        GetDataStoreConfig(),
		RedisURL:         os.Getenv("REDIS_URL"),
		GeminiAPIKey:     GetGeminiAPIKey(),
		APIAddr:          getEnv("FORMS_API_ADDR", ":8181"),
		LogLevel:         getEnv("FORMS_LOG_LEVEL", "info"),
		LogFormat:        getEnv("FORMS_LOG_FORMAT", "console"),
		TemplatesDir:     os.Getenv("FORMS_TEMPLATES_DIR"),
		BroadcastWorkers: getInt("FORMS_BROADCAST_WORKERS", 4),
	}
}

// GetDataStoreConfig returns the data store configuration based on environment variables
func GetDataStoreConfig() datastore.Config {
	storeType := os.Getenv("FORMS_STORE_TYPE")
	if storeType == "" {
		storeType = "postgresql"
	}

	config := datastore.Config{}

	switch strings.ToLower(storeType) {
	case "mock", "memory":
		config.Type = datastore.MockStore
		config.MockDataPath = getMockDataPath()
	case "postgresql", "postgres", "db":
		config.Type = datastore.PostgreSQLStore
		config.ConnectionString = getConnectionString()
	default:
		// Default to PostgreSQL if unknown type
		config.Type = datastore.PostgreSQLStore
		config.ConnectionString = getConnectionString()
	}

	return config
}

// GetGeminiAPIKey prefers GEMINI_API_KEY over GOOGLE_API_KEY.
func GetGeminiAPIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// IsMockMode returns true if running in mock mode
func IsMockMode() bool {
	return GetDataStoreConfig().Type == datastore.MockStore
}

func getMockDataPath() string {
	return getEnv("FORMS_MOCK_DATA_PATH", "data/forms")
}

func getConnectionString() string {
	// Default connection string for local development
	return getEnv("DB_CONN_STRING", "postgres://localhost:5432/postgres?sslmode=disable")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
