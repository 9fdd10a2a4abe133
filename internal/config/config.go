// Package config loads process configuration from the environment,
// following the teacher's Load()/getEnv helper-function shape.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration, read once at startup (spec §6
// "Configuration").
type Config struct {
	AppName        string   // APP_NAME
	Port           int      // GO_PORT
	LogLevel       string   // LOG_LEVEL
	DevMode        bool     // DEV_MODE
	MongoURI       string   // MONGODB_URI
	MongoDBName    string   // MONGODB_DB_NAME
	AllowedOrigins []string // ALLOWED_ORIGINS, comma-separated
	CSVChunkSize   int      // CSV_CHUNK_SIZE
}

// Load reads configuration from the environment, loading a .env file
// first on a best-effort basis (godotenv.Load() errors are ignored,
// matching the teacher's Load()).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppName:        getEnv("APP_NAME", "MarketPl.ai"),
		Port:           getEnvAsInt("GO_PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		MongoURI:       getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGODB_DB_NAME", "marketpl"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		CSVChunkSize:   getEnvAsInt("CSV_CHUNK_SIZE", 10000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
