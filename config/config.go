// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	JWTSecret     string   // HS256 secret for the identity middleware
	GateThreshold int      // minimum credit score (0 = gate default)
	RedisAddr     string   // optional read-cache; empty disables it
	RedisPass     string
	RedisDB       int
	OpenAIKey     string   // optional advisor backend; empty disables it
	CORSOrigins   []string // allowed browser origins
	IsProd        bool
}

// Load reads configuration from the environment, loading a .env file if
// one is present. Port and database path come from flags (see cmd/server).
func Load() *Config {
	_ = godotenv.Load()

	threshold, _ := strconv.Atoi(os.Getenv("GATE_THRESHOLD"))
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}

	return &Config{
		JWTSecret:     os.Getenv("JWT_SECRET"),
		GateThreshold: threshold,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPass:     os.Getenv("REDIS_PASS"),
		RedisDB:       redisDB,
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		CORSOrigins:   origins,
		IsProd:        os.Getenv("IS_PROD") == "true",
	}
}
