package config

import (
	"os"
	"strings"
)

// parseEnv overlays the deployment environment variables:
//
//	PORT           HTTP port; a bare number becomes ":<n>"
//	DATABASE_DSN   PostgreSQL DSN
//	JWT_SECRET     token signing secret
//	GOOGLE_AI_KEY  Gemini API key
//	CORS_ORIGIN    allowed CORS origin
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		config.EndpointAddrHTTP = v
	}
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok && v != "" {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("JWT_SECRET"); ok && v != "" {
		config.SecretKey = v
	}
	if v, ok := os.LookupEnv("GOOGLE_AI_KEY"); ok && v != "" {
		config.AIAPIKey = v
	}
	if v, ok := os.LookupEnv("CORS_ORIGIN"); ok && v != "" {
		config.CORSOrigin = v
	}
}
