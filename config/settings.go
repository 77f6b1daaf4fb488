package config

import (
	"os"
	"strings"
	"time"
)

const (
	defaultPort        = "5052"
	defaultRecipesDir  = "recipes"
	defaultGeminiModel = "gemini-2.5-flash"
)

func Port() string {
	if v := strings.TrimSpace(os.Getenv("API_PORT")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		return v
	}
	return defaultPort
}

func RecipesDir() string {
	if v := strings.TrimSpace(os.Getenv("RECIPES_DIR")); v != "" {
		return v
	}
	return defaultRecipesDir
}

// SessionTTL only applies to the Redis session store; the in-memory store
// keeps uploads until the process exits.
func SessionTTL() time.Duration {
	return time.Duration(intFromEnv("SESSION_TTL_HOURS", 24)) * time.Hour
}

func GeminiAPIKey() string {
	return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
}

func GeminiModel() string {
	if v := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); v != "" {
		return v
	}
	return defaultGeminiModel
}

func GeminiTimeout() time.Duration {
	return time.Duration(intFromEnv("GEMINI_TIMEOUT_SECONDS", 20)) * time.Second
}

func EnrichmentCacheTTL() time.Duration {
	return time.Duration(intFromEnv("ENRICHMENT_CACHE_TTL_SECONDS", 600)) * time.Second
}

func RateLimit() (int64, time.Duration) {
	limit := int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 60))
	if limit <= 0 {
		limit = 60
	}
	window := intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
	if window <= 0 {
		window = 60
	}
	return limit, time.Duration(window) * time.Second
}

func CorsAllowedOrigins() []string {
	return splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
}

func ExportArchiveBucket() string {
	return strings.TrimSpace(os.Getenv("EXPORT_ARCHIVE_BUCKET"))
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
