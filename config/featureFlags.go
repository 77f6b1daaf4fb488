package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

// EnrichmentEnabled is true when a Gemini API key is present. Set
// DISABLE_ENRICHMENT=true to keep the key but force local-only results.
func EnrichmentEnabled() bool {
	if envBool("DISABLE_ENRICHMENT") {
		return false
	}
	return strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != ""
}

// ExportArchiveEnabled enables copying every rendered export into
// EXPORT_ARCHIVE_BUCKET.
func ExportArchiveEnabled() bool {
	return strings.TrimSpace(os.Getenv("EXPORT_ARCHIVE_BUCKET")) != ""
}

// MetadataPersistenceEnabled controls whether preview metadata is written to
// MySQL. It needs DB_HOST and can be switched off with SKIP_METADATA=true.
func MetadataPersistenceEnabled() bool {
	return DatabaseConfigured() && !envBool("SKIP_METADATA")
}

func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

func RateLimitEnabled() bool {
	return envBool("RATE_LIMIT_ENABLED")
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
