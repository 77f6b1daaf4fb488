package enrichment

import (
	"regexp"
	"strings"
)

const unknownField = "Unknown"

var fallbackVersionRe = regexp.MustCompile(`(?i)v?(\d+\.[\d.]+)`)

// FallbackExtraction guesses vendor, product and version without the model:
// the first dotted number is the version, the first word the vendor and the
// rest the product.
func FallbackExtraction(rawText string) SoftwareInfo {
	text := strings.TrimSpace(rawText)

	version := unknownField
	if m := fallbackVersionRe.FindStringSubmatch(text); m != nil {
		version = m[1]
	}

	parts := strings.Fields(text)
	vendor := unknownField
	product := ""
	if len(parts) > 0 {
		vendor = parts[0]
		product = strings.Join(parts[1:], " ")
	}
	product = strings.TrimSpace(strings.Replace(product, version, "", 1))
	if product == "" {
		product = unknownField
	}

	return SoftwareInfo{
		Vendor:     vendor,
		Product:    product,
		Version:    version,
		Normalized: false,
	}
}
