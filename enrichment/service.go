package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mmdatafocus/clearview_backend/config"
)

const (
	DefaultTimeout  = 20 * time.Second
	DefaultCacheTTL = 10 * time.Minute
)

var tracer = otel.Tracer("clearview-backend/enrichment")

// Service wraps a Generator with a reply cache and a per-call timeout.
// Upstream calls are never retried.
type Service struct {
	Generator Generator
	Cache     Cache
	Locker    Locker
	Timeout   time.Duration
	CacheTTL  time.Duration
	Logger    *logrus.Logger
}

func NewService(gen Generator, cache Cache, logger *logrus.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		Generator: gen,
		Cache:     cache,
		Timeout:   DefaultTimeout,
		CacheTTL:  DefaultCacheTTL,
		Logger:    logger,
	}
}

func (s *Service) Configured() bool {
	return s != nil && s.Generator != nil
}

// complete returns the reply for prompt as n positional JSON slots, reading
// and filling the cache under key.
func (s *Service) complete(ctx context.Context, key, prompt string, n int) ([]json.RawMessage, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "enrichment.complete")
	defer span.End()
	span.SetAttributes(attribute.String("enrichment.key", key), attribute.Int("enrichment.entries", n))

	if text, ok := s.cached(ctx, key); ok {
		if slots, err := parseSlots(text, n); err == nil {
			span.SetAttributes(attribute.Bool("enrichment.cache_hit", true))
			return slots, nil
		}
		_ = s.Cache.Evict(ctx, key)
	}

	if s.Locker != nil {
		release := s.Locker.Lock(ctx, key)
		defer release()
		// Another instance may have filled it while we waited.
		if text, ok := s.cached(ctx, key); ok {
			if slots, err := parseSlots(text, n); err == nil {
				span.SetAttributes(attribute.Bool("enrichment.cache_hit", true))
				return slots, nil
			}
		}
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := s.Generator.Generate(callCtx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("enrichment call failed: %w", err)
	}
	cleaned := stripCodeFences(reply)
	slots, err := parseSlots(cleaned, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ttl := s.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if err := s.Cache.Set(ctx, key, cleaned, ttl); err != nil && s.Logger != nil {
		config.LogError(s.Logger, "service.go", "complete", "Error caching enrichment reply", key, err)
	}
	return slots, nil
}

func (s *Service) cached(ctx context.Context, key string) (string, bool) {
	if s.Cache == nil {
		return "", false
	}
	text, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		if s.Logger != nil {
			config.LogError(s.Logger, "service.go", "cached", "Error reading enrichment cache", key, err)
		}
		return "", false
	}
	return text, ok
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if len(cleaned) >= 7 && strings.EqualFold(cleaned[:7], "```json") {
		cleaned = cleaned[7:]
	} else {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// parseSlots splits a JSON array reply into exactly n slots. Missing slots
// are null and extras are dropped. A lone object is accepted for n == 1.
func parseSlots(text string, n int) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		if n == 1 && strings.HasPrefix(text, "{") && json.Valid([]byte(text)) {
			raw = []json.RawMessage{json.RawMessage(text)}
		} else {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	slots := make([]json.RawMessage, n)
	copy(slots, raw)
	return slots, nil
}

// looseString takes a JSON string or number; anything else reads as empty.
type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = looseString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*l = looseString(n.String())
		return nil
	}
	*l = ""
	return nil
}

// unitConfidence keeps c only when it lies in [0, 1].
func unitConfidence(c *float64) *float64 {
	if c == nil || *c < 0 || *c > 1 {
		return nil
	}
	v := *c
	return &v
}
