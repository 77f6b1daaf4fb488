package enrichment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeGenerator struct {
	calls atomic.Int32
	reply string
	err   error
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func TestExtractSoftware_ParsesSlots(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `[
		{"manufacturer": "Microsoft", "product": "SQL Server", "edition": "Standard", "version": "2019", "confidence": 0.9},
		"garbage",
		{"vendor": "Adobe", "product": "Acrobat", "version": 11, "confidence": 7}
	]` + "\n```"}
	svc := NewService(gen, nil, nil)

	got, err := svc.ExtractSoftware(context.Background(), []string{"MS SQL 2019 Std", "???", "Acrobat XI", "extra"})
	if err != nil {
		t.Fatalf("ExtractSoftware error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(got))
	}
	if got[0] == nil || got[0].Vendor != "Microsoft" || got[0].Edition != "Standard" || *got[0].Confidence != 0.9 || !got[0].Normalized {
		t.Fatalf("unexpected first slot %+v", got[0])
	}
	if got[1] != nil {
		t.Fatalf("expected malformed slot to be nil, got %+v", got[1])
	}
	if got[2] == nil || got[2].Vendor != "Adobe" || got[2].Version != "11" || got[2].Confidence != nil {
		t.Fatalf("unexpected third slot %+v", got[2])
	}
	if got[3] != nil {
		t.Fatalf("expected missing slot to be nil")
	}
}

func TestExtractSoftware_Errors(t *testing.T) {
	svc := NewService(&fakeGenerator{reply: "sorry, I cannot help"}, nil, nil)
	if _, err := svc.ExtractSoftware(context.Background(), []string{"a"}); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}

	entries := make([]string, MaxBatchEntries+1)
	if _, err := svc.ExtractSoftware(context.Background(), entries); !errors.Is(err, ErrTooManyEntries) {
		t.Fatalf("expected ErrTooManyEntries, got %v", err)
	}

	var unconfigured *Service
	if _, err := unconfigured.ExtractSoftware(context.Background(), []string{"a"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestExtractSoftware_SingleObjectReply(t *testing.T) {
	svc := NewService(&fakeGenerator{reply: `{"vendor":"Oracle","product":"Java","version":"8"}`}, nil, nil)
	got, err := svc.ExtractSoftware(context.Background(), []string{"Oracle Java 8"})
	if err != nil || got[0] == nil || got[0].Product != "Java" {
		t.Fatalf("expected a single object to fill the only slot, got %+v %v", got, err)
	}
}

func TestService_Timeout(t *testing.T) {
	gen := &fakeGenerator{reply: "[]", delay: time.Second}
	svc := NewService(gen, nil, nil)
	svc.Timeout = 20 * time.Millisecond

	_, err := svc.ExtractSoftware(context.Background(), []string{"a"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("expected exactly one call without retry, got %d", gen.calls.Load())
	}
}

func TestService_CachesByFingerprint(t *testing.T) {
	gen := &fakeGenerator{reply: `[{"vendor":"SAP","product":"ECC","version":"6.0"}]`}
	cache := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	svc := NewService(gen, cache, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.ExtractSoftware(context.Background(), []string{"SAP ECC 6.0"}); err != nil {
			t.Fatalf("ExtractSoftware error: %v", err)
		}
	}
	if gen.calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", gen.calls.Load())
	}

	now = now.Add(DefaultCacheTTL)
	if _, err := svc.ExtractSoftware(context.Background(), []string{"SAP ECC 6.0"}); err != nil {
		t.Fatalf("ExtractSoftware error: %v", err)
	}
	if gen.calls.Load() != 2 {
		t.Fatalf("expected the entry to expire after the TTL, got %d calls", gen.calls.Load())
	}
}

func TestService_FailedRepliesAreNotCached(t *testing.T) {
	gen := &fakeGenerator{reply: "not json"}
	svc := NewService(gen, nil, nil)
	for i := 0; i < 2; i++ {
		_, _ = svc.ExtractSoftware(context.Background(), []string{"x"})
	}
	if gen.calls.Load() != 2 {
		t.Fatalf("expected every failed call to reach the generator, got %d", gen.calls.Load())
	}
}

type recordingLocker struct{ keys []string }

func (l *recordingLocker) Lock(_ context.Context, key string) func() {
	l.keys = append(l.keys, key)
	return func() {}
}

func TestService_LocksOnMiss(t *testing.T) {
	locker := &recordingLocker{}
	svc := NewService(&fakeGenerator{reply: `[{"vendor":"a"}]`}, nil, nil)
	svc.Locker = locker
	for i := 0; i < 2; i++ {
		if _, err := svc.ExtractSoftware(context.Background(), []string{"a"}); err != nil {
			t.Fatalf("ExtractSoftware error: %v", err)
		}
	}
	if len(locker.keys) != 1 || !strings.HasPrefix(locker.keys[0], "extract-software:") {
		t.Fatalf("expected one lock on the first miss, got %v", locker.keys)
	}
}

func TestExtractOrFallback(t *testing.T) {
	svc := NewService(&fakeGenerator{reply: `[{"vendor":"Microsoft","product":"Office","version":"2016"}, null]`}, nil, nil)
	got, err := svc.ExtractOrFallback(context.Background(), []string{"MS Office 2016", "Adobe Reader v11.0.2"})
	if err != nil {
		t.Fatalf("ExtractOrFallback error: %v", err)
	}
	if got[0].Vendor != "Microsoft" || !got[0].Normalized {
		t.Fatalf("unexpected first result %+v", got[0])
	}
	if got[1].Vendor != "Adobe" || got[1].Version != "11.0.2" || got[1].Normalized || got[1].Confidence != nil {
		t.Fatalf("expected local fallback for the null slot, got %+v", got[1])
	}

	failing := NewService(&fakeGenerator{err: fmt.Errorf("upstream 503")}, nil, nil)
	got, err = failing.ExtractOrFallback(context.Background(), []string{"Oracle Java 1.8"})
	if err != nil || got[0].Vendor != "Oracle" || got[0].Version != "1.8" {
		t.Fatalf("expected fallback on upstream failure, got %+v %v", got, err)
	}
}

func TestFallbackExtraction(t *testing.T) {
	cases := []struct {
		in       string
		expected SoftwareInfo
	}{
		{"Adobe Reader v11.0.2", SoftwareInfo{Vendor: "Adobe", Product: "Reader v", Version: "11.0.2"}},
		{"Microsoft Office 2016", SoftwareInfo{Vendor: "Microsoft", Product: "Office 2016", Version: "Unknown"}},
		{"  7zip  ", SoftwareInfo{Vendor: "7zip", Product: "Unknown", Version: "Unknown"}},
		{"", SoftwareInfo{Vendor: "Unknown", Product: "Unknown", Version: "Unknown"}},
	}
	for _, tc := range cases {
		if got := FallbackExtraction(tc.in); got != tc.expected {
			t.Fatalf("FallbackExtraction(%q) expected %+v, got %+v", tc.in, tc.expected, got)
		}
	}
}

func TestPredictEOS(t *testing.T) {
	gen := &fakeGenerator{reply: `[{"eosDate":"2026-10-13","confidence":0.7},{"eosDate":""},{"eosDate":"10/14/2025"}]`}
	svc := NewService(gen, nil, nil)
	got, err := svc.PredictEOS(context.Background(), []EOSQuery{
		{Vendor: "Microsoft", Product: "Windows Server", Version: "2016"},
		{Vendor: "Acme", Product: "Widget"},
		{Vendor: "Microsoft", Product: "Windows", Version: "10"},
	})
	if err != nil {
		t.Fatalf("PredictEOS error: %v", err)
	}
	if got[0] == nil || got[0].EosDate != "2026-10-13" || *got[0].Confidence != 0.7 {
		t.Fatalf("unexpected first prediction %+v", got[0])
	}
	if got[1] != nil {
		t.Fatalf("expected empty date to be nil, got %+v", got[1])
	}
	if got[2] == nil || got[2].EosDate != "2025-10-14" {
		t.Fatalf("unexpected third prediction %+v", got[2])
	}
}

func TestFingerprint(t *testing.T) {
	a, _ := Fingerprint("predict-eos", map[string]any{"b": 1, "a": []string{"x", "y"}})
	b, _ := Fingerprint("predict-eos", map[string]any{"a": []string{"x", "y"}, "b": 1})
	if a != b {
		t.Fatalf("expected key order not to matter: %s vs %s", a, b)
	}
	c, _ := Fingerprint("predict-eos", map[string]any{"a": []string{"y", "x"}, "b": 1})
	if a == c {
		t.Fatalf("expected array order to matter")
	}
	d, _ := Fingerprint("extract-software", map[string]any{"b": 1, "a": []string{"x", "y"}})
	if a == d {
		t.Fatalf("expected kind to be part of the fingerprint")
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n[1]\n```": "[1]",
		"```JSON [2]```":    "[2]",
		"```\n[3]\n```":     "[3]",
		"  [4]  ":           "[4]",
	}
	for in, expected := range cases {
		if got := stripCodeFences(in); got != expected {
			t.Fatalf("stripCodeFences(%q) expected %q, got %q", in, expected, got)
		}
	}
}

func TestRedisCache(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS to run against Redis")
	}
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client)
	if err := cache.Set(ctx, "test-key", "[1]", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if v, ok, err := cache.Get(ctx, "test-key"); err != nil || !ok || v != "[1]" {
		t.Fatalf("expected cached value, got %q %v %v", v, ok, err)
	}
	if err := cache.Evict(ctx, "test-key"); err != nil {
		t.Fatalf("Evict error: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "test-key"); ok {
		t.Fatalf("expected key to be evicted")
	}
}
