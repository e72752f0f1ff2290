package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/config"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/store/memory"
)

func TestOpenRotationStoreFallsBackToMemory(t *testing.T) {
	logger, hook := test.NewNullLogger()

	rs, closers, err := openRotationStore(context.Background(), config.Config{RotationKey: "promo"}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, ok := rs.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", rs)
	}
	if len(closers) != 0 {
		t.Fatalf("memory store needs no closers")
	}
	if hook.LastEntry() == nil || hook.LastEntry().Data["store"] != "memory" {
		t.Fatalf("expected store selection to be logged")
	}
}

func TestOpenSummaryCacheHonoursZeroTTL(t *testing.T) {
	logger, _ := test.NewNullLogger()

	c, _ := openSummaryCache(context.Background(), config.Config{DashboardCacheTTLSeconds: 0}, logger)
	if _, ok := c.(cache.NoopSummaryCache); !ok {
		t.Fatalf("expected noop cache for zero ttl, got %T", c)
	}
	c, _ = openSummaryCache(context.Background(), config.Config{DashboardCacheTTLSeconds: 30}, logger)
	if _, ok := c.(*cache.MemorySummaryCache); !ok {
		t.Fatalf("expected memory cache without redis, got %T", c)
	}
}

func TestWriteRotation(t *testing.T) {
	var buf bytes.Buffer
	snap := domain.RotationSnapshot{
		Codes: []domain.PromotionalCode{
			{Code: "WELCOME10", Percentage: 10, Title: "Welcome"},
			{Code: "FLASH20", Percentage: 20, Title: "Flash Sale"},
		},
		ExpiresAt: time.Date(2026, 4, 10, 14, 0, 0, 0, time.UTC),
		Countdown: "01:59:59",
	}
	if err := writeRotation(&buf, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"WELCOME10", "FLASH20", "next rotation in 01:59:59", "2026-04-10T14:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAppRegistersCommands(t *testing.T) {
	app := newApp()
	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	if !names["serve"] || !names["rotation"] {
		t.Fatalf("expected serve and rotation commands, got %v", names)
	}
}
