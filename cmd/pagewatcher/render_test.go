package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"PageWatcher/internal/domain"
	"PageWatcher/internal/usecase"
)

func TestRenderListing(t *testing.T) {
	t.Parallel()

	checked := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	renderListing(&buf, []usecase.Listing{
		{Position: 1, URL: "https://example.com"},
		{Position: 2, URL: "https://example.org", Rule: "main", LastCheckedAt: &checked},
	})

	out := buf.String()
	for _, want := range []string{"https://example.com", "never", "https://example.org", "main"} {
		if !strings.Contains(out, want) {
			t.Fatalf("listing %q missing %q", out, want)
		}
	}
}

func TestRenderOutcomes(t *testing.T) {
	t.Parallel()

	failed := domain.CheckFailed("https://broken.example", time.Now(), "HTTP status 503")
	var buf bytes.Buffer
	renderOutcomes(&buf, []domain.CheckOutcome{
		{Resource: domain.TrackedResource{URL: "https://broken.example"}, Event: &failed, Err: errors.New("fetch failed")},
	})

	out := buf.String()
	if !strings.Contains(out, "check_failed") || !strings.Contains(out, "HTTP status 503") {
		t.Fatalf("unexpected outcome table %q", out)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	for _, name := range []string{"serve", "add", "list", "remove", "check", "pause", "resume", "migrate"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q not registered: %v", name, err)
		}
	}
}
