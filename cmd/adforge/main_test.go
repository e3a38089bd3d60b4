package main

import (
	"strings"
	"testing"

	"adforge/internal/api"
	"adforge/internal/watch"
)

func TestParseKeyValues(t *testing.T) {
	values, err := parseKeyValues([]string{"tone=energetic", "video_model = reel-motion-v2"})
	if err != nil {
		t.Fatalf("parseKeyValues: %v", err)
	}
	if values["tone"] != "energetic" || values["video_model"] != "reel-motion-v2" {
		t.Fatalf("values = %v", values)
	}

	if _, err := parseKeyValues([]string{"toneenergetic"}); err == nil {
		t.Fatal("expected error for missing separator")
	}
	if _, err := parseKeyValues([]string{"=value"}); err == nil {
		t.Fatal("expected error for empty key")
	}
	values, err = parseKeyValues(nil)
	if err != nil || values != nil {
		t.Fatalf("empty input: %v %v", values, err)
	}
}

func TestFormatCost(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{145, "$1.45"},
		{120000, "$1200.00"},
	}
	for _, tc := range cases {
		if got := formatCost(tc.minor); got != tc.want {
			t.Errorf("formatCost(%d) = %s, want %s", tc.minor, got, tc.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	snap := &api.ProgressSnapshot{Stage: "broll_generation", Completed: 3, Total: 6, Percent: 50, Generating: 2, Failed: 1}
	got := formatProgress(snap)
	for _, want := range []string{"broll_generation", "3/6", "50%", "2 generating", "1 failed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("formatProgress = %q missing %q", got, want)
		}
	}

	gate := &api.ProgressSnapshot{Stage: "script_review", CurrentStep: "Script Review"}
	if got := formatProgress(gate); !strings.Contains(got, "Script Review") {
		t.Fatalf("gate progress = %q", got)
	}
}

func TestFormatUpdateWithoutProgress(t *testing.T) {
	update := watch.Update{Project: &api.ProjectSnapshot{Title: "Soda", StageLabel: "Casting Review"}}
	got := formatUpdate(update)
	if !strings.Contains(got, "Soda") || !strings.Contains(got, "Casting Review") {
		t.Fatalf("formatUpdate = %q", got)
	}
}

func TestRootCommandWiring(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"project", "approve", "retry", "rollback", "restart", "settings", "impact", "progress", "watch", "status", "config"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub == cmd {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}
