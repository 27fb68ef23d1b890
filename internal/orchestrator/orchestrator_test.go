package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unpackr/unpackr/internal/config"
	"github.com/unpackr/unpackr/internal/pipeline"
)

func testConfig(t *testing.T, src, dst string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SourceRoot = src
	cfg.DestinationRoot = dst
	return &cfg
}

func writeFixture(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
}

func TestDiscoverOrdersFoldersOldestModTimeFirst(t *testing.T) {
	src := t.TempDir()

	older := filepath.Join(src, "older")
	newer := filepath.Join(src, "newer")
	if err := os.Mkdir(older, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Mkdir(newer, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	past := time.Now().Add(-24 * time.Hour)
	future := time.Now()
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(newer, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	folders, err := discover(src)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("expected 2 folders, got %d", len(folders))
	}
	if folders[0] != older || folders[1] != newer {
		t.Fatalf("expected oldest-first ordering [older, newer], got %v", folders)
	}
}

func TestDiscoverIgnoresTopLevelFiles(t *testing.T) {
	src := t.TempDir()
	writeFixture(t, src, "stray.txt", 10)
	if err := os.Mkdir(filepath.Join(src, "release"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	folders, err := discover(src)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(folders) != 1 || filepath.Base(folders[0]) != "release" {
		t.Fatalf("expected only the subdirectory to be discovered, got %v", folders)
	}
}

func TestExecuteProcessesEachDiscoveredFolderAndCleansJunk(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	cfg := testConfig(t, src, dst)

	junkA := filepath.Join(src, "junk-a")
	junkB := filepath.Join(src, "junk-b")
	if err := os.Mkdir(junkA, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Mkdir(junkB, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, junkA, "release.nfo", 10)
	writeFixture(t, junkB, "release.sfv", 10)

	run := New(cfg, pipeline.Tools{})
	result := run.Execute(context.Background(), false)

	if len(result.Folders) != 2 {
		t.Fatalf("expected 2 folder results, got %d", len(result.Folders))
	}
	for _, fr := range result.Folders {
		if fr.FinalState != pipeline.StateDeleted {
			t.Fatalf("expected both junk folders to be Deleted, got %s for %s", fr.FinalState, fr.Path)
		}
	}
	if _, err := os.Stat(junkA); !os.IsNotExist(err) {
		t.Fatalf("expected junk-a to be removed")
	}
	if _, err := os.Stat(junkB); !os.IsNotExist(err) {
		t.Fatalf("expected junk-b to be removed")
	}
	if run.Stats.FoldersCleaned.Load() != 2 {
		t.Fatalf("expected FoldersCleaned=2, got %d", run.Stats.FoldersCleaned.Load())
	}
}

func TestPlanOnlyNeverMutatesAnyDiscoveredFolder(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	cfg := testConfig(t, src, dst)

	junk := filepath.Join(src, "junk")
	if err := os.Mkdir(junk, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, junk, "release.nfo", 10)

	run := New(cfg, pipeline.Tools{})
	plan := run.Plan(context.Background())

	if len(plan) == 0 {
		t.Fatalf("expected at least one planned action for a junk folder")
	}
	if _, err := os.Stat(junk); err != nil {
		t.Fatalf("expected plan-only to leave the folder untouched: %v", err)
	}
}

func TestExecutePreservesMusicCollection(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	cfg := testConfig(t, src, dst)

	music := filepath.Join(src, "Album")
	if err := os.Mkdir(music, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i := 0; i < cfg.MinMusicFiles; i++ {
		writeFixture(t, music, string(rune('a'+i))+".mp3", 1024)
	}

	run := New(cfg, pipeline.Tools{})
	result := run.Execute(context.Background(), false)

	if len(result.Folders) != 1 || result.Folders[0].FinalState != pipeline.StatePreserved {
		t.Fatalf("expected the music folder to be Preserved, got %+v", result.Folders)
	}
	if _, err := os.Stat(music); err != nil {
		t.Fatalf("expected the preserved folder to remain on disk: %v", err)
	}
}

func TestExecuteStopsAtGlobalRuntimeBudget(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	cfg := testConfig(t, src, dst)
	cfg.GlobalRuntimeBudget = 1 * time.Nanosecond // exhausted by the time Execute runs

	if err := os.Mkdir(filepath.Join(src, "junk"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	run := New(cfg, pipeline.Tools{})
	result := run.Execute(context.Background(), false)

	if len(result.Folders) != 0 {
		t.Fatalf("expected zero folders processed once the global budget is exhausted, got %d", len(result.Folders))
	}
}

func TestReportRetryFailuresFormatsEachEntry(t *testing.T) {
	report := ReportRetryFailures(nil)
	if report != "" {
		t.Fatalf("expected empty report for zero failures, got %q", report)
	}

	report = ReportRetryFailures([]RetryFailure{{Path: "/src/R1", Reason: "permission denied"}})
	if report == "" {
		t.Fatalf("expected a non-empty report for one failure")
	}
}
