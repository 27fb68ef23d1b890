// Package orchestrator implements the Run Orchestrator: the top-level
// driver that pre-scans a source root, walks its immediate subfolders
// oldest-first, dispatches each one to the Folder Pipeline in strict
// sequence, and runs the Cleanup/Retry pass over whatever is left
// undeletable at the end.
//
// Grounded on the teacher's cmd/fast-file-deletion/main.go (the
// scanAndConfirm -> createEngine -> Delete -> displayResults sequence)
// and internal/engine.Engine's top-level Delete method, here
// generalized from "one parallel sweep over a flat file list" to "one
// sequential sweep over a folder tree, oldest modification time first"
// (spec §5's serial-processing model replaces the teacher's worker
// pool entirely).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/unpackr/unpackr/internal/classifier"
	"github.com/unpackr/unpackr/internal/config"
	"github.com/unpackr/unpackr/internal/logger"
	"github.com/unpackr/unpackr/internal/pipeline"
	"github.com/unpackr/unpackr/internal/safety"
	"github.com/unpackr/unpackr/internal/stats"
)

// Run is one invocation of the orchestrator: its run id, immutable
// config, safety invariants, and the tool set the pipeline drives.
// Never shared or reused across invocations — a fresh Run is created
// per CLI execution, mirroring the teacher's one-Config-per-process
// shape.
type Run struct {
	RunID string
	Cfg   *config.Config
	Inv   *safety.Invariants
	Stats *stats.Statistics
	Tools pipeline.Tools
}

// New creates a Run with a fresh run id and a Statistics tracker
// started now.
func New(cfg *config.Config, tools pipeline.Tools) *Run {
	return &Run{
		RunID: uuid.New().String(),
		Cfg:   cfg,
		Inv:   safety.New(cfg.SourceRoot, cfg.DestinationRoot, cfg.ArchiveLoopLimit, cfg.GlobalRuntimeBudget, cfg.StrictInvariants),
		Stats: stats.New(),
		Tools: tools,
	}
}

// Result is the outcome of a complete orchestrator pass: every
// per-folder result plus whatever the Cleanup/Retry pass still
// couldn't remove.
type Result struct {
	Folders       []pipeline.FolderResult
	RetryFailures []RetryFailure
	Cancelled     bool
}

// discover lists the immediate subdirectories of root (hidden ones
// included) and
// orders them oldest-modification-time first (spec §5, "Ordering
// guarantees"), so in-progress downloads — which sort newest — are
// processed last and are least likely to be disturbed mid-write.
func discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading source root: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warning("cannot stat folder %s: %v", entry.Name(), err)
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(root, entry.Name()), modTime: info.ModTime()})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].path < candidates[j].path
		}
		return candidates[i].modTime.Before(candidates[j].modTime)
	})

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	return paths, nil
}

// Execute drives every discovered source folder through the Folder
// Pipeline in order, then runs the Cleanup/Retry pass (spec §4.8) over
// folders the pipeline left undeletable. planOnly suppresses every
// destructive operation regardless of cfg.DryRun and returns the
// pre-flight plan instead (the "Plan-only output as a structured
// value" feature, SPEC_FULL.md §D.1).
func (r *Run) Execute(ctx context.Context, planOnly bool) Result {
	folders, err := discover(r.Cfg.SourceRoot)
	if err != nil {
		logger.Error("pre-scan of source root failed: %v", err)
		return Result{}
	}

	var results []pipeline.FolderResult

	for _, folderPath := range folders {
		select {
		case <-ctx.Done():
			return Result{Folders: results, Cancelled: true}
		default:
		}

		if r.Cfg.GlobalRuntimeBudget > 0 && r.Inv.Elapsed() > r.Cfg.GlobalRuntimeBudget {
			logger.Warning("global runtime budget exhausted after %d of %d folders; stopping this run", len(results), len(folders))
			break
		}

		sf, err := classifier.Scan(r.Cfg, folderPath)
		if err != nil {
			logger.Warning("skipping folder %s: scan failed: %v", folderPath, err)
			continue
		}

		fr := pipeline.Run(ctx, r.Cfg, r.Inv, r.Stats, r.Tools, sf, r.RunID, planOnly)
		results = append(results, fr)

		if fr.Outcome.IsCancelled() {
			return Result{Folders: results, Cancelled: true}
		}
	}

	var retryFailures []RetryFailure
	if !planOnly && !r.Cfg.DryRun {
		if candidates := retryCandidates(results); len(candidates) > 0 {
			retryFailures = retryPass(ctx, r.Cfg, candidates, r.Stats)
		}
	}

	return Result{Folders: results, RetryFailures: retryFailures}
}

// Plan runs Execute in plan-only mode and returns the full ordered list
// of PlannedActions across every folder, without performing any
// destructive operation — the pre-flight plan named in SPEC_FULL.md §D.1.
func (r *Run) Plan(ctx context.Context) []pipeline.PlannedAction {
	result := r.Execute(ctx, true)
	var plan []pipeline.PlannedAction
	for _, fr := range result.Folders {
		plan = append(plan, fr.PlannedOps...)
	}
	return plan
}
