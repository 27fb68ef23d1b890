// Package pipeline implements the Folder Pipeline: the per-release state
// machine driving one SourceFolder from Discovered through to a terminal
// state, calling the Parity Engine, Archive Engine, and Video Validator
// in order, guarded at every destructive step by the Safety Invariants.
//
// Grounded on the teacher's internal/engine.Engine: that engine drove a
// worker pool of parallel deletions reporting a single DeletionResult.
// This package keeps the same "phase function returns a typed result,
// caller decides whether to continue" shape but replaces the parallel
// worker pool with a strictly sequential state machine over one folder
// (spec §5's serial-processing Non-goal), and DeletionResult's
// success/failure counts with the outcome.Outcome tagged result used
// throughout this codebase.
package pipeline

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/unpackr/unpackr/internal/classifier"
	"github.com/unpackr/unpackr/internal/config"
	"github.com/unpackr/unpackr/internal/logger"
	"github.com/unpackr/unpackr/internal/outcome"
	"github.com/unpackr/unpackr/internal/parity"
	"github.com/unpackr/unpackr/internal/runner"
	"github.com/unpackr/unpackr/internal/safety"
	"github.com/unpackr/unpackr/internal/stats"
	"github.com/unpackr/unpackr/internal/video"
)

// State is one node of the Folder Pipeline state machine (spec §4.2).
type State string

const (
	StateDiscovered State = "Discovered"
	StateScanning   State = "Scanning"
	StateClassified State = "Classified"
	StateParity     State = "ParityPhase"
	StateExtract    State = "ExtractPhase"
	StateValidate   State = "ValidatePhase"
	StateMove       State = "MovePhase"
	StateCleanup    State = "CleanupPhase"
	StateDeleted    State = "Deleted"
	StatePreserved  State = "Preserved"
	StateSkipped    State = "Skipped"
	StateErrored    State = "Errored"
)

// Tools bundles the four external-tool capability interfaces the
// pipeline drives, per the Design Note "Polymorphism over external
// tools". Any field may be nil, meaning that tool family is not
// configured — callers must tolerate this (spec §7's fail-closed
// Unknown-verdict path for the media probe/decoder).
type Tools struct {
	Extractor runner.Extractor
	Parity    runner.ParityTool
	Prober    runner.Prober
	Decoder   runner.Decoder
}

// PlannedAction is a read-only projection of a destructive operation the
// pipeline would perform, for the --plan-only CLI surface (spec §6, and
// SPEC_FULL.md's supplemented Plan() feature). It never triggers
// execution.
type PlannedAction struct {
	Kind        safety.Kind
	Target      string
	Destination string
	Reason      safety.ReasonCode
}

// FolderResult is what Run returns: the final state reached and the
// outcome that produced it.
type FolderResult struct {
	Path        string
	FinalState  State
	Outcome     outcome.Outcome
	MovedVideos []string
	PlannedOps  []PlannedAction

	// ReachedCleanup is true once this folder's cleanup phase actually
	// ran the eligibility re-check (spec §4.8), distinguishing an Errored
	// folder that failed mid-cleanup from one that errored earlier and
	// was never a deletion candidate at all (orchestrator retry scoping).
	ReachedCleanup bool
}

// run carries the mutable state threaded through one folder's phases.
// It is never shared across folders — spec §9's "no cyclic graphs, no
// back-references" ownership rule.
type run struct {
	ctx   context.Context
	cfg   *config.Config
	inv   *safety.Invariants
	stats *stats.Statistics
	tools Tools

	folder *classifier.SourceFolder
	runID  string
	planOnly bool

	state State
	planned []PlannedAction

	extractionRound int
	archiveDeleted   bool // archives already removed, either here or in cleanup
	extractionOK     bool
	parityVerdict    parity.Verdict
	videoResults     []videoResultsKey
	movedVideos      []string
	reachedCleanup   bool
}

// Run drives sf through the full state machine and returns its final
// outcome. planOnly, when true, records a PlannedAction for each
// operation it reaches but performs no destructive operation regardless
// of cfg.DryRun (plan-only is stricter than dry-run: it never even
// queries free space or invokes a subprocess that could have side
// effects). Plan-only never extracts, so the plan holds the extraction
// step itself but nothing that depends on its output: no validation or
// move of extracted videos, no archive-member deletion after a verified
// extraction, and no deletion of a folder that still holds archive
// members.
func Run(ctx context.Context, cfg *config.Config, inv *safety.Invariants, st *stats.Statistics, tools Tools, sf *classifier.SourceFolder, runID string, planOnly bool) FolderResult {
	r := &run{
		ctx: ctx, cfg: cfg, inv: inv, stats: st, tools: tools,
		folder: sf, runID: runID, planOnly: planOnly,
		state: StateDiscovered,
	}

	r.transition(StateScanning)
	r.transition(StateClassified)

	switch sf.Tag {
	case classifier.TagPreserveContent:
		r.transition(StatePreserved)
		st.FoldersPreserved.Add(1)
		return r.result(outcome.Ok())
	case classifier.TagSkip:
		r.transition(StateSkipped)
		st.FoldersSkipped.Add(1)
		return r.result(outcome.Ok())
	case classifier.TagJunk:
		r.transition(StateCleanup)
		oc := r.cleanup()
		return r.result(oc)
	}

	// TagProcessRelease: parity -> extract -> validate -> move -> cleanup.
	r.transition(StateParity)
	parityOc, verdict := r.runParity()
	r.parityVerdict = verdict
	if parityOc.IsCancelled() {
		return r.result(parityOc)
	}
	if parityOc.IsHardFail() {
		r.transition(StateErrored)
		return r.result(parityOc)
	}

	if verdict == parity.Unrecoverable {
		// No extraction attempted; archives are removed in cleanup once
		// CleanupPhase makes Delete-File legal again (invariant I7).
		r.transition(StateCleanup)
		cleanupOc := r.cleanup()
		return r.result(cleanupOc)
	}
	if !parityOc.IsOk() {
		r.transition(StateErrored)
		return r.result(parityOc)
	}

	r.transition(StateExtract)
	extractOc := r.runExtractLoop()
	if extractOc.IsCancelled() {
		return r.result(extractOc)
	}
	if extractOc.IsHardFail() {
		r.transition(StateErrored)
		return r.result(extractOc)
	}
	if !extractOc.IsOk() {
		r.transition(StateErrored)
		return r.result(extractOc)
	}

	r.transition(StateValidate)
	validateOc := r.runValidate()
	if validateOc.IsCancelled() {
		return r.result(validateOc)
	}
	if !validateOc.IsOk() {
		r.transition(StateErrored)
		return r.result(validateOc)
	}

	if r.hasPassingVideo() {
		r.transition(StateMove)
		moveOc := r.runMove()
		if !moveOc.IsOk() {
			r.transition(StateErrored)
			return r.result(moveOc)
		}
	}

	r.transition(StateCleanup)
	cleanupOc := r.cleanup()
	return r.result(cleanupOc)
}

// hasPassingVideo implements spec §4.2's MovePhase entry gate: a folder
// enters MovePhase only if at least one VideoArtifact has verdict Pass.
func (r *run) hasPassingVideo() bool {
	for _, vr := range r.videoResults {
		if vr.result.Verdict == video.Pass {
			return true
		}
	}
	return false
}

func (r *run) transition(to State) {
	r.state = to
}

func (r *run) result(oc outcome.Outcome) FolderResult {
	final := r.state
	terminal := final == StateDeleted || final == StatePreserved || final == StateSkipped || final == StateErrored
	if !oc.IsOk() && !oc.IsCancelled() && !terminal {
		final = StateErrored
	}
	if final == StateCleanup && oc.IsOk() {
		final = StateDeleted
	}
	if final == StateErrored {
		r.stats.FoldersErrored.Add(1)
	}
	return FolderResult{
		Path:           r.folder.Path,
		FinalState:     final,
		Outcome:        oc,
		MovedVideos:    r.movedVideos,
		PlannedOps:     r.planned,
		ReachedCleanup: r.reachedCleanup,
	}
}

// folderID returns the opaque, non-reversible folder identifier used in
// every audit record (spec §6).
func (r *run) folderID() string { return logger.FolderID(r.folder.Path) }

func (r *run) audit(phase string, kind safety.Kind, reason safety.ReasonCode, decision safety.Decision) {
	out := "refused"
	if decision.Allowed {
		out = "executed"
		if r.planOnly {
			out = "planned"
		} else if r.cfg.DryRun {
			out = "dry-run"
		}
	}
	logger.Audit(logger.Record{
		RunID:     r.runID,
		FolderID:  r.folderID(),
		Phase:     phase,
		Operation: string(kind),
		Reason:    string(reason),
		Outcome:   out,
		Detail:    decision.Reason,
	})
}

// enforceAndRecord runs op through the safety invariants, records the
// planned action, logs the audit record, and — unless this is a
// plan-only or dry-run pass and the decision allowed the operation —
// returns whether the caller should actually perform the filesystem
// side effect.
func (r *run) enforceAndRecord(op safety.FileOperation) (shouldExecute bool, decision safety.Decision) {
	decision = r.inv.Enforce(op)
	r.audit(op.Phase, op.Kind, op.Reason, decision)

	if !decision.Allowed {
		r.stats.RecordViolation(decision.Violation)
		return false, decision
	}

	r.planned = append(r.planned, PlannedAction{Kind: op.Kind, Target: op.Target, Destination: op.Destination, Reason: op.Reason})

	if r.planOnly || r.cfg.DryRun {
		return false, decision
	}
	return true, decision
}

// sortedEntryNames returns the folder's top-level entries in
// lexicographic order, per spec §5's determinism requirement for
// operations over multiple items within a phase.
func (r *run) sortedEntryNames() []string {
	names := append([]string(nil), r.folder.EntryNames...)
	sort.Strings(names)
	return names
}

func (r *run) absPath(name string) string {
	return filepath.Join(r.folder.Path, name)
}

// videoResultsKey pairs a probed video artifact with its validator
// verdict, threaded between ValidatePhase and MovePhase.
type videoResultsKey struct {
	artifact video.Artifact
	result   video.Result
}
