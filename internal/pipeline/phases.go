package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unpackr/unpackr/internal/archive"
	"github.com/unpackr/unpackr/internal/classifier"
	"github.com/unpackr/unpackr/internal/outcome"
	"github.com/unpackr/unpackr/internal/parity"
	"github.com/unpackr/unpackr/internal/safety"
	"github.com/unpackr/unpackr/internal/video"
)

func sortedNames(names []string) []string {
	cp := append([]string(nil), names...)
	sort.Strings(cp)
	return cp
}

// releaseDestDir is where this release's extraction output and final
// moved video land. Both Write-File (extraction) and Move-File targets
// resolve underneath it, satisfying invariant I1's requirement that
// both kinds' destinations lie within the configured destination root —
// this pipeline never stages extraction output inside the source tree.
func (r *run) releaseDestDir() string {
	return filepath.Join(r.cfg.DestinationRoot, filepath.Base(r.folder.Path))
}

// runParity implements spec §4.3: find this folder's parity set (if
// any), invoke the parity tool, and interpret its output. It performs no
// deletions itself — the parity-unrecoverable archive deletion happens
// in cleanup, where Delete-File is a legal operation (invariant I7).
func (r *run) runParity() (outcome.Outcome, parity.Verdict) {
	var parityNames []string
	var total int64
	for _, name := range r.folder.EntryNames {
		if archive.IsParityMember(name) {
			parityNames = append(parityNames, name)
			total += r.folder.EntrySizes[name]
		}
	}
	if len(parityNames) == 0 {
		return outcome.Ok(), ""
	}
	sort.Strings(parityNames)

	if r.tools.Parity == nil {
		return outcome.SoftFail("parity-tool-unavailable", nil), ""
	}
	if r.planOnly {
		// Repairing a parity set mutates archive files in place; a
		// plan-only pass must never invoke it.
		return outcome.Ok(), ""
	}

	set := parity.Set{
		IndexFile:        r.absPath(parityNames[0]),
		CompanionVolumes: parityNames[1:],
		TotalBytes:       total,
	}

	var verdict parity.Verdict
	if r.cfg.DryRun {
		// Repair mutates archive files in place when a set is
		// damaged-but-recoverable; dry-run must suppress that (spec §3)
		// while still reaching the same verdict (spec §8 P8), so it
		// calls the non-mutating verify verb instead.
		verdict, _ = parity.RunVerifyOnly(r.ctx, r.tools.Parity, set)
	} else {
		verdict, _ = parity.Run(r.ctx, r.tools.Parity, set)
	}

	switch verdict {
	case parity.VerifiedClean:
		return outcome.Ok(), verdict
	case parity.Repaired:
		r.stats.ParityRepairsOK.Add(1)
		return outcome.Ok(), verdict
	case parity.Unrecoverable:
		r.stats.ParityRepairsFailed.Add(1)
		return outcome.Ok(), verdict
	default:
		return outcome.SoftFail("parity-inconclusive", nil), verdict
	}
}

// runExtractLoop implements spec §4.4/§4.2's extraction loop: group
// archive members into sets, validate each set's listing, extract the
// canonical first member, and repeat while new archive files keep
// appearing in the output — bounded by archive_extraction_loop_limit
// (invariant I4).
func (r *run) runExtractLoop() outcome.Outcome {
	hasArchive := false
	for _, n := range r.folder.EntryNames {
		if archive.IsArchiveMember(n) {
			hasArchive = true
			break
		}
	}
	if !hasArchive {
		return outcome.Ok()
	}
	if r.tools.Extractor == nil {
		return outcome.SoftFail("extractor-tool-unavailable", nil)
	}

	destDir := r.releaseDestDir()
	processed := make(map[string]bool)

	// Round 1 always groups the original source-folder listing. Later
	// rounds look only at the extraction output directory, for archives
	// a previous round's extraction revealed nested inside it — rescanning
	// the source folder every round would re-discover the very same
	// top-level archive set forever, since its members aren't deleted
	// until CleanupPhase.
	scanDir := r.folder.Path
	names, sizes := r.folder.EntryNames, r.folder.EntrySizes

	for {
		sets := archive.GroupSets(names, sizes)

		anyExtracted := false
		for _, set := range sets {
			if processed[set.FirstMember] {
				continue
			}
			if set.Incomplete {
				// Never passed to the extractor. The folder is marked
				// errored here, so cleanup never runs and no archive
				// member of this or any other set is deleted.
				return outcome.SoftFail("archive-set-incomplete", nil)
			}

			r.extractionRound++
			if r.extractionRound > r.cfg.ArchiveLoopLimit {
				return outcome.HardFail("I4", nil)
			}
			firstPath := filepath.Join(scanDir, set.FirstMember)
			processed[set.FirstMember] = true

			if r.planOnly {
				r.planned = append(r.planned, PlannedAction{
					Kind: safety.WriteFile, Target: firstPath, Destination: destDir, Reason: safety.ReasonExtractionVerified,
				})
				continue
			}

			if err := os.MkdirAll(destDir, 0o755); err != nil {
				return outcome.SoftFail("staging-dir-create-failed", err)
			}

			_, listOc := archive.ValidateListing(r.ctx, r.tools.Extractor, firstPath, destDir)
			if !listOc.IsOk() {
				r.stats.ArchivesFailed.Add(1)
				return listOc
			}

			extractOc := archive.Extract(r.ctx, r.tools.Extractor, r.inv, set, firstPath, destDir, r.extractionRound)
			if extractOc.IsHardFail() {
				return extractOc
			}
			if !extractOc.IsOk() {
				r.stats.ArchivesFailed.Add(1)
				return extractOc
			}
			r.stats.ArchivesExtracted.Add(1)
			r.extractionOK = true
			anyExtracted = true
		}

		if r.planOnly || !anyExtracted {
			break
		}

		// Look for a nested archive the extraction just revealed.
		fresh, err := classifier.Scan(r.cfg, destDir)
		if err != nil {
			return outcome.SoftFail("rescan-failed", err)
		}
		scanDir = destDir
		names, sizes = fresh.EntryNames, fresh.EntrySizes
	}
	return outcome.Ok()
}

// runValidate implements spec §4.5: probe and decode-check every video
// found either in the extraction output (if extraction ran) or in the
// source folder itself (a loose video with no archive). Rejected videos
// are deleted immediately with their specific reason code; Pass videos
// are left in place for MovePhase; Unknown verdicts are left untouched,
// fail-closed per spec §7.
func (r *run) runValidate() outcome.Outcome {
	dir := r.folder.Path
	if r.extractionOK {
		dir = r.releaseDestDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return outcome.SoftFail("validate-scan-failed", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	probeFn := video.FromProber(r.tools.Prober)
	decodeFn := video.FromDecoder(r.tools.Decoder, 30)

	for _, name := range names {
		if r.ctx.Err() != nil {
			return outcome.Cancelled()
		}

		ext := strings.ToLower(filepath.Ext(name))
		if !r.cfg.IsVideo(ext) {
			continue
		}
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}

		artifact := video.Artifact{Path: full, Size: info.Size()}
		result := video.Validate(r.ctx, artifact, r.cfg.MinSampleSizeBytes, probeFn, decodeFn)
		r.videoResults = append(r.videoResults, videoResultsKey{artifact: artifact, result: result})
		r.stats.VideosFound.Add(1)

		switch result.Verdict {
		case video.Pass:
			// left in place; moved in runMove.
		case video.Unknown:
			// fail-closed: neither moved nor deleted (spec §7).
		default:
			op := safety.FileOperation{
				Kind: safety.DeleteFile, Target: full, Phase: safety.PhaseValidate, Reason: reasonForVerdict(result),
			}
			exec, _ := r.enforceAndRecord(op)
			if exec {
				if err := os.Remove(full); err != nil {
					return outcome.SoftFail("video-delete-failed", err)
				}
			}
			r.stats.VideosRejected.Add(1)
		}
	}
	return outcome.Ok()
}

func reasonForVerdict(result video.Result) safety.ReasonCode {
	switch result.Reason {
	case "below-sample-threshold":
		return safety.ReasonBelowSampleThreshold
	case "validation-failed-truncated":
		return safety.ReasonValidationFailedTruncated
	case "too-small":
		return safety.ReasonValidationFailedTooSmall
	case "too-short":
		return safety.ReasonValidationFailedTooShort
	default:
		return safety.ReasonValidationFailedCorrupt
	}
}

// runMove implements spec §4.2's MovePhase: relocate every Pass video
// to its final destination path.
func (r *run) runMove() outcome.Outcome {
	destDir := r.releaseDestDir()
	if !r.planOnly && !r.cfg.DryRun {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return outcome.SoftFail("destination-dir-create-failed", err)
		}
	}

	for _, vr := range r.videoResults {
		if vr.result.Verdict != video.Pass {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(vr.artifact.Path))
		op := safety.FileOperation{
			Kind: safety.MoveFile, Destination: dest, Phase: safety.PhaseMove, Reason: safety.ReasonValidatedVideoMove,
			TargetIsVideoWithPassVerdict: true,
		}
		exec, decision := r.enforceAndRecord(op)
		if !decision.Allowed {
			continue
		}
		if !exec {
			continue
		}
		if vr.artifact.Path != dest {
			if err := os.Rename(vr.artifact.Path, dest); err != nil {
				return outcome.SoftFail("video-move-failed", err)
			}
		}
		r.movedVideos = append(r.movedVideos, dest)
		r.stats.VideosMoved.Add(1)
		r.stats.BytesMoved.Add(vr.artifact.Size)
	}
	return outcome.Ok()
}

// cleanup implements spec §4.8: delete junk, then archive members (only
// once P4 is satisfied), then parity files, then re-check deletion
// eligibility against the real filesystem state immediately before
// deleting the folder itself — defeating the classification-time /
// delete-time race the spec calls out explicitly.
func (r *run) cleanup() outcome.Outcome {
	r.reachedCleanup = true
	fresh, err := classifier.Scan(r.cfg, r.folder.Path)
	if err != nil {
		return outcome.SoftFail("rescan-failed", err)
	}

	for _, name := range sortedNames(fresh.EntryNames) {
		ext := strings.ToLower(filepath.Ext(name))
		if !r.cfg.IsRemovable(ext) {
			continue
		}
		abs := filepath.Join(r.folder.Path, name)
		op := safety.FileOperation{Kind: safety.DeleteFile, Target: abs, Phase: safety.PhaseCleanup, Reason: safety.ReasonJunkExtension}
		exec, _ := r.enforceAndRecord(op)
		if exec {
			if err := os.Remove(abs); err != nil {
				return outcome.SoftFail("junk-delete-failed", err)
			}
			r.stats.JunkFilesRemoved.Add(1)
		}
	}

	canDeleteArchives := r.extractionOK || r.parityVerdict == parity.Unrecoverable
	if canDeleteArchives {
		reason := safety.ReasonExtractionVerified
		if r.parityVerdict == parity.Unrecoverable {
			reason = safety.ReasonParityUnrecoverable
		}
		for _, name := range sortedNames(fresh.EntryNames) {
			if !archive.IsArchiveMember(name) {
				continue
			}
			abs := filepath.Join(r.folder.Path, name)
			op := safety.FileOperation{
				Kind: safety.DeleteFile, Target: abs, Phase: safety.PhaseCleanup, Reason: reason,
				ArchiveMemberExtractionVerified:  r.extractionOK,
				ArchiveMemberParityUnrecoverable: r.parityVerdict == parity.Unrecoverable,
			}
			exec, _ := r.enforceAndRecord(op)
			if exec {
				if err := os.Remove(abs); err != nil {
					return outcome.SoftFail("archive-delete-failed", err)
				}
			}
		}
		r.archiveDeleted = true
	}

	for _, name := range sortedNames(fresh.EntryNames) {
		if !archive.IsParityMember(name) {
			continue
		}
		abs := filepath.Join(r.folder.Path, name)
		op := safety.FileOperation{Kind: safety.DeleteFile, Target: abs, Phase: safety.PhaseCleanup, Reason: safety.ReasonEmptyAfterProcessing}
		exec, _ := r.enforceAndRecord(op)
		if exec {
			if err := os.Remove(abs); err != nil {
				return outcome.SoftFail("parity-delete-failed", err)
			}
		}
	}

	final, err := classifier.Scan(r.cfg, r.folder.Path)
	if err != nil {
		return outcome.SoftFail("rescan-failed", err)
	}
	if final.VideoCount > 0 || final.ArchiveCount > 0 {
		return outcome.SoftFail("folder-not-eligible-for-deletion", nil)
	}

	op := safety.FileOperation{Kind: safety.DeleteFolder, Target: r.folder.Path, Phase: safety.PhaseCleanup, Reason: safety.ReasonEmptyAfterProcessing}
	exec, _ := r.enforceAndRecord(op)
	if !exec {
		return outcome.Ok()
	}
	if err := os.RemoveAll(r.folder.Path); err != nil {
		return outcome.SoftFail("folder-delete-failed", err)
	}
	r.stats.FoldersCleaned.Add(1)
	return outcome.Ok()
}
