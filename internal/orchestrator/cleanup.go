package orchestrator

import (
	"fmt"
	"strings"

	"github.com/unpackr/unpackr/internal/logger"
	"github.com/unpackr/unpackr/internal/pipeline"
)

// retryCandidates selects the folders from one orchestrator pass that
// the Folder Pipeline could not remove outright — CleanupPhase reached
// eligibility re-check but RemoveAll failed, or the folder was marked
// Errored after reaching CleanupPhase. A folder that errored before ever
// reaching cleanup (e.g. a SoftFail during parity or extraction) was
// never a deletion candidate in the first place, so it is excluded here
// even though its FinalState is also Errored — including it would only
// surface it in the end-of-run undeletable-folder report as a spurious
// failure. Preserved, Skipped, and cleanly Deleted folders are never
// retried (spec §4.8 only concerns folders that were supposed to be
// deletable).
func retryCandidates(results []pipeline.FolderResult) []string {
	var candidates []string
	for _, fr := range results {
		if !fr.ReachedCleanup {
			continue
		}
		if fr.FinalState == pipeline.StateCleanup || fr.FinalState == pipeline.StateErrored {
			candidates = append(candidates, fr.Path)
		}
	}
	return candidates
}

// ReportRetryFailures renders the folders the Cleanup/Retry pass still
// could not remove after exhausting its attempts, for the end-of-run
// summary (spec §7, "reported but not fatal").
func ReportRetryFailures(failures []RetryFailure) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d folder(s) remain undeletable after retry:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(&b, "  %s: %s\n", logger.FolderID(f.Path), f.Reason)
	}
	return b.String()
}
