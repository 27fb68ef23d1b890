package orchestrator

import (
	"context"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/unpackr/unpackr/internal/classifier"
	"github.com/unpackr/unpackr/internal/config"
	"github.com/unpackr/unpackr/internal/logger"
	"github.com/unpackr/unpackr/internal/stats"
)

// maxRetryQueueSize bounds the Cleanup/Retry pass's working set (spec
// §5, "Bounded resources" — a capped failed-deletion queue, oldest
// entries drop, so a pathological run with thousands of undeletable
// folders cannot grow memory without bound).
const maxRetryQueueSize = 10_000

// retryPasses is the maximum number of retry attempts spec §4.8/§5
// allows per folder.
const retryPasses = 3

// retryBaseDelay is the first backoff interval; each subsequent pass
// doubles it (exponential backoff per spec §4.8).
const retryBaseDelay = 2 * time.Second

// RetryFailure records a folder the Cleanup/Retry pass could not remove
// after exhausting its attempts.
type RetryFailure struct {
	Path   string
	Reason string
}

// retryPass re-checks eligibility and retries deletion for every
// candidate folder, up to retryPasses attempts each with exponentially
// increasing backoff between attempts. A single-weight semaphore gates
// each attempt purely for its cancellable-acquire semantics (Design
// Note grounding: SPEC_FULL.md §B.5) — this does not parallelize
// anything; folders are still drained strictly one at a time.
func retryPass(ctx context.Context, cfg *config.Config, candidates []string, st *stats.Statistics) []RetryFailure {
	if len(candidates) > maxRetryQueueSize {
		dropped := len(candidates) - maxRetryQueueSize
		logger.Warning("retry queue capped at %d entries; dropping %d oldest candidates", maxRetryQueueSize, dropped)
		candidates = candidates[dropped:]
	}

	sem := semaphore.NewWeighted(1)
	var failures []RetryFailure

	for _, path := range candidates {
		select {
		case <-ctx.Done():
			failures = append(failures, RetryFailure{Path: path, Reason: "cancelled before retry"})
			continue
		default:
		}

		ok, reason := retryOne(ctx, cfg, sem, path, st)
		if !ok {
			failures = append(failures, RetryFailure{Path: path, Reason: reason})
		}
	}

	return failures
}

// retryOne attempts up to retryPasses deletions of path, re-checking
// eligibility against live filesystem state before every attempt (the
// same classification-time/delete-time race guard the Folder Pipeline's
// cleanup phase applies, here reapplied because time has passed since
// the first attempt).
func retryOne(ctx context.Context, cfg *config.Config, sem *semaphore.Weighted, path string, st *stats.Statistics) (bool, string) {
	delay := retryBaseDelay

	for attempt := 1; attempt <= retryPasses; attempt++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			return false, "cancelled during retry"
		}

		sf, err := classifier.Scan(cfg, path)
		if err != nil {
			sem.Release(1)
			if os.IsNotExist(err) {
				// Already gone — a prior pass (or a concurrent external
				// actor) removed it between attempts.
				return true, ""
			}
			return false, "rescan failed: " + err.Error()
		}

		if sf.VideoCount > 0 || sf.ArchiveCount > 0 {
			sem.Release(1)
			return false, "folder no longer eligible for deletion (videos or archives present)"
		}

		err = os.RemoveAll(path)
		sem.Release(1)
		if err == nil {
			st.FoldersCleaned.Add(1)
			logger.Info("retry pass %d removed %s", attempt, logger.FolderID(path))
			return true, ""
		}

		if attempt == retryPasses {
			return false, "still undeletable after " + strconv.Itoa(retryPasses) + " retry passes: " + err.Error()
		}

		select {
		case <-ctx.Done():
			return false, "cancelled during retry backoff"
		case <-time.After(delay):
		}
		delay *= 2
	}

	return false, "exhausted retry passes"
}
