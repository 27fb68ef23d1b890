// Package stats accumulates run-wide counters for the orchestrator and
// renders the end-of-run summary. Counters are lock-free atomics so the
// folder pipeline can update them without coordinating with the
// orchestrator's own goroutine.
//
// Grounded on the teacher's internal/engine.atomicCounters (the
// deleted/failed atomic.Int64 pair updated by worker goroutines) and its
// internal/progress.Reporter (elapsed-time/rate/ETA math and the final
// summary block printed by Reporter.Finish) — generalized from a single
// deletion counter pair to the full set of run-wide counters spec §4.8
// names, and from hand-rolled comma/duration formatting to
// github.com/dustin/go-humanize.
package stats

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics holds every run-wide counter named in spec §4.8. All fields
// are atomics: safe to add to from the single pipeline goroutine and to
// read from anywhere (signal handler, periodic summary, final report)
// without a mutex.
type Statistics struct {
	startTime time.Time

	VideosFound    atomic.Int64
	VideosMoved    atomic.Int64
	VideosRejected atomic.Int64

	ArchivesExtracted atomic.Int64
	ArchivesFailed    atomic.Int64

	ParityRepairsOK     atomic.Int64
	ParityRepairsFailed atomic.Int64

	FoldersCleaned   atomic.Int64
	FoldersPreserved atomic.Int64
	FoldersSkipped   atomic.Int64
	FoldersErrored   atomic.Int64

	JunkFilesRemoved atomic.Int64
	BytesMoved       atomic.Int64

	// InvariantViolations counts refusals by invariant id (e.g. "I1",
	// "I9"); guarded with its own mutex-free map isn't safe under
	// concurrent writers, but the pipeline processes one folder at a
	// time (spec §5), so a plain map with atomic int64 values keyed by
	// invariant id suffices.
	invariantViolations map[string]*atomic.Int64
	violationOrder      []string
}

// New creates a Statistics tracker with its clock started now.
func New() *Statistics {
	return &Statistics{
		startTime:           time.Now(),
		invariantViolations: make(map[string]*atomic.Int64),
	}
}

// RecordViolation increments the count for a given invariant id (e.g.
// "I1"). Safe to call repeatedly; new invariant ids are registered on
// first use.
func (s *Statistics) RecordViolation(invariantID string) {
	counter, ok := s.invariantViolations[invariantID]
	if !ok {
		counter = &atomic.Int64{}
		s.invariantViolations[invariantID] = counter
		s.violationOrder = append(s.violationOrder, invariantID)
	}
	counter.Add(1)
}

// Elapsed returns how long this run has been executing.
func (s *Statistics) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// FoldersProcessed returns the total number of folders the pipeline has
// reached a terminal state for.
func (s *Statistics) FoldersProcessed() int64 {
	return s.FoldersCleaned.Load() + s.FoldersPreserved.Load() + s.FoldersSkipped.Load() + s.FoldersErrored.Load()
}

// Rate returns folders processed per second since the run began, 0 if no
// time has elapsed yet.
func (s *Statistics) Rate() float64 {
	elapsed := s.Elapsed().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(s.FoldersProcessed()) / elapsed
}

// Summary renders the final human-readable report, in the spirit of the
// teacher's Reporter.Finish block but covering every spec §4.8 counter
// and using humanize for both byte sizes and large counts.
func (s *Statistics) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run complete in %s\n", humanize.RelTime(s.startTime, time.Now(), "", ""))
	fmt.Fprintf(&b, "Folders: %s cleaned, %s preserved, %s skipped, %s errored\n",
		humanize.Comma(s.FoldersCleaned.Load()),
		humanize.Comma(s.FoldersPreserved.Load()),
		humanize.Comma(s.FoldersSkipped.Load()),
		humanize.Comma(s.FoldersErrored.Load()))
	fmt.Fprintf(&b, "Videos: %s found, %s moved, %s rejected\n",
		humanize.Comma(s.VideosFound.Load()),
		humanize.Comma(s.VideosMoved.Load()),
		humanize.Comma(s.VideosRejected.Load()))
	fmt.Fprintf(&b, "Archives: %s extracted, %s failed\n",
		humanize.Comma(s.ArchivesExtracted.Load()),
		humanize.Comma(s.ArchivesFailed.Load()))
	fmt.Fprintf(&b, "Parity: %s repaired, %s unrecoverable\n",
		humanize.Comma(s.ParityRepairsOK.Load()),
		humanize.Comma(s.ParityRepairsFailed.Load()))
	fmt.Fprintf(&b, "Junk files removed: %s\n", humanize.Comma(s.JunkFilesRemoved.Load()))
	fmt.Fprintf(&b, "Data moved: %s\n", humanize.Bytes(uint64(s.BytesMoved.Load())))

	if len(s.violationOrder) > 0 {
		fmt.Fprintf(&b, "Invariant refusals:\n")
		for _, id := range s.violationOrder {
			fmt.Fprintf(&b, "  %s: %s\n", id, humanize.Comma(s.invariantViolations[id].Load()))
		}
	}

	return b.String()
}
