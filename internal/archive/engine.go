package archive

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/unpackr/unpackr/internal/diskspace"
	"github.com/unpackr/unpackr/internal/logger"
	"github.com/unpackr/unpackr/internal/outcome"
	"github.com/unpackr/unpackr/internal/runner"
	"github.com/unpackr/unpackr/internal/safety"
)

// spaceBudgetMultiplier implements invariant I5: extraction requires at
// least this many times the archive set's declared size free on the
// target volume.
const spaceBudgetMultiplier = 3

// ValidateListing invokes the extractor's list capability and rejects
// the whole set if any entry is unsafe: absolute paths, ".." segments,
// embedded null bytes, or paths that resolve outside destDir after
// normalization. The listing carries entry paths only, so symbolic-link
// entries are not detected here.
//
// A rejection here is always SoftFail: the archive files themselves are
// not deleted, since the content may still be recoverable manually.
func ValidateListing(ctx context.Context, extractor runner.Extractor, firstMemberPath, destDir string) ([]string, outcome.Outcome) {
	entries, err := extractor.List(ctx, firstMemberPath)
	if err != nil {
		return nil, outcome.SoftFail("archive-listing-failed", err)
	}

	for _, entry := range entries {
		if reason, bad := unsafeListingEntry(entry, destDir); bad {
			return nil, outcome.SoftFail("archive-listing-rejected: "+reason, nil)
		}
	}
	return entries, outcome.Ok()
}

func unsafeListingEntry(entry, destDir string) (string, bool) {
	if strings.ContainsRune(entry, 0) {
		return "embedded null byte", true
	}
	if filepath.IsAbs(entry) {
		return "absolute path", true
	}
	for _, segment := range strings.Split(filepath.ToSlash(entry), "/") {
		if segment == ".." {
			return "contains .. segment", true
		}
	}
	resolved := filepath.Join(destDir, entry)
	resolved = filepath.Clean(resolved)
	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return "cannot resolve destination root", true
	}
	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return "cannot resolve entry path", true
	}
	rel, err := filepath.Rel(absDest, absResolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "resolves outside extraction root", true
	}
	return "", false
}

// Extract runs the extractor against set's first member, after a
// pre-flight free-space check (I5) and an invariant enforcement pass
// (I1 destination containment, I6 safe name, I7 legal phase). round is
// the 1-based extraction round number for this folder, used for I4.
func Extract(ctx context.Context, extractor runner.Extractor, inv *safety.Invariants, set Set, firstMemberPath, destDir string, round int) outcome.Outcome {
	free, err := diskspace.FreeBytes(destDir)
	if err != nil {
		return outcome.SoftFail("free-space-check-failed", err)
	}

	op := safety.FileOperation{
		Kind:               safety.WriteFile,
		Destination:        filepath.Join(destDir, filepath.Base(set.FirstMember)),
		Phase:              safety.PhaseExtract,
		Reason:             safety.ReasonExtractionVerified,
		ExtractionRound:    round,
		FreeBytesAvailable: free,
		RequiredBytes:      uint64(set.TotalBytes) * spaceBudgetMultiplier,
	}
	decision := inv.Enforce(op)
	logger.Audit(logger.Record{
		Phase:     safety.PhaseExtract,
		Operation: string(safety.WriteFile),
		Reason:    string(safety.ReasonExtractionVerified),
		Outcome:   auditOutcome(decision),
		Detail:    decision.Reason,
	})
	if !decision.Allowed {
		return outcome.HardFail(decision.Violation, nil)
	}

	timeout := runner.ExtractionTimeout(set.TotalBytes)
	if err := extractor.Extract(ctx, firstMemberPath, destDir, timeout); err != nil {
		return outcome.SoftFail("extraction-failed", err)
	}
	return outcome.Ok()
}

func auditOutcome(d safety.Decision) string {
	if d.Allowed {
		return "executed"
	}
	return "refused"
}
