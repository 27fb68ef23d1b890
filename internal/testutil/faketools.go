package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/unpackr/unpackr/internal/runner"
)

var (
	_ runner.Extractor  = (*FakeExtractor)(nil)
	_ runner.ParityTool = (*FakeParityTool)(nil)
	_ runner.Prober     = (*FakeProber)(nil)
	_ runner.Decoder    = (*FakeDecoder)(nil)
)

// FakeExtractor, FakeParityTool, FakeProber, and FakeDecoder are
// in-process stand-ins for runner.Extractor/ParityTool/Prober/Decoder,
// letting property and end-to-end tests drive the pipeline without a
// real 7z/par2/ffprobe/ffmpeg binary on the test machine.
//
// Grounded on the teacher's internal/backend.Backend split: one small
// interface per platform-specific capability, with a "generic"
// (no-op/fallback) implementation alongside the real one
// (backend/generic.go next to backend/windows.go). These fakes play
// the same role the generic backend does for the teacher's tests:
// a deterministic, dependency-free double satisfying the same
// interface the production code is written against (Design Note
// "Polymorphism over external tools", SPEC_FULL.md §A.4).

// FakeExtractor simulates an archive extractor. ExtractFile, if set, is
// written into destDir on every Extract call; its name and size should
// be chosen to land on whichever video verdict the test wants to
// exercise.
type FakeExtractor struct {
	Listing      []string
	ExtractFile  string
	ExtractSize  int64
	ExtractErr   error
	Calls        int
}

func (f *FakeExtractor) List(ctx context.Context, archivePath string) ([]string, error) {
	return f.Listing, nil
}

func (f *FakeExtractor) Extract(ctx context.Context, archivePath, destDir string, timeout time.Duration) error {
	f.Calls++
	if f.ExtractErr != nil {
		return f.ExtractErr
	}
	if f.ExtractFile == "" {
		return nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, f.ExtractFile), make([]byte, f.ExtractSize), 0o644)
}

// FakeParityTool returns a fixed combined-output string, letting a test
// drive any of the parity engine's keyword-interpretation branches
// (verified-clean, repaired, unrecoverable, inconclusive) without
// shelling out to par2. VerifyOutput/VerifyErr let a test give the
// non-mutating Verify call (used in dry-run) a different response than
// Repair; when left unset, Verify falls back to Output/Err so tests
// that don't care about the dry-run/live distinction need only set one
// pair of fields.
type FakeParityTool struct {
	Output string
	Err    error

	VerifyOutput string
	VerifyErr    error
}

func (f *FakeParityTool) Repair(ctx context.Context, indexPath string, timeout time.Duration) (string, error) {
	return f.Output, f.Err
}

func (f *FakeParityTool) Verify(ctx context.Context, indexPath string, timeout time.Duration) (string, error) {
	if f.VerifyOutput != "" || f.VerifyErr != nil {
		return f.VerifyOutput, f.VerifyErr
	}
	return f.Output, f.Err
}

// FakeProber returns a fixed probe output string (e.g.
// "duration=60\nbit_rate=600000") for the video validator's metadata
// gate.
type FakeProber struct{ Output string }

func (f *FakeProber) Probe(ctx context.Context, mediaPath string) (string, error) {
	return f.Output, nil
}

// FakeDecoder returns a fixed decode-sample output string for the video
// validator's decode-probe gate's corruption-keyword scan. Failed lets a
// test drive the exit-status branch independently of the keyword scan.
type FakeDecoder struct {
	Output string
	Failed bool
}

func (f *FakeDecoder) DecodeSample(ctx context.Context, mediaPath string, seconds int) (string, bool, error) {
	return f.Output, f.Failed, nil
}
