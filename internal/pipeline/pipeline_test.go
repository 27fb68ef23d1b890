package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unpackr/unpackr/internal/classifier"
	"github.com/unpackr/unpackr/internal/config"
	"github.com/unpackr/unpackr/internal/safety"
	"github.com/unpackr/unpackr/internal/stats"
)

type fakeExtractor struct {
	listing    []string
	extractErr error
	calls      int
}

func (f *fakeExtractor) List(ctx context.Context, archivePath string) ([]string, error) {
	return f.listing, nil
}

func (f *fakeExtractor) Extract(ctx context.Context, archivePath, destDir string, timeout time.Duration) error {
	f.calls++
	if f.extractErr != nil {
		return f.extractErr
	}
	// Simulate a real extractor: drop a video file into destDir, well
	// above the default 50 MiB sample-size threshold.
	return os.WriteFile(filepath.Join(destDir, "movie.mkv"), make([]byte, 60<<20), 0o644)
}

type fakeParity struct {
	output string
	err    error

	verifyOutput string
	verifyErr    error
	verifyCalls  int
	repairCalls  int
}

func (f *fakeParity) Repair(ctx context.Context, indexPath string, timeout time.Duration) (string, error) {
	f.repairCalls++
	return f.output, f.err
}

func (f *fakeParity) Verify(ctx context.Context, indexPath string, timeout time.Duration) (string, error) {
	f.verifyCalls++
	if f.verifyOutput != "" || f.verifyErr != nil {
		return f.verifyOutput, f.verifyErr
	}
	return f.output, f.err
}

type fakeProber struct{ out string }

func (f *fakeProber) Probe(ctx context.Context, mediaPath string) (string, error) {
	return f.out, nil
}

type fakeDecoder struct {
	out    string
	failed bool
}

func (f *fakeDecoder) DecodeSample(ctx context.Context, mediaPath string, seconds int) (string, bool, error) {
	return f.out, f.failed, nil
}

func testConfig(t *testing.T, sourceRoot, destRoot string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SourceRoot = sourceRoot
	cfg.DestinationRoot = destRoot
	return &cfg
}

func writeFixture(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
}

func TestRunProcessesEmptyFolderAsJunk(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	sf, err := classifier.Scan(cfg, src)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, Tools{}, sf, "run-1", false)
	if result.FinalState != StateDeleted {
		t.Fatalf("expected Deleted for an empty folder, got %s (%s)", result.FinalState, result.Outcome.Status)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected the empty folder itself to be removed")
	}
}

func TestRunPreservesMusicCollectionWithoutTouchingDisk(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	cfg := testConfig(t, src, dst)
	for i := 0; i < cfg.MinMusicFiles; i++ {
		writeFixture(t, src, "track"+string(rune('a'+i))+".mp3", 1024)
	}
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	sf, err := classifier.Scan(cfg, src)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, Tools{}, sf, "run-1", false)
	if result.FinalState != StatePreserved {
		t.Fatalf("expected Preserved, got %s", result.FinalState)
	}
	if st.FoldersPreserved.Load() != 1 {
		t.Fatalf("expected FoldersPreserved=1, got %d", st.FoldersPreserved.Load())
	}
	entries, _ := os.ReadDir(src)
	if len(entries) != cfg.MinMusicFiles {
		t.Fatalf("expected the preserved folder's contents untouched, got %d entries", len(entries))
	}
}

// End-to-end scenario: a rar archive, clean parity, extraction yields a
// valid video which gets moved, and the release folder is deleted.
func TestRunFullReleaseCleanParityExtractsAndMoves(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "Release.Name")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "release.part01.rar", 1<<20)
	writeFixture(t, release, "release.par2", 512)
	writeFixture(t, release, "release.nfo", 10)

	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	tools := Tools{
		Extractor: &fakeExtractor{listing: []string{"movie.mkv"}},
		Parity:    &fakeParity{output: "All files are correct; no repair needed."},
		Prober:    &fakeProber{out: "duration=60\nbit_rate=600000"},
		Decoder:   &fakeDecoder{out: ""},
	}

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, tools, sf, "run-1", false)
	if result.FinalState != StateDeleted {
		t.Fatalf("expected Deleted, got %s (%v)", result.FinalState, result.Outcome)
	}
	if len(result.MovedVideos) != 1 {
		t.Fatalf("expected exactly one moved video, got %d", len(result.MovedVideos))
	}
	if _, err := os.Stat(result.MovedVideos[0]); err != nil {
		t.Fatalf("expected moved video to exist at %s: %v", result.MovedVideos[0], err)
	}
	if _, err := os.Stat(release); !os.IsNotExist(err) {
		t.Fatalf("expected the source release folder to be removed")
	}
	if st.VideosMoved.Load() != 1 {
		t.Fatalf("expected VideosMoved=1, got %d", st.VideosMoved.Load())
	}
	if st.FoldersCleaned.Load() != 1 {
		t.Fatalf("expected FoldersCleaned=1, got %d", st.FoldersCleaned.Load())
	}
}

// Parity-unrecoverable: archives are deleted without any extraction
// attempt (spec §4.3/§8).
func TestRunParityUnrecoverableDeletesArchivesWithoutExtracting(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "Broken.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "broken.part01.rar", 1<<20)
	writeFixture(t, release, "broken.par2", 512)

	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	extractor := &fakeExtractor{listing: []string{"movie.mkv"}}
	tools := Tools{
		Extractor: extractor,
		Parity:    &fakeParity{output: "Repair failed: insufficient recovery data."},
	}

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, tools, sf, "run-1", false)
	if result.FinalState != StateDeleted {
		t.Fatalf("expected Deleted, got %s (%v)", result.FinalState, result.Outcome)
	}
	if extractor.calls != 0 {
		t.Fatalf("expected extractor never invoked on parity-unrecoverable, got %d calls", extractor.calls)
	}
	if st.ParityRepairsFailed.Load() != 1 {
		t.Fatalf("expected ParityRepairsFailed=1, got %d", st.ParityRepairsFailed.Load())
	}
}

// Sample video below the configured threshold is deleted, not moved.
func TestRunDeletesBelowThresholdSample(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "Sample.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "sample.mkv", 2<<20) // 2 MiB, above the 1 MiB floor but below the sample threshold

	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, Tools{}, sf, "run-1", false)
	if result.FinalState != StateDeleted {
		t.Fatalf("expected Deleted, got %s (%v)", result.FinalState, result.Outcome)
	}
	if st.VideosRejected.Load() != 1 {
		t.Fatalf("expected VideosRejected=1, got %d", st.VideosRejected.Load())
	}
	if len(result.MovedVideos) != 0 {
		t.Fatalf("expected no moved videos")
	}
}

// Unknown verdict (no prober configured) is fail-closed: neither moved
// nor deleted, folder left un-deleted.
func TestRunLeavesUnknownVerdictVideoUntouched(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "Unknown.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "movie.mkv", cfgSampleSize(t)+1<<20)

	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, Tools{}, sf, "run-1", false)
	if result.FinalState == StateDeleted {
		t.Fatalf("expected the folder to survive an Unknown verdict, got Deleted")
	}
	if _, err := os.Stat(filepath.Join(release, "movie.mkv")); err != nil {
		t.Fatalf("expected the Unknown-verdict video to remain on disk untouched: %v", err)
	}
}

func cfgSampleSize(t *testing.T) int {
	t.Helper()
	cfg := config.Default()
	return int(cfg.MinSampleSizeBytes)
}

// Plan-only never mutates the filesystem, even for a release that would
// otherwise be fully processed and deleted.
func TestRunPlanOnlyNeverMutatesFilesystem(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "Plan.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "plan.part01.rar", 1<<20)
	writeFixture(t, release, "plan.nfo", 10)

	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	extractor := &fakeExtractor{listing: []string{"movie.mkv"}}
	tools := Tools{Extractor: extractor}

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, tools, sf, "run-1", true)
	if extractor.calls != 0 {
		t.Fatalf("expected plan-only to never invoke the extractor, got %d calls", extractor.calls)
	}
	if _, err := os.Stat(release); err != nil {
		t.Fatalf("expected the release folder to still exist after a plan-only run: %v", err)
	}
	if len(result.PlannedOps) == 0 {
		t.Fatalf("expected plan-only to record planned operations")
	}
}

// Dry-run behaves like a live run for decision-making purposes but
// performs zero filesystem mutations.
func TestRunDryRunNeverMutatesFilesystem(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "DryRun.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "junk.nfo", 10)
	writeFixture(t, release, "junk.sfv", 10)

	cfg := testConfig(t, src, dst)
	cfg.DryRun = true
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	Run(context.Background(), cfg, inv, st, Tools{}, sf, "run-1", false)
	entries, err := os.ReadDir(release)
	if err != nil {
		t.Fatalf("expected the dry-run folder to still exist: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected dry-run to leave both junk files in place, got %d entries", len(entries))
	}
}

// Dry-run must reach a repairable verdict via the non-mutating verify
// verb, never the mutating repair verb (spec §3, §8 P8).
func TestRunDryRunParityNeverCallsRepair(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "DryRunParity.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "broken.part01.rar", 1<<20)
	writeFixture(t, release, "broken.par2", 512)

	cfg := testConfig(t, src, dst)
	cfg.DryRun = true
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	extractor := &fakeExtractor{listing: []string{"movie.mkv"}}
	parity := &fakeParity{verifyOutput: "Repair is required."}
	tools := Tools{Extractor: extractor, Parity: parity}

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	Run(context.Background(), cfg, inv, st, tools, sf, "run-1", false)
	if parity.repairCalls != 0 {
		t.Fatalf("expected dry-run to never call Repair, got %d calls", parity.repairCalls)
	}
	if parity.verifyCalls == 0 {
		t.Fatalf("expected dry-run to call Verify")
	}
	if _, err := os.Stat(filepath.Join(release, "broken.part01.rar")); err != nil {
		t.Fatalf("expected dry-run to leave archive members untouched: %v", err)
	}
}

// A missing extractor tool on a folder with archive members is a SoftFail,
// and the folder is marked Errored with its archives preserved.
func TestRunSoftFailsWhenExtractorUnavailable(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	release := filepath.Join(src, "NoTool.Release")
	if err := os.Mkdir(release, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, release, "notool.part01.rar", 1<<20)

	cfg := testConfig(t, src, dst)
	inv := safety.New(src, dst, cfg.ArchiveLoopLimit, time.Hour, true)
	st := stats.New()

	sf, err := classifier.Scan(cfg, release)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result := Run(context.Background(), cfg, inv, st, Tools{}, sf, "run-1", false)
	if result.FinalState != StateErrored {
		t.Fatalf("expected Errored, got %s", result.FinalState)
	}
	if _, err := os.Stat(filepath.Join(release, "notool.part01.rar")); err != nil {
		t.Fatalf("expected the archive member to be preserved on extractor-unavailable SoftFail: %v", err)
	}
	if st.FoldersErrored.Load() != 1 {
		t.Fatalf("expected FoldersErrored=1, got %d", st.FoldersErrored.Load())
	}
}
