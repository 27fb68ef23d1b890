// Tool interfaces let the archive, parity and video packages depend on
// a capability (list/extract, repair, probe, decode) rather than on a
// specific external binary, per the Design Note "Polymorphism over
// external tools": a 7-Zip or rar-rar extractor both satisfy Extractor;
// swapping the tool never touches the archive engine.
//
// Grounded on the teacher's internal/backend.Backend interface plus its
// NewBackend factory (one interface, one implementation resolved at
// start-up) — generalized from two deletion methods on one interface to
// four small interfaces, one per external tool family named in spec
// §4.7, each implemented by shelling out via runner.Run instead of a
// platform-specific syscall.
package runner

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ResolveTool returns the first candidate in candidates found on PATH
// (or present as an absolute/relative executable path), per spec §6's
// "first working candidate wins" tool-path policy. Returns ok=false if
// none of the candidates resolve.
//
// Grounded on the candidate-path-list resolution pattern used across the
// corpus's process-management code (e.g. mutagen-io-mutagen's
// pkg/tools, which probes a short list of plausible binary names/paths
// and takes the first that exists) rather than requiring one fixed
// binary name.
func ResolveTool(candidates []string) (string, bool) {
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path, true
		}
	}
	return "", false
}

// Extractor lists and extracts the members of an archive set.
type Extractor interface {
	// List returns the member paths inside the archive without
	// extracting them, used by the archive engine's listing/validation
	// step before any write occurs.
	List(ctx context.Context, archivePath string) ([]string, error)
	// Extract unpacks archivePath's members into destDir.
	Extract(ctx context.Context, archivePath, destDir string, timeout time.Duration) error
}

// ParityTool repairs, or non-destructively verifies, a parity set.
type ParityTool interface {
	// Repair runs the repair pass against indexPath (e.g. a .par2 index
	// file) and returns its raw combined stdout/stderr for the parity
	// engine's keyword interpretation step (spec §4.3). Repair may
	// rewrite archive member files in place when the set is
	// damaged-but-recoverable; never call it in dry-run or plan-only
	// mode.
	Repair(ctx context.Context, indexPath string, timeout time.Duration) (string, error)
	// Verify runs a non-mutating verification pass against indexPath and
	// returns its raw combined stdout/stderr. It reports whether the set
	// is correct, repairable, or unrecoverable without repairing
	// anything, so dry-run can reach the same verdict Repair would
	// while performing no destructive operation (spec §3).
	Verify(ctx context.Context, indexPath string, timeout time.Duration) (string, error)
}

// Prober extracts container/stream metadata from a media file without
// decoding frame data.
type Prober interface {
	// Probe returns raw probe output as key=value lines (e.g.
	// "duration=60" and "bit_rate=600000") for the video validator to
	// parse.
	Probe(ctx context.Context, mediaPath string) (string, error)
}

// Decoder performs a bounded decode pass over a sample of a media file,
// used by the video validator's decode-probe gate.
type Decoder interface {
	// DecodeSample decodes up to seconds of mediaPath and returns
	// combined stdout/stderr for corruption-keyword scanning, plus
	// decodeFailed reporting whether the decode subprocess's exit status
	// itself indicates failure — independent of any keyword match (spec
	// §4.5 step 6).
	DecodeSample(ctx context.Context, mediaPath string, seconds int) (output string, decodeFailed bool, err error)
}

// ExternalExtractor shells out to a 7z/7za/unrar-style binary resolved
// from config.ToolPaths.Extractor.
type ExternalExtractor struct{ BinaryPath string }

func (e ExternalExtractor) List(ctx context.Context, archivePath string) ([]string, error) {
	res, err := Run(ctx, Invocation{
		Path:    e.BinaryPath,
		Args:    []string{"l", "-ba", archivePath},
		Timeout: ProbeTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing archive %s", archivePath)
	}
	return parseListing(res.Stdout), nil
}

func (e ExternalExtractor) Extract(ctx context.Context, archivePath, destDir string, timeout time.Duration) error {
	_, err := Run(ctx, Invocation{
		Path:    e.BinaryPath,
		Args:    []string{"x", "-y", "-o" + destDir, archivePath},
		Timeout: timeout,
	})
	if err != nil {
		return errors.Wrapf(err, "extracting archive %s", archivePath)
	}
	return nil
}

// ExternalParityTool shells out to a par2-style binary resolved from
// config.ToolPaths.Parity.
type ExternalParityTool struct{ BinaryPath string }

func (p ExternalParityTool) Repair(ctx context.Context, indexPath string, timeout time.Duration) (string, error) {
	res, err := Run(ctx, Invocation{
		Path:    p.BinaryPath,
		Args:    []string{"repair", indexPath},
		Timeout: timeout,
	})
	// Repair exit codes from par2-family tools are meaningful (nonzero
	// can still mean "repair attempted, insufficient blocks") so the
	// parity engine interprets stdout/stderr text itself; runner only
	// surfaces a hard error when the process never produced output.
	combined := res.Stdout + res.Stderr
	if err != nil && combined == "" {
		return "", errors.Wrapf(err, "running parity repair on %s", indexPath)
	}
	return combined, nil
}

func (p ExternalParityTool) Verify(ctx context.Context, indexPath string, timeout time.Duration) (string, error) {
	res, err := Run(ctx, Invocation{
		Path:    p.BinaryPath,
		Args:    []string{"verify", indexPath},
		Timeout: timeout,
	})
	// Same rationale as Repair: a nonzero exit from a verify pass is
	// itself meaningful output ("repair is required"), not necessarily
	// a tool failure, so the parity engine interprets the text itself.
	combined := res.Stdout + res.Stderr
	if err != nil && combined == "" {
		return "", errors.Wrapf(err, "running parity verify on %s", indexPath)
	}
	return combined, nil
}

// ExternalProber shells out to an ffprobe-style binary resolved from
// config.ToolPaths.Prober.
type ExternalProber struct{ BinaryPath string }

func (p ExternalProber) Probe(ctx context.Context, mediaPath string) (string, error) {
	res, err := Run(ctx, Invocation{
		Path:    p.BinaryPath,
		Args:    []string{"-v", "error", "-show_entries", "format=duration,bit_rate", "-of", "default=noprint_wrappers=1", mediaPath},
		Timeout: ProbeTimeout,
	})
	if err != nil {
		return "", errors.Wrapf(err, "probing %s", mediaPath)
	}
	return res.Stdout, nil
}

// ExternalDecoder shells out to an ffmpeg-style binary resolved from
// config.ToolPaths.Decoder.
type ExternalDecoder struct{ BinaryPath string }

func (d ExternalDecoder) DecodeSample(ctx context.Context, mediaPath string, seconds int) (string, bool, error) {
	res, err := Run(ctx, Invocation{
		Path: d.BinaryPath,
		Args: []string{
			"-v", "error",
			"-t", strconv.Itoa(seconds),
			"-i", mediaPath,
			"-f", "null", "-",
		},
		Timeout: DecodeTimeout,
	})
	combined := res.Stdout + res.Stderr
	if err != nil && combined == "" {
		return "", false, errors.Wrapf(err, "decode-probing %s", mediaPath)
	}
	// A nonzero exit from the decode pass is itself a failure signal,
	// independent of whatever diagnostic text it did or didn't produce.
	return combined, res.ExitCode != 0, nil
}

// parseListing extracts member file names from a "7z l -ba" style
// listing: each non-empty line ends with the path in its final
// whitespace-delimited field.
func parseListing(output string) []string {
	var members []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		members = append(members, fields[len(fields)-1])
	}
	return members
}
