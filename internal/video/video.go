// Package video implements the Video Validator: seven ordered gates
// producing a ValidationVerdict for each candidate media file, per spec
// §4.5. Steps 3 (metadata probe) and 6 (decode probe) are the only steps
// that invoke a subprocess; every other gate is a pure function of
// already-known size/duration/bitrate values.
//
// Grounded on the Parity Engine's own keyword-scanning approach (ordered
// checks, first match wins) applied here to the decode-probe gate, and
// on spec §4.5's gate table directly — there is no single teacher file
// that validates media health, so the gate sequencing mirrors the
// safety package's "evaluate a fixed ordered list of predicates" shape
// used throughout this codebase.
package video

import (
	"context"
	"strconv"
	"strings"

	"github.com/unpackr/unpackr/internal/runner"
)

// Verdict is the closed set of outcomes a VideoArtifact can receive.
type Verdict string

const (
	Pass      Verdict = "Pass"
	Sample    Verdict = "Sample"
	Corrupt   Verdict = "Corrupt"
	Truncated Verdict = "Truncated"
	Unknown   Verdict = "Unknown"
)

const (
	sizeFloorBytes      = 1 << 20 // 1 MiB
	durationFloorSeconds = 10
	truncationRatio      = 0.70
)

// decodeFailureKeywords is the closed list scanned in the decode-probe
// gate; it must not be extended without updating the specification.
var decodeFailureKeywords = []string{
	"invalid data",
	"moov atom not found",
	"corrupt",
	"truncated",
	"error while decoding",
}

// Artifact is a candidate media file (spec §3 VideoArtifact).
type Artifact struct {
	Path string
	Size int64
}

// ProbeResult carries the metadata the probe tool reports, or
// Unavailable=true when the tool is not configured at all.
type ProbeResult struct {
	Unavailable bool
	Duration    float64 // seconds
	Bitrate     float64 // bits per second
}

// Result pairs a verdict with its machine-readable reason code and a
// human-readable message, per spec §3.
type Result struct {
	Verdict Verdict
	Reason  string
	Message string
}

// Validate applies the seven gates of spec §4.5 in order. probe and
// decoder may be nil, representing an unavailable optional tool; per
// spec §7 this yields a fail-closed Unknown verdict rather than a panic.
func Validate(ctx context.Context, artifact Artifact, sampleFloorBytes int64, probe ProbeFunc, decode DecodeFunc) Result {
	if artifact.Size < sizeFloorBytes {
		return Result{Verdict: Corrupt, Reason: "too-small", Message: "file is smaller than the 1 MiB absolute floor"}
	}

	if artifact.Size < sampleFloorBytes {
		return Result{Verdict: Sample, Reason: "below-sample-threshold", Message: "file is smaller than the configured sample threshold"}
	}

	if probe == nil {
		return Result{Verdict: Unknown, Reason: "probe-unavailable", Message: "metadata probe tool is not configured"}
	}
	probeResult, err := probe(ctx, artifact.Path)
	if err != nil {
		return Result{Verdict: Unknown, Reason: "probe-unavailable", Message: err.Error()}
	}
	if probeResult.Unavailable {
		return Result{Verdict: Unknown, Reason: "probe-unavailable", Message: "metadata probe tool is not configured"}
	}
	if probeResult.Duration <= 0 || probeResult.Bitrate <= 0 {
		return Result{Verdict: Corrupt, Reason: "no-metadata", Message: "probe did not report a positive duration and bitrate"}
	}

	if probeResult.Duration < durationFloorSeconds {
		return Result{Verdict: Corrupt, Reason: "too-short", Message: "probed duration is below the 10 second floor"}
	}

	expected := probeResult.Duration * probeResult.Bitrate / 8
	if expected > 0 && float64(artifact.Size)/expected < truncationRatio {
		return Result{Verdict: Truncated, Reason: "validation-failed-truncated", Message: "observed size is below 0.70 of the expected size implied by duration and bitrate"}
	}

	if decode == nil {
		return Result{Verdict: Unknown, Reason: "probe-unavailable", Message: "decode probe tool is not configured"}
	}
	decodeOutput, decodeFailed, err := decode(ctx, artifact.Path)
	if err != nil && decodeOutput == "" {
		return Result{Verdict: Corrupt, Reason: "decode-failed", Message: err.Error()}
	}
	// The exit status and the keyword scan are independent fail-closed
	// checks: a nonzero exit rejects the file even when its diagnostic
	// text matches nothing on the closed keyword list.
	if decodeFailed {
		return Result{Verdict: Corrupt, Reason: "decode-failed", Message: "decode subprocess exited with a nonzero status"}
	}
	lower := strings.ToLower(decodeOutput)
	for _, kw := range decodeFailureKeywords {
		if strings.Contains(lower, kw) {
			return Result{Verdict: Corrupt, Reason: "decode-failed", Message: "decode diagnostic output matched keyword: " + kw}
		}
	}

	return Result{Verdict: Pass}
}

// ProbeFunc and DecodeFunc let callers inject the runner.Prober/
// runner.Decoder tool implementations (or a test fake) without Validate
// depending directly on the runner package's concrete types.
type ProbeFunc func(ctx context.Context, path string) (ProbeResult, error)

// DecodeFunc's decodeFailed return reports the decode subprocess's exit
// status independently of its output text, so Validate's decode gate
// can reject on either signal (spec §4.5 step 6).
type DecodeFunc func(ctx context.Context, path string) (output string, decodeFailed bool, err error)

// FromProber adapts a runner.Prober into a ProbeFunc, parsing its raw
// probe text. The parsing here is intentionally permissive: any
// well-formed "key=value" line is accepted in either order.
func FromProber(p runner.Prober) ProbeFunc {
	if p == nil {
		return nil
	}
	return func(ctx context.Context, path string) (ProbeResult, error) {
		raw, err := p.Probe(ctx, path)
		if err != nil {
			return ProbeResult{}, err
		}
		return parseProbeOutput(raw), nil
	}
}

// FromDecoder adapts a runner.Decoder into a DecodeFunc using a fixed
// sample window.
func FromDecoder(d runner.Decoder, sampleSeconds int) DecodeFunc {
	if d == nil {
		return nil
	}
	return func(ctx context.Context, path string) (string, bool, error) {
		return d.DecodeSample(ctx, path, sampleSeconds)
	}
}

func parseProbeOutput(raw string) ProbeResult {
	var result ProbeResult
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "duration":
			result.Duration = parseFloat(value)
		case "bit_rate", "bitrate":
			result.Bitrate = parseFloat(value)
		}
	}
	return result
}

func parseFloat(s string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return value
}
