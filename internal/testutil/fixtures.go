package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// ReleaseSpec declaratively describes the contents of one synthetic
// Usenet-style release folder, laid out by BuildReleaseFolder. Every
// field is optional; a zero ReleaseSpec produces an empty folder (the
// Junk boundary case, spec §8).
//
// Grounded on the teacher's CreateTestDirectory/GenerateTestFiles (a
// config-driven fixture builder writing N buffered-I/O files of random
// size into a temp directory), generalized from "N same-shaped junk
// files" to "a declarative mix of archive/parity/video/junk/music/image
// members", since the Classifier's five-rule decision turns on which
// extension classes are present, not on file count alone.
type ReleaseSpec struct {
	// ArchiveParts, if > 0, writes that many movie.partNN.rar members,
	// each ArchivePartSize bytes (default 1 MiB if unset).
	ArchiveParts    int
	ArchivePartSize int64

	// Parity, if true, writes one movie.par2 index plus ParityVolumes
	// recovery volumes (movie.vol000+01.par2 style), each sized
	// ParityVolumeSize bytes (default 512 KiB if unset).
	Parity        bool
	ParityVolumes int
	ParityVolumeSize int64

	// VideoName/VideoSize write one loose video file directly in the
	// folder (as opposed to one produced by extraction).
	VideoName string
	VideoSize int64

	// JunkFiles lists removable-extension file names to write, each 64
	// bytes (e.g. "movie.nfo", "movie.sfv").
	JunkFiles []string

	// MusicFiles/ImageFiles/DocumentFiles write that many .mp3/.jpg/.pdf
	// files respectively, each FileSize bytes (default 64 bytes).
	MusicFiles    int
	ImageFiles    int
	DocumentFiles int
	FileSize      int64
}

// BuildReleaseFolder creates a temp directory laid out per spec and
// returns its path. The directory is cleaned up automatically via
// t.TempDir().
func BuildReleaseFolder(t *testing.T, spec ReleaseSpec) string {
	t.Helper()
	dir := t.TempDir()
	if err := WriteReleaseFolder(dir, spec); err != nil {
		t.Fatalf("building release folder: %v", err)
	}
	return dir
}

// WriteReleaseFolder writes spec's contents into an existing directory.
func WriteReleaseFolder(dir string, spec ReleaseSpec) error {
	partSize := spec.ArchivePartSize
	if partSize == 0 {
		partSize = 1 << 20
	}
	for i := 1; i <= spec.ArchiveParts; i++ {
		name := fmt.Sprintf("movie.part%02d.rar", i)
		if err := writeFile(filepath.Join(dir, name), partSize); err != nil {
			return err
		}
	}

	if spec.Parity {
		if err := writeFile(filepath.Join(dir, "movie.par2"), 20<<10); err != nil {
			return err
		}
		volSize := spec.ParityVolumeSize
		if volSize == 0 {
			volSize = 512 << 10
		}
		for i := 0; i < spec.ParityVolumes; i++ {
			name := fmt.Sprintf("movie.vol%03d+01.par2", i)
			if err := writeFile(filepath.Join(dir, name), volSize); err != nil {
				return err
			}
		}
	}

	if spec.VideoName != "" {
		if err := writeFile(filepath.Join(dir, spec.VideoName), spec.VideoSize); err != nil {
			return err
		}
	}

	for _, name := range spec.JunkFiles {
		if err := writeFile(filepath.Join(dir, name), 64); err != nil {
			return err
		}
	}

	fileSize := spec.FileSize
	if fileSize == 0 {
		fileSize = 64
	}
	if err := writeNumbered(dir, "track", ".mp3", spec.MusicFiles, fileSize); err != nil {
		return err
	}
	if err := writeNumbered(dir, "image", ".jpg", spec.ImageFiles, fileSize); err != nil {
		return err
	}
	if err := writeNumbered(dir, "doc", ".pdf", spec.DocumentFiles, fileSize); err != nil {
		return err
	}

	return nil
}

func writeNumbered(dir, prefix, ext string, count int, size int64) error {
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s_%d%s", prefix, i, ext)
		if err := writeFile(filepath.Join(dir, name), size); err != nil {
			return err
		}
	}
	return nil
}

// writeFile creates a zero-filled file of the given size using buffered
// I/O, matching the teacher's fixture-writing shape (buffered writer,
// explicit flush, explicit close) without the random-content generation
// the teacher used for generic deletion fixtures — the validators in
// this domain key off size and extension, never content, so a zeroed
// buffer is both faster and sufficient.
func writeFile(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	const chunk = 1 << 20
	buf := make([]byte, chunk)
	remaining := size
	for remaining > 0 {
		n := chunk
		if int64(n) > remaining {
			n = int(remaining)
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return fmt.Errorf("failed to write content to %s: %w", path, err)
		}
		remaining -= int64(n)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer for %s: %w", path, err)
	}
	return nil
}

// CountFiles recursively counts all files in a directory. Kept from the
// teacher's generic tree-fixture helpers — still useful for asserting
// a folder was fully cleaned (count reaches zero) regardless of domain.
func CountFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
