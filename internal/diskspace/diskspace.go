// Package diskspace reports free bytes available on the volume backing a
// given path. It backs invariant I5 (space-budget check before extraction,
// spec §4.6).
//
// The platform split (diskspace_unix.go / diskspace_windows.go /
// diskspace_generic.go) mirrors the teacher's backend package: one
// freeBytes implementation selected by build tag, with a tiny generic
// fallback for platforms without a syscall binding.
package diskspace

import "fmt"

// FreeBytes returns the number of bytes free on the filesystem that
// contains path. path must already exist.
func FreeBytes(path string) (uint64, error) {
	free, err := freeBytes(path)
	if err != nil {
		return 0, fmt.Errorf("diskspace: %w", err)
	}
	return free, nil
}

// HasHeadroom reports whether the volume containing path has at least
// requiredBytes free. Used directly by invariant I5.
func HasHeadroom(path string, requiredBytes uint64) (bool, error) {
	free, err := FreeBytes(path)
	if err != nil {
		return false, err
	}
	return free >= requiredBytes, nil
}
