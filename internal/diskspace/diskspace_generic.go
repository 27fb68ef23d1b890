//go:build !unix && !windows

package diskspace

import "errors"

func freeBytes(path string) (uint64, error) {
	return 0, errors.New("disk free space detection is not supported on this platform")
}
