//go:build !windows
// +build !windows

package util

import "os"

// rename is atomic on Unix when src and dst share a file system.
func rename(src, dst string) error {
	return os.Rename(src, dst)
}
