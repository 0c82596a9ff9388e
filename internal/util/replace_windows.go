//go:build windows
// +build windows

package util

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// rename uses MoveFileEx, retrying briefly since scanners and previewers
// often hold a just-written file open.
func rename(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return fmt.Errorf("converting source path: %w", err)
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return fmt.Errorf("converting destination path: %w", err)
	}
	const attempts = 3
	delay := 50 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			return fmt.Errorf("moving file after %d attempts: %w", attempts, err)
		}
		time.Sleep(delay)
		delay *= 2
	}
}
