package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Replace moves src over dst so that readers of dst see either the old
// file or the complete new one. When the rename fails, for example across
// devices, src is copied to a sibling of dst and that copy is renamed.
func Replace(src, dst string) error {
	if err := rename(src, dst); err == nil {
		return nil
	} else if _, statErr := os.Stat(src); statErr != nil {
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	staged, err := cp(src, filepath.Dir(dst))
	if err != nil {
		return fmt.Errorf("staging %s: %w", dst, err)
	}
	if err := rename(staged, dst); err != nil {
		os.Remove(staged)
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	return os.Remove(src)
}

// cp copies src into a new temporary file in dir and returns its path.
func cp(src, dir string) (string, error) {
	srcf, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer srcf.Close()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("preparing %q: %w", dir, err)
	}
	dstf, err := os.CreateTemp(dir, "."+filepath.Base(src)+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(dstf, srcf); err != nil {
		dstf.Close()
		os.Remove(dstf.Name())
		return "", fmt.Errorf("copying data: %w", err)
	}
	if err := dstf.Close(); err != nil {
		os.Remove(dstf.Name())
		return "", err
	}
	return dstf.Name(), nil
}
