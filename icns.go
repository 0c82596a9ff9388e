package icogen

import (
	"fmt"
	"image"
	"os"

	"github.com/jackmordaunt/icns"
)

// writeICNS encodes the square intermediate as a macOS icon at path.
func writeICNS(path string, img image.Image) error {
	dstf, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &IOError{Op: "opening icns", Path: path, Err: err}
	}
	if err := icns.Encode(dstf, img); err != nil {
		dstf.Close()
		return fmt.Errorf("encoding icns: %w", err)
	}
	if err := dstf.Close(); err != nil {
		return &IOError{Op: "closing icns", Path: path, Err: err}
	}
	return nil
}
