//go:build !windows
// +build !windows

package extract

// OpenNative is unavailable off Windows; use OpenPEFile.
func OpenNative(path string) (ResourceReader, error) {
	return nil, ErrUnsupported
}
