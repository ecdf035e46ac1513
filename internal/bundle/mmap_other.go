//go:build !unix

package bundle

import (
	"fmt"
	"os"
)

func mapFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxMappedSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	return os.ReadFile(path)
}

func unmapFile([]byte) {}
