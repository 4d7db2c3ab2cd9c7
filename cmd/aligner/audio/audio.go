package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

// Duration probes the audio file at path and returns its length in seconds.
// The container is picked from the file extension.
func Duration(path string) (decimal.Decimal, error) {
	f, err := os.Open(path)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		d, err := WAVDuration(f)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to read WAV duration: %w", err)
		}
		return d, nil
	case ".ogg", ".opus":
		d, err := OggDuration(f)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to read Ogg duration: %w", err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported audio format %q", ext)
	}
}
