package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

const (
	riffHeaderLen  = 12
	chunkHeaderLen = 8
	fmtChunkMinLen = 16
)

var (
	errBadRIFFSignature = errors.New("bad RIFF signature")
	errBadWAVESignature = errors.New("bad WAVE signature")
	errMissingFmtChunk  = errors.New("missing fmt chunk")
	errMissingDataChunk = errors.New("missing data chunk")
	errInvalidByteRate  = errors.New("invalid zero byte rate")
)

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// WAVDuration returns the duration in seconds of the PCM data held by a
// RIFF/WAVE stream. Only chunk headers are read, the data chunk is skipped.
func WAVDuration(r io.Reader) (decimal.Decimal, error) {
	hdr := make([]byte, riffHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to read header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" {
		return decimal.Zero, errBadRIFFSignature
	}
	if string(hdr[8:12]) != "WAVE" {
		return decimal.Zero, errBadWAVESignature
	}

	var format *wavFormat
	chunkHdr := make([]byte, chunkHeaderLen)
	for {
		if _, err := io.ReadFull(r, chunkHdr); err != nil {
			if errors.Is(err, io.EOF) {
				if format == nil {
					return decimal.Zero, errMissingFmtChunk
				}
				return decimal.Zero, errMissingDataChunk
			}
			return decimal.Zero, fmt.Errorf("failed to read chunk header: %w", err)
		}

		id := string(chunkHdr[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHdr[4:8]))

		switch id {
		case "fmt ":
			if size < fmtChunkMinLen {
				return decimal.Zero, fmt.Errorf("fmt chunk too short: %d", size)
			}
			data := make([]byte, fmtChunkMinLen)
			if _, err := io.ReadFull(r, data); err != nil {
				return decimal.Zero, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			// Extension fields and padding are skipped. Chunks are word aligned.
			if _, err := io.CopyN(io.Discard, r, size-fmtChunkMinLen+size%2); err != nil {
				return decimal.Zero, fmt.Errorf("failed to skip fmt chunk extension: %w", err)
			}
			format = &wavFormat{
				AudioFormat:   binary.LittleEndian.Uint16(data[0:2]),
				Channels:      binary.LittleEndian.Uint16(data[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(data[4:8]),
				ByteRate:      binary.LittleEndian.Uint32(data[8:12]),
				BlockAlign:    binary.LittleEndian.Uint16(data[12:14]),
				BitsPerSample: binary.LittleEndian.Uint16(data[14:16]),
			}
		case "data":
			if format == nil {
				return decimal.Zero, errMissingFmtChunk
			}
			if format.ByteRate == 0 {
				return decimal.Zero, errInvalidByteRate
			}
			return decimal.NewFromInt(size).Div(decimal.NewFromInt(int64(format.ByteRate))), nil
		default:
			// Chunks are word aligned.
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return decimal.Zero, fmt.Errorf("failed to skip %q chunk: %w", id, err)
			}
		}
	}
}
