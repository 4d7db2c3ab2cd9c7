// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

const (
	pageHeaderLen                   = 27
	idPagePayloadLength             = 19
	pageHeaderTypeBeginningOfStream = 0x02
	idPageSignature                 = "OpusHead"
	pageHeaderSignature             = "OggS"

	// Opus granule positions are always expressed at 48KHz, whatever the
	// input sample rate in the ID header.
	opusGranuleRate = 48000
)

var (
	errNilStream                 = errors.New("stream is nil")
	errBadIDPageSignature        = errors.New("bad header signature")
	errBadIDPageType             = errors.New("wrong header, expected beginning of stream")
	errBadIDPageLength           = errors.New("payload for id page must be 19 bytes")
	errBadIDPagePayloadSignature = errors.New("bad payload signature")
	errChecksumMismatch          = errors.New("expected and actual checksum do not match")
)

// oggHeader is the Opus ID header found in the first page of the stream.
//
// https://tools.ietf.org/html/rfc7845.html#section-5.1
type oggHeader struct {
	Version    uint8
	Channels   uint8
	PreSkip    uint16
	SampleRate uint32
}

type oggPageHeader struct {
	sig             [4]byte
	headerType      uint8
	granulePosition uint64
}

type oggReader struct {
	stream        io.Reader
	checksumTable *[256]uint32
}

func newOggReader(in io.Reader) (*oggReader, *oggHeader, error) {
	if in == nil {
		return nil, nil, errNilStream
	}

	reader := &oggReader{
		stream:        in,
		checksumTable: generateChecksumTable(),
	}

	payload, pageHeader, err := reader.nextPage()
	if err != nil {
		return nil, nil, err
	}

	if string(pageHeader.sig[:]) != pageHeaderSignature {
		return nil, nil, errBadIDPageSignature
	}
	if pageHeader.headerType != pageHeaderTypeBeginningOfStream {
		return nil, nil, errBadIDPageType
	}
	if len(payload) != idPagePayloadLength {
		return nil, nil, errBadIDPageLength
	}
	if string(payload[:8]) != idPageSignature {
		return nil, nil, errBadIDPagePayloadSignature
	}

	return reader, &oggHeader{
		Version:    payload[8],
		Channels:   payload[9],
		PreSkip:    binary.LittleEndian.Uint16(payload[10:12]),
		SampleRate: binary.LittleEndian.Uint32(payload[12:16]),
	}, nil
}

// nextPage reads a full page, verifying its checksum.
func (o *oggReader) nextPage() ([]byte, *oggPageHeader, error) {
	h := make([]byte, pageHeaderLen)
	if _, err := io.ReadFull(o.stream, h); err != nil {
		return nil, nil, err
	}

	pageHeader := &oggPageHeader{
		sig:             [4]byte{h[0], h[1], h[2], h[3]},
		headerType:      h[5],
		granulePosition: binary.LittleEndian.Uint64(h[6 : 6+8]),
	}

	sizeBuffer := make([]byte, h[26])
	if _, err := io.ReadFull(o.stream, sizeBuffer); err != nil {
		return nil, nil, err
	}

	payloadSize := 0
	for _, s := range sizeBuffer {
		payloadSize += int(s)
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(o.stream, payload); err != nil {
		return nil, nil, err
	}

	var checksum uint32
	update := func(v byte) {
		checksum = (checksum << 8) ^ o.checksumTable[byte(checksum>>24)^v]
	}
	for i := range h {
		// The checksum field itself counts as zeroes.
		if i > 21 && i < 26 {
			update(0)
			continue
		}
		update(h[i])
	}
	for _, s := range sizeBuffer {
		update(s)
	}
	for _, b := range payload {
		update(b)
	}

	if binary.LittleEndian.Uint32(h[22:22+4]) != checksum {
		return nil, nil, errChecksumMismatch
	}

	return payload, pageHeader, nil
}

// OggDuration returns the duration in seconds of an Ogg/Opus stream, derived
// from the granule position of its last page.
func OggDuration(r io.Reader) (decimal.Decimal, error) {
	reader, header, err := newOggReader(r)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create ogg reader: %w", err)
	}

	var lastGP uint64
	for {
		_, hdr, err := reader.nextPage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return decimal.Zero, fmt.Errorf("failed to parse page: %w", err)
		}
		if hdr.granulePosition > lastGP {
			lastGP = hdr.granulePosition
		}
	}

	if lastGP <= uint64(header.PreSkip) {
		return decimal.Zero, nil
	}

	samples := decimal.NewFromInt(int64(lastGP - uint64(header.PreSkip)))
	return samples.Div(decimal.NewFromInt(opusGranuleRate)), nil
}

func generateChecksumTable() *[256]uint32 {
	var table [256]uint32
	const poly = 0x04c11db7

	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if (r & 0x80000000) != 0 {
				r = (r << 1) ^ poly
			} else {
				r <<= 1
			}
			table[i] = (r & 0xffffffff)
		}
	}
	return &table
}
