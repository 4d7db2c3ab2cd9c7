package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeWAV wraps numSamples of silent 16-bit PCM in a WAV container. An
// optional extra chunk is placed between fmt and data.
func makeWAV(sampleRate, channels, numSamples int, extra []byte) []byte {
	const bitDepth = 16
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*bitDepth*channels/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth*channels/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))

	if extra != nil {
		buf.WriteString("LIST")
		binary.Write(&buf, binary.LittleEndian, uint32(len(extra)))
		buf.Write(extra)
		if len(extra)%2 == 1 {
			buf.WriteByte(0)
		}
	}

	dataLen := numSamples * channels * bitDepth / 8
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	wav := buf.Bytes()
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	return wav
}

func oggPage(headerType byte, granulePosition uint64, index uint32, payload []byte) []byte {
	var segments []byte
	n := len(payload)
	for n >= 255 {
		segments = append(segments, 255)
		n -= 255
	}
	segments = append(segments, byte(n))

	h := make([]byte, pageHeaderLen)
	copy(h, pageHeaderSignature)
	h[5] = headerType
	binary.LittleEndian.PutUint64(h[6:], granulePosition)
	binary.LittleEndian.PutUint32(h[14:], 1)
	binary.LittleEndian.PutUint32(h[18:], index)
	h[26] = byte(len(segments))

	page := append(append(h, segments...), payload...)

	table := generateChecksumTable()
	var checksum uint32
	for _, b := range page {
		checksum = (checksum << 8) ^ table[byte(checksum>>24)^b]
	}
	binary.LittleEndian.PutUint32(page[22:], checksum)

	return page
}

func opusHead(preSkip uint16) []byte {
	payload := make([]byte, idPagePayloadLength)
	copy(payload, idPageSignature)
	payload[8] = 1
	payload[9] = 1
	binary.LittleEndian.PutUint16(payload[10:], preSkip)
	binary.LittleEndian.PutUint32(payload[12:], 16000)
	return payload
}

func makeOgg(preSkip uint16, granules ...uint64) []byte {
	var buf bytes.Buffer
	buf.Write(oggPage(pageHeaderTypeBeginningOfStream, 0, 0, opusHead(preSkip)))
	buf.Write(oggPage(0, 0, 1, []byte("OpusTags")))
	for i, gp := range granules {
		buf.Write(oggPage(0, gp, uint32(i+2), make([]byte, 300)))
	}
	return buf.Bytes()
}

func TestWAVDuration(t *testing.T) {
	t.Run("mono", func(t *testing.T) {
		d, err := WAVDuration(bytes.NewReader(makeWAV(16000, 1, 16000, nil)))
		require.NoError(t, err)
		require.Equal(t, "1", d.String())
	})

	t.Run("stereo with extra chunk", func(t *testing.T) {
		d, err := WAVDuration(bytes.NewReader(makeWAV(8000, 2, 20000, []byte("odd"))))
		require.NoError(t, err)
		require.Equal(t, "2.5", d.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		wav := makeWAV(16000, 1, 10, nil)
		copy(wav, "RIFX")
		_, err := WAVDuration(bytes.NewReader(wav))
		require.ErrorIs(t, err, errBadRIFFSignature)
	})

	t.Run("not wave", func(t *testing.T) {
		wav := makeWAV(16000, 1, 10, nil)
		copy(wav[8:], "AVI ")
		_, err := WAVDuration(bytes.NewReader(wav))
		require.ErrorIs(t, err, errBadWAVESignature)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := WAVDuration(bytes.NewReader([]byte("RIFF")))
		require.Error(t, err)
	})

	t.Run("extended fmt chunk", func(t *testing.T) {
		wav := makeWAV(16000, 1, 8000, nil)
		binary.LittleEndian.PutUint32(wav[16:], 18)
		wav = append(wav[:36], append([]byte{0, 0}, wav[36:]...)...)
		d, err := WAVDuration(bytes.NewReader(wav))
		require.NoError(t, err)
		require.Equal(t, "0.5", d.String())
	})

	t.Run("oversized fmt chunk", func(t *testing.T) {
		wav := makeWAV(16000, 1, 10, nil)
		binary.LittleEndian.PutUint32(wav[16:], 0xfffffff0)
		_, err := WAVDuration(bytes.NewReader(wav))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to skip fmt chunk extension")
	})

	t.Run("missing data", func(t *testing.T) {
		wav := makeWAV(16000, 1, 0, nil)
		_, err := WAVDuration(bytes.NewReader(wav[:len(wav)-8]))
		require.ErrorIs(t, err, errMissingDataChunk)
	})
}

func TestOggDuration(t *testing.T) {
	t.Run("last granule position", func(t *testing.T) {
		d, err := OggDuration(bytes.NewReader(makeOgg(312, 48312, 96312)))
		require.NoError(t, err)
		require.Equal(t, "2", d.String())
	})

	t.Run("no audio pages", func(t *testing.T) {
		d, err := OggDuration(bytes.NewReader(makeOgg(312)))
		require.NoError(t, err)
		require.True(t, d.IsZero())
	})

	t.Run("corrupted page", func(t *testing.T) {
		ogg := makeOgg(0, 24000)
		ogg[len(ogg)-1] ^= 0xff
		_, err := OggDuration(bytes.NewReader(ogg))
		require.ErrorIs(t, err, errChecksumMismatch)
	})

	t.Run("not opus", func(t *testing.T) {
		payload := opusHead(0)
		copy(payload, "VorbHead")
		_, err := OggDuration(bytes.NewReader(oggPage(pageHeaderTypeBeginningOfStream, 0, 0, payload)))
		require.ErrorIs(t, err, errBadIDPagePayloadSignature)
	})

	t.Run("nil stream", func(t *testing.T) {
		_, err := OggDuration(nil)
		require.ErrorIs(t, err, errNilStream)
	})
}

func TestDuration(t *testing.T) {
	dir := t.TempDir()

	wavPath := filepath.Join(dir, "rec.WAV")
	require.NoError(t, os.WriteFile(wavPath, makeWAV(16000, 1, 8000, nil), 0600))
	d, err := Duration(wavPath)
	require.NoError(t, err)
	require.Equal(t, "0.5", d.String())

	oggPath := filepath.Join(dir, "rec.ogg")
	require.NoError(t, os.WriteFile(oggPath, makeOgg(0, 72000), 0600))
	d, err = Duration(oggPath)
	require.NoError(t, err)
	require.Equal(t, "1.5", d.String())

	mp3Path := filepath.Join(dir, "rec.mp3")
	require.NoError(t, os.WriteFile(mp3Path, nil, 0600))
	_, err = Duration(mp3Path)
	require.EqualError(t, err, `unsupported audio format ".mp3"`)

	_, err = Duration(filepath.Join(dir, "missing.wav"))
	require.Error(t, err)
}
