package corpus

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// silentWAV returns a 16KHz mono 16-bit WAV holding numSamples of silence.
func silentWAV(numSamples int) []byte {
	wav := make([]byte, 44+numSamples*2)
	copy(wav[0:], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:], uint32(len(wav)-8))
	copy(wav[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(wav[16:], 16)
	binary.LittleEndian.PutUint16(wav[20:], 1)
	binary.LittleEndian.PutUint16(wav[22:], 1)
	binary.LittleEndian.PutUint32(wav[24:], 16000)
	binary.LittleEndian.PutUint32(wav[28:], 32000)
	binary.LittleEndian.PutUint16(wav[32:], 2)
	binary.LittleEndian.PutUint16(wav[34:], 16)
	copy(wav[36:], "data")
	binary.LittleEndian.PutUint32(wav[40:], uint32(numSamples*2))
	return wav
}

func setupCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "lang/words.txt", "<eps> 0\nhello 1\nworld 2\n")
	writeFile(t, dir, "lang/phones.txt", "sil 1\nHH_B 2\nAH_E 3\n")
	writeFile(t, dir, "data/utt2spk", "call1_A-0001 bob\ncall1_B-0001 alice\ncall1_A-0002 bob\nsolo-0001 carol\n")
	writeFile(t, dir, "data/segments", "call1_A-0001 call1_A 0 5.5\ncall1_B-0001 call1_B 2.25 7\ncall1_A-0002 call1_A 6 9\n")
	writeFile(t, dir, "data/reco2dur", "call1_A 9.5\ncall1_B 10.25\n")
	writeFile(t, dir, "data/wav.scp", "solo-0001 audio/solo.wav\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "audio"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio", "solo.wav"), silentWAV(24000), 0600))

	return writeFile(t, dir, "corpus.yaml", `
words: lang/words.txt
phones: lang/phones.txt
utt2spk: data/utt2spk
segments: data/segments
reco2dur: data/reco2dur
wav_scp: data/wav.scp
directories:
  call1: calls/call1
`)
}

func TestLoad(t *testing.T) {
	c, err := Load(setupCorpus(t))
	require.NoError(t, err)
	require.NotNil(t, c)

	t.Run("labels", func(t *testing.T) {
		require.Equal(t, "hello", c.WordLabels().Resolve("1"))
		require.Equal(t, "HH_B", c.PhoneLabels().Resolve("2"))
		require.Equal(t, "9", c.PhoneLabels().Resolve("9"))
	})

	t.Run("defaults", func(t *testing.T) {
		require.Equal(t, []string{"_B", "_E", "_I", "_S"}, c.Positions())
		silences := c.Silences()
		require.Len(t, silences, 2)
		require.True(t, silences.Contains("sil"))
		require.True(t, silences.Contains("sp"))
	})

	t.Run("speakers and segments", func(t *testing.T) {
		require.True(t, c.HasSegments())

		spk, ok := c.Speaker("call1_B-0001")
		require.True(t, ok)
		require.Equal(t, "alice", spk)

		_, ok = c.Speaker("unknown")
		require.False(t, ok)

		seg, ok := c.Segment("call1_B-0001")
		require.True(t, ok)
		require.Equal(t, "call1_B", seg.Recording)
		require.Equal(t, "2.25", seg.Begin.String())

		_, ok = c.Segment("solo-0001")
		require.False(t, ok)
	})

	t.Run("speaker ordering", func(t *testing.T) {
		require.Equal(t, []string{"bob", "alice"}, c.SpeakerOrdering("call1"))
		require.Equal(t, []string{"carol"}, c.SpeakerOrdering("solo-0001"))
		require.Empty(t, c.SpeakerOrdering("missing"))
	})

	t.Run("directories", func(t *testing.T) {
		require.Equal(t, "calls/call1", c.Directory("call1"))
		require.Equal(t, "", c.Directory("solo-0001"))
	})

	t.Run("durations", func(t *testing.T) {
		d, err := c.Duration("call1")
		require.NoError(t, err)
		require.Equal(t, "10.25", d.String())

		d, err = c.Duration("solo-0001")
		require.NoError(t, err)
		require.Equal(t, "1.5", d.String())

		_, err = c.Duration("missing")
		require.ErrorIs(t, err, ErrUnknownDuration)
	})
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "utt2spk", "u1 a\nu2 b\n")
	path := writeFile(t, dir, "corpus.yaml", `
utt2spk: utt2spk
silences:
  optional: SIL
positions: []
speaker_ordering:
  u1: [z, a]
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Empty(t, c.Positions())
	require.Len(t, c.Silences(), 1)
	require.True(t, c.Silences().Contains("SIL"))
	require.Equal(t, []string{"z", "a"}, c.SpeakerOrdering("u1"))
	require.Equal(t, []string{"b"}, c.SpeakerOrdering("u2"))
	require.False(t, c.HasSegments())
	require.Equal(t, "7", c.WordLabels().Resolve("7"))
}

func TestLoadErrors(t *testing.T) {
	tcs := []struct {
		name     string
		files    map[string]string
		manifest string
		err      string
	}{
		{
			name:     "missing utt2spk",
			manifest: "words: words.txt\n",
			err:      "invalid manifest: utt2spk cannot be empty",
		},
		{
			name:     "bad yaml",
			manifest: "utt2spk: [\n",
			err:      "failed to decode manifest",
		},
		{
			name:     "bad symbol id",
			files:    map[string]string{"utt2spk": "u1 a\n", "words.txt": "hello one\n"},
			manifest: "utt2spk: utt2spk\nwords: words.txt\n",
			err:      `words.txt:1: invalid symbol id "one"`,
		},
		{
			name:     "bad segment",
			files:    map[string]string{"utt2spk": "u1 a\n", "segments": "u1 rec 0\n"},
			manifest: "utt2spk: utt2spk\nsegments: segments\n",
			err:      "segments:1: expected 4 fields, got 3",
		},
		{
			name:     "piped wav.scp",
			files:    map[string]string{"utt2spk": "u1 a\n", "wav.scp": "u1 sox in.wav -t wav - |\n"},
			manifest: "utt2spk: utt2spk\nwav_scp: wav.scp\n",
			err:      "unsupported wav.scp entry with 7 fields",
		},
		{
			name:     "missing file",
			manifest: "utt2spk: nope\n",
			err:      "failed to read utt2spk: failed to open",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			_, err := Load(writeFile(t, dir, "corpus.yaml", tc.manifest))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}

	t.Run("missing manifest", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "corpus.yaml"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to open manifest")
	})
}
