package corpus

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattermost/calls-aligner/cmd/aligner/ctm"

	"github.com/shopspring/decimal"
)

// readColumns calls fn with the whitespace separated fields of every non
// blank line in path.
func readColumns(path string, fn func(fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(fields); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	return nil
}

// readSymbolTable reads a "symbol id" table into an id -> symbol mapping.
func readSymbolTable(path string) (ctm.SymbolTable, error) {
	st := make(ctm.SymbolTable)
	err := readColumns(path, func(fields []string) error {
		if len(fields) != 2 {
			return fmt.Errorf("expected 2 fields, got %d", len(fields))
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid symbol id %q", fields[1])
		}
		st[id] = fields[0]
		return nil
	})
	return st, err
}

type utt2spk struct {
	speakers map[string]string
	order    []string
}

// readUtt2Spk reads "utterance speaker" pairs, keeping the file order.
func readUtt2Spk(path string) (utt2spk, error) {
	u := utt2spk{speakers: make(map[string]string)}
	err := readColumns(path, func(fields []string) error {
		if len(fields) != 2 {
			return fmt.Errorf("expected 2 fields, got %d", len(fields))
		}
		if _, ok := u.speakers[fields[0]]; !ok {
			u.order = append(u.order, fields[0])
		}
		u.speakers[fields[0]] = fields[1]
		return nil
	})
	return u, err
}

// readSegments reads "utterance recording begin end" lines.
func readSegments(path string) (map[string]ctm.Segment, error) {
	segments := make(map[string]ctm.Segment)
	err := readColumns(path, func(fields []string) error {
		if len(fields) != 4 {
			return fmt.Errorf("expected 4 fields, got %d", len(fields))
		}
		begin, err := decimal.NewFromString(fields[2])
		if err != nil {
			return fmt.Errorf("invalid segment begin %q", fields[2])
		}
		end, err := decimal.NewFromString(fields[3])
		if err != nil {
			return fmt.Errorf("invalid segment end %q", fields[3])
		}
		segments[fields[0]] = ctm.Segment{
			Recording: fields[1],
			Begin:     begin,
			End:       end,
		}
		return nil
	})
	return segments, err
}

// readReco2Dur reads "recording seconds" lines.
func readReco2Dur(path string) (map[string]decimal.Decimal, error) {
	durations := make(map[string]decimal.Decimal)
	err := readColumns(path, func(fields []string) error {
		if len(fields) != 2 {
			return fmt.Errorf("expected 2 fields, got %d", len(fields))
		}
		d, err := decimal.NewFromString(fields[1])
		if err != nil {
			return fmt.Errorf("invalid duration %q", fields[1])
		}
		durations[fields[0]] = d
		return nil
	})
	return durations, err
}

// readWavSCP reads "recording path" lines. Piped commands are not supported.
func readWavSCP(path string) (map[string]string, error) {
	files := make(map[string]string)
	err := readColumns(path, func(fields []string) error {
		if len(fields) != 2 {
			return fmt.Errorf("unsupported wav.scp entry with %d fields", len(fields))
		}
		files[fields[0]] = fields[1]
		return nil
	})
	return files, err
}
