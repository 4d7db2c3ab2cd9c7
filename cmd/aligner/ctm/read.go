package ctm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ErrorPolicy string

const (
	ErrorPolicyAbort ErrorPolicy = "abort"
	ErrorPolicySkip  ErrorPolicy = "skip"
)

func (p ErrorPolicy) IsValid() bool {
	switch p {
	case ErrorPolicyAbort, ErrorPolicySkip:
		return true
	default:
		return false
	}
}

const maxLineSize = 1024 * 1024

// Parse reads every non blank line of r. Lines that fail to parse either stop
// the whole read or get skipped depending on policy.
func (p *Parser) Parse(r io.Reader, policy ErrorPolicy) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []Record
	var skipped int
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := p.ParseLine(line)
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				parseErr.Line = n
			}

			if policy != ErrorPolicySkip {
				return nil, err
			}

			slog.Warn("skipping ctm line", slog.Int("line", n), slog.String("err", err.Error()))
			skipped++
			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	if skipped > 0 {
		slog.Warn("ctm parsing completed with skipped lines",
			slog.String("mode", string(p.Mode)), slog.Int("skipped", skipped), slog.Int("records", len(records)))
	}

	return records, nil
}

func (p *Parser) ParseFile(path string, policy ErrorPolicy) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ctm file: %w", err)
	}
	defer f.Close()

	records, err := p.Parse(f, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return records, nil
}
