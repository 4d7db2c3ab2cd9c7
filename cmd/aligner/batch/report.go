package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
)

const (
	ReportFilename = "output_errors.txt"
	reportHeader   = "The following exceptions were encountered during the ouput of the alignments to TextGrids:\n\n"
)

// Result is the outcome of aligning a single recording.
type Result struct {
	Recording string
	Path      string
	Err       error
}

// Report gathers the results of a batch run.
type Report struct {
	RunID   string
	Results []Result
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

func (r *Report) sort() {
	sort.SliceStable(r.Results, func(i, j int) bool {
		return r.Results[i].Recording < r.Results[j].Recording
	})
}

// Failed returns the results carrying an error, in recording order.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// ErrorOrNil combines the errors of every failed recording, or returns nil
// if all of them succeeded.
func (r *Report) ErrorOrNil() error {
	var merr *multierror.Error
	for _, res := range r.Failed() {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", res.Recording, res.Err))
	}
	return merr.ErrorOrNil()
}

// WriteFile writes the error report in dir. Nothing gets written when no
// recording failed. The returned path is empty in such case.
func (r *Report) WriteFile(dir string) (string, error) {
	failed := r.Failed()
	if len(failed) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, ReportFilename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprint(w, reportHeader)
	for _, res := range failed {
		// %+v prints the stack trace captured when the failure happened.
		fmt.Fprintf(w, "%s:\n%+v\n\n", res.Recording, res.Err)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, f.Close()
}
