package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadSummary loads summary.json from a finished run directory.
func ReadSummary(runDir string) (Stats, error) {
	var s Stats
	if err := readJSON(filepath.Join(runDir, SummaryFile), &s); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// ReadStatus loads run.json.
func ReadStatus(runDir string) (Status, error) {
	var s Status
	if err := readJSON(filepath.Join(runDir, StatusFile), &s); err != nil {
		return Status{}, err
	}
	return s, nil
}

// ErrorRecord is one decoded line of errors.jsonl.
type ErrorRecord struct {
	TS            string `json:"ts"`
	Stage         string `json:"stage"`
	Error         string `json:"error"`
	Retryable     bool   `json:"retryable"`
	OpportunityID string `json:"opportunity_id,omitempty"`
}

// TailErrors returns up to n of the most recent recorded errors. A run
// without errors.jsonl has none.
func TailErrors(runDir string, n int) ([]ErrorRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(runDir, ErrorsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ErrorsFile, err)
	}
	defer file.Close()

	var recs []ErrorRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r ErrorRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ErrorsFile, err)
		}
		recs = append(recs, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", ErrorsFile, err)
	}
	if len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
