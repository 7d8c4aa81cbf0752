package runlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Log is the file-backed Sink. A single mutex serializes appends so lines
// from concurrent workers never interleave.
type Log struct {
	*counters
	runID string
	dir   string

	writeMu sync.Mutex
	// writeErr keeps the first append failure; Finalize reports it.
	writeErr error
}

// Open creates dir if needed and marks the run as running.
func Open(runID, dir string) (*Log, error) {
	return OpenAt(runID, dir, time.Now)
}

// OpenAt is Open with an injected clock.
func OpenAt(runID, dir string, now func() time.Time) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	l := &Log{counters: newCounters(runID, now), runID: runID, dir: dir}
	st := l.Stats()
	if err := writeJSON(filepath.Join(dir, StatusFile), Status{RunID: runID, StartedAt: st.StartedAt, Status: StatusRunning}); err != nil {
		return nil, err
	}
	return l, nil
}

// Dir returns the run directory.
func (l *Log) Dir() string { return l.dir }

// Event appends one line to events.jsonl.
func (l *Log) Event(action string, f Fields) {
	l.append(EventsFile, []kv{{"ts", l.timestamp()}, {"run_id", l.runID}, {"action", action}}, f)
}

// Error appends one line to errors.jsonl and counts a failure.
func (l *Log) Error(e ErrorEntry) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	head := []kv{{"ts", l.timestamp()}, {"run_id", l.runID}, {"stage", e.Stage}, {"error", msg}, {"retryable", e.Retryable}}
	if e.OpportunityID != "" {
		head = append(head, kv{"opportunity_id", e.OpportunityID})
	}
	l.append(ErrorsFile, head, e.Fields)
	l.Add(Failures, 1)
}

// Finalize rewrites run.json with the final status and writes summary.json.
func (l *Log) Finalize(status string) (Stats, error) {
	st := l.finish()
	if err := writeJSON(filepath.Join(l.dir, StatusFile), Status{RunID: l.runID, StartedAt: st.StartedAt, FinishedAt: st.FinishedAt, Status: status}); err != nil {
		return st, err
	}
	if err := writeJSON(filepath.Join(l.dir, SummaryFile), st); err != nil {
		return st, err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return st, l.writeErr
}

func (l *Log) timestamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

type kv struct {
	key string
	val any
}

// leading are field names written right after the fixed keys, in this order.
var leading = []string{"opportunity_id", "activity_id", "scorecard_id"}

// encodeLine renders head, then the leading fields, then the rest sorted
// by key, as one JSON object.
func encodeLine(head []kv, f Fields) ([]byte, error) {
	pairs := append([]kv(nil), head...)
	seen := make(map[string]bool, len(head))
	for _, p := range head {
		seen[p.key] = true
	}
	for _, k := range leading {
		if v, ok := f[k]; ok && !seen[k] {
			pairs = append(pairs, kv{k, v})
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(f))
	for k := range f {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		pairs = append(pairs, kv{k, f[k]})
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(p.key)
		val, err := json.Marshal(p.val)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", p.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func (l *Log) append(name string, head []kv, f Fields) {
	line, err := encodeLine(head, f)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err == nil {
		err = appendFile(filepath.Join(l.dir, name), line)
	}
	if err != nil && l.writeErr == nil {
		l.writeErr = fmt.Errorf("append %s: %w", name, err)
	}
}

func appendFile(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
