package triallog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scorefuse/scorefuse/schema"
)

// JSONLSink appends trial records to a JSON Lines file, one object per line.
// The file is flushed after every record so an interrupted study keeps its
// completed trials.
type JSONLSink struct {
	file *os.File
}

// StudyLogPath returns the JSONL path for a study inside dir.
func StudyLogPath(dir, studyName string) string {
	return filepath.Join(dir, studyName+".jsonl")
}

// NewJSONLSink opens the trial log at path for appending, creating parent
// directories as needed.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create study directory %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open trial log %s: %w", path, err)
	}
	return &JSONLSink{file: file}, nil
}

// Append writes one trial record as a JSON line.
func (s *JSONLSink) Append(record schema.TrialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cannot encode trial record: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("cannot write trial record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	return s.file.Close()
}

// ReadJSONL loads all trial records from a JSONL file.
func ReadJSONL(path string) ([]schema.TrialRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open trial log %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var records []schema.TrialRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record schema.TrialRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("bad trial record at %s:%d: %w", path, line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read trial log %s: %w", path, err)
	}
	return records, nil
}

// BestRecord returns the completed record with the highest reward, or false
// when no trial completed.
func BestRecord(records []schema.TrialRecord) (schema.TrialRecord, bool) {
	var best schema.TrialRecord
	found := false
	for _, record := range records {
		if record.State != schema.TrialComplete {
			continue
		}
		if !found || record.Reward > best.Reward {
			best = record
			found = true
		}
	}
	return best, found
}
