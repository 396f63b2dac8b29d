// Package history journals completed queries to an append-only JSON-lines
// file so past answers can be listed, searched, replayed and exported.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// ErrNotFound means no history record matches the requested ID.
var ErrNotFound = errors.New("history: record not found")

// Record is one completed query as journaled to disk.
type Record struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Target     string    `json:"target"`
	DurationMs int64     `json:"duration_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Pooled     bool      `json:"pooled"`
	Success    bool      `json:"success"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store reads and appends the history file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store over the given JSONL file. The file is created
// on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append journals one record, assigning an ID and timestamp when missing.
func (s *Store) Append(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// All returns every record in file order (oldest first). A missing file is
// an empty history.
func (s *Store) All() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("decode history record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return records, nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Record, error) {
	records, err := s.All()
	if err != nil {
		return nil, err
	}

	// Reverse to newest-first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Search returns records whose question matches the pattern, newest first.
// Patterns without glob metacharacters match as substrings; matching is
// case-insensitive either way.
func (s *Store) Search(pattern string) ([]Record, error) {
	matcher, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	records, err := s.List(0)
	if err != nil {
		return nil, err
	}

	var matched []Record
	for _, rec := range records {
		if matcher.Match(strings.ToLower(rec.Question)) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// Find returns the record whose ID matches exactly or by unique prefix.
func (s *Store) Find(id string) (*Record, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	records, err := s.All()
	if err != nil {
		return nil, err
	}

	var found *Record
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
		if strings.HasPrefix(records[i].ID, id) {
			if found != nil {
				return nil, fmt.Errorf("history: ambiguous ID prefix %q", id)
			}
			found = &records[i]
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Clear removes the history file. Missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove history file: %w", err)
	}
	return nil
}

func compilePattern(pattern string) (glob.Glob, error) {
	lowered := strings.ToLower(pattern)
	if !strings.ContainsAny(lowered, "*?[{") {
		lowered = "*" + lowered + "*"
	}
	matcher, err := glob.Compile(lowered)
	if err != nil {
		return nil, fmt.Errorf("bad search pattern %q: %w", pattern, err)
	}
	return matcher, nil
}
