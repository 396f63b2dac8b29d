// Package notebook keeps a named library of notebook targets so queries can
// address "physics-notes" instead of a full URL. The library lives in a
// single JSON file under the data directory.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

var (
	// ErrNotFound means no notebook matches the given ID or name.
	ErrNotFound = errors.New("notebook: not found")
	// ErrNoActive means no notebook has been activated yet.
	ErrNoActive = errors.New("notebook: no active notebook")
)

// Notebook is one registered target.
type Notebook struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	AddedAt     time.Time `json:"added_at"`
	LastUsed    time.Time `json:"last_used,omitempty"`
	QueryCount  int       `json:"query_count"`
}

type libraryDocument struct {
	Notebooks []Notebook `json:"notebooks"`
	ActiveID  string     `json:"active_id,omitempty"`
}

// Library manages the notebook file.
type Library struct {
	path string
	mu   sync.Mutex
	doc  libraryDocument
}

// Open loads the library from path, starting empty when the file is missing.
func Open(path string) (*Library, error) {
	lib := &Library{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("read notebook library: %w", err)
	}
	if err := json.Unmarshal(data, &lib.doc); err != nil {
		return nil, fmt.Errorf("parse notebook library %s: %w", path, err)
	}
	return lib, nil
}

// Add registers a notebook and returns it. Names must be unique.
func (l *Library) Add(name, target, description string, tags []string) (*Notebook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("notebook name is required")
	}
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, nb := range l.doc.Notebooks {
		if strings.EqualFold(nb.Name, name) {
			return nil, fmt.Errorf("notebook %q already exists", name)
		}
	}

	nb := Notebook{
		ID:          uuid.NewString()[:8],
		Name:        name,
		URL:         target,
		Description: description,
		Tags:        tags,
		AddedAt:     time.Now(),
	}
	l.doc.Notebooks = append(l.doc.Notebooks, nb)
	if err := l.save(); err != nil {
		return nil, err
	}
	return &nb, nil
}

// List returns all notebooks sorted by name.
func (l *Library) List() []Notebook {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Notebook, len(l.doc.Notebooks))
	copy(out, l.doc.Notebooks)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get resolves a notebook by ID or name, case-insensitive on name.
func (l *Library) Get(ref string) (*Notebook, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nb := l.locate(ref)
	if nb == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	out := *nb
	return &out, nil
}

// Search returns notebooks whose name, description or tags match the
// pattern. Plain terms match as case-insensitive substrings.
func (l *Library) Search(pattern string) ([]Notebook, error) {
	lowered := strings.ToLower(pattern)
	if !strings.ContainsAny(lowered, "*?[{") {
		lowered = "*" + lowered + "*"
	}
	matcher, err := glob.Compile(lowered)
	if err != nil {
		return nil, fmt.Errorf("bad search pattern %q: %w", pattern, err)
	}

	var matched []Notebook
	for _, nb := range l.List() {
		if matcher.Match(strings.ToLower(nb.Name)) || matcher.Match(strings.ToLower(nb.Description)) {
			matched = append(matched, nb)
			continue
		}
		for _, tag := range nb.Tags {
			if matcher.Match(strings.ToLower(tag)) {
				matched = append(matched, nb)
				break
			}
		}
	}
	return matched, nil
}

// Activate marks a notebook as the default target for queries.
func (l *Library) Activate(ref string) (*Notebook, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	nb := l.locate(ref)
	if nb == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	l.doc.ActiveID = nb.ID
	if err := l.save(); err != nil {
		return nil, err
	}
	out := *nb
	return &out, nil
}

// Active returns the activated notebook.
func (l *Library) Active() (*Notebook, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.doc.ActiveID == "" {
		return nil, ErrNoActive
	}
	nb := l.locate(l.doc.ActiveID)
	if nb == nil {
		return nil, ErrNoActive
	}
	out := *nb
	return &out, nil
}

// Remove deletes a notebook, clearing the active marker when it pointed at it.
func (l *Library) Remove(ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	nb := l.locate(ref)
	if nb == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, ref)
	}

	kept := l.doc.Notebooks[:0]
	for _, existing := range l.doc.Notebooks {
		if existing.ID != nb.ID {
			kept = append(kept, existing)
		}
	}
	l.doc.Notebooks = kept
	if l.doc.ActiveID == nb.ID {
		l.doc.ActiveID = ""
	}
	return l.save()
}

// RecordQuery bumps usage counters for the notebook owning target. Unknown
// targets are ignored; ad-hoc URLs need no library entry.
func (l *Library) RecordQuery(target string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.doc.Notebooks {
		if l.doc.Notebooks[i].URL == target {
			l.doc.Notebooks[i].QueryCount++
			l.doc.Notebooks[i].LastUsed = time.Now()
			return l.save()
		}
	}
	return nil
}

// Stats summarizes the library for display.
type Stats struct {
	Total        int
	TotalQueries int
	MostQueried  string
}

// Stats computes library-wide usage numbers.
func (l *Library) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Total: len(l.doc.Notebooks)}
	best := -1
	for _, nb := range l.doc.Notebooks {
		stats.TotalQueries += nb.QueryCount
		if nb.QueryCount > best {
			best = nb.QueryCount
			stats.MostQueried = nb.Name
		}
	}
	if stats.TotalQueries == 0 {
		stats.MostQueried = ""
	}
	return stats
}

// locate resolves ref against ID, then name. Callers hold the lock.
func (l *Library) locate(ref string) *Notebook {
	for i := range l.doc.Notebooks {
		if l.doc.Notebooks[i].ID == ref {
			return &l.doc.Notebooks[i]
		}
	}
	for i := range l.doc.Notebooks {
		if strings.EqualFold(l.doc.Notebooks[i].Name, ref) {
			return &l.doc.Notebooks[i]
		}
	}
	return nil
}

// save writes the document atomically. Callers hold the lock.
func (l *Library) save() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode notebook library: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write notebook library: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace notebook library: %w", err)
	}
	return nil
}

func validateTarget(target string) error {
	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid notebook URL %q: %w", target, err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("notebook URL %q must use https", target)
	}
	if parsed.Host == "" {
		return fmt.Errorf("notebook URL %q has no host", target)
	}
	return nil
}
