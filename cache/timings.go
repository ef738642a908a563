package cache

// This file contains the timing table used to order pending cases.

import "time"

type table map[string]map[string]float64

func (t table) set(suite, path string, v float64) {
	if t[suite] == nil {
		t[suite] = make(map[string]float64)
	}
	t[suite][path] = v
}

// TimingStore maps suite -> path -> last observed total duration. Like
// ResultStore it is owned by the coordinating loop.
type TimingStore struct {
	path string
	data table
	// changed holds the entries set since the last Load or Flush
	changed table
}

func NewTimingStore(path string) *TimingStore {
	return &TimingStore{path: path, data: make(table), changed: make(table)}
}

// Load reads the persisted table. On error the store stays empty.
func (s *TimingStore) Load() error {
	data := make(table)
	s.changed = make(table)
	if err := readDocument(s.path, &data); err != nil {
		s.data = make(table)
		return err
	}
	s.data = data
	return nil
}

// Get returns the last observed duration of path in suite.
func (s *TimingStore) Get(suite, path string) (time.Duration, bool) {
	v, ok := s.data[suite][path]
	if !ok {
		return 0, false
	}
	return fromSeconds(v), true
}

// Set records the observed duration of path in suite.
func (s *TimingStore) Set(suite, path string, d time.Duration) {
	s.data.set(suite, path, seconds(d))
	s.changed.set(suite, path, seconds(d))
}

// Len returns the number of recorded durations.
func (s *TimingStore) Len() int {
	n := 0
	for _, entries := range s.data {
		n += len(entries)
	}
	return n
}

// Flush writes the table when it changed since the last Load or Flush.
// The changed entries are merged into the document currently on disk, so
// entries written by a concurrent run survive. An unreadable document is
// replaced by the in-memory table.
func (s *TimingStore) Flush() error {
	if len(s.changed) == 0 {
		return nil
	}
	merged := make(table)
	if err := readDocument(s.path, &merged); err != nil {
		merged = s.data
	}
	for suite, entries := range s.changed {
		for path, v := range entries {
			merged.set(suite, path, v)
		}
	}
	if err := writeDocument(s.path, merged); err != nil {
		return err
	}
	s.data = merged
	s.changed = make(table)
	return nil
}
