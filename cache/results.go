package cache

// This file contains the result cache: suite -> path -> last verified
// outcome of a case.

import (
	"math"
	"time"

	"github.com/nytrix/nytest/model"
)

// PhaseRecord is the persisted form of a phase result. Output is never
// persisted.
type PhaseRecord struct {
	Passed     bool     `json:"passed"`
	Duration   float64  `json:"duration"`
	Code       int      `json:"code"`
	Skipped    bool     `json:"skipped"`
	CompileDur *float64 `json:"compile_dur,omitempty"`
	RunDur     *float64 `json:"run_dur,omitempty"`
}

// Entry is the persisted form of a case result.
type Entry struct {
	Sig      string       `json:"sig"`
	OK       bool         `json:"ok"`
	AOT      *PhaseRecord `json:"aot"`
	Repl     *PhaseRecord `json:"repl"`
	ELF      *PhaseRecord `json:"elf"`
	TotalDur float64      `json:"total_dur"`
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Pack converts a phase result into its persisted form.
func Pack(r model.PhaseResult) *PhaseRecord {
	rec := &PhaseRecord{
		Passed:   r.Passed(),
		Duration: seconds(r.Duration),
		Code:     r.ExitCode,
		Skipped:  r.Skipped(),
	}
	if r.Compile != nil {
		v := seconds(*r.Compile)
		rec.CompileDur = &v
	}
	if r.Run != nil {
		v := seconds(*r.Run)
		rec.RunDur = &v
	}
	return rec
}

// Unpack converts a persisted record back into a terminal phase result.
func (p *PhaseRecord) Unpack(phase model.Phase) model.PhaseResult {
	if p == nil {
		return model.PhaseResult{Phase: phase, Status: model.StatusFailed, ExitCode: model.ExitCodeSpawnError}
	}
	r := model.PhaseResult{
		Phase:    phase,
		Duration: fromSeconds(p.Duration),
		ExitCode: p.Code,
	}
	switch {
	case p.Skipped:
		r.Status = model.StatusSkipped
	case p.Passed:
		r.Status = model.StatusPassed
	case p.Code == model.ExitCodeTimeout:
		r.Status = model.StatusTimedOut
	default:
		r.Status = model.StatusFailed
	}
	if p.CompileDur != nil {
		d := fromSeconds(*p.CompileDur)
		r.Compile = &d
	}
	if p.RunDur != nil {
		d := fromSeconds(*p.RunDur)
		r.Run = &d
	}
	return r
}

// NewEntry builds the cache entry of a finished case.
func NewEntry(sig string, r model.CaseResult) Entry {
	e := Entry{
		Sig:      sig,
		OK:       r.OK(),
		AOT:      Pack(r.Direct),
		ELF:      Pack(r.Native),
		TotalDur: seconds(r.Total()),
	}
	if r.Interactive != nil {
		e.Repl = Pack(*r.Interactive)
	}
	return e
}

// Result rebuilds a cached case result for c.
func (e Entry) Result(c model.TestCase) model.CaseResult {
	r := model.CaseResult{
		Case:   c,
		Direct: e.AOT.Unpack(model.PhaseDirect),
		Native: e.ELF.Unpack(model.PhaseNative),
		Cached: true,
	}
	if e.Repl != nil {
		repl := e.Repl.Unpack(model.PhaseInteractive)
		r.Interactive = &repl
	}
	return r
}

// Duration is the total phase time recorded with the entry.
func (e Entry) Duration() time.Duration {
	return fromSeconds(e.TotalDur)
}

// Requirements are the phases the current run needs from a cache entry.
type Requirements struct {
	Interactive bool
}

// ResultStore is the result cache. It is not safe for concurrent use: only
// the coordinating loop reads and writes it.
type ResultStore struct {
	path string
	// interactive allows entries to satisfy an interactive requirement
	interactive bool
	data        map[string]map[string]Entry
	dirty       bool
}

func NewResultStore(path string, interactiveCache bool) *ResultStore {
	return &ResultStore{
		path:        path,
		interactive: interactiveCache,
		data:        make(map[string]map[string]Entry),
	}
}

// Load reads the persisted table. On error the store stays empty.
func (s *ResultStore) Load() error {
	data := make(map[string]map[string]Entry)
	if err := readDocument(s.path, &data); err != nil {
		s.data = make(map[string]map[string]Entry)
		return err
	}
	s.data = data
	s.dirty = false
	return nil
}

// Lookup returns the stored entry when it can stand in for a real run: the
// signature matches, the entry passed, the direct and native phases are
// present, and the interactive phase is present when req needs it.
func (s *ResultStore) Lookup(suite, path, sig string, req Requirements) (Entry, bool) {
	e, ok := s.data[suite][path]
	if !ok || e.Sig != sig || !e.OK {
		return Entry{}, false
	}
	if e.AOT == nil || e.ELF == nil {
		return Entry{}, false
	}
	if req.Interactive && (e.Repl == nil || !s.interactive) {
		return Entry{}, false
	}
	return e, true
}

// Store records e for suite and path.
func (s *ResultStore) Store(suite, path string, e Entry) {
	if s.data[suite] == nil {
		s.data[suite] = make(map[string]Entry)
	}
	s.data[suite][path] = e
	s.dirty = true
}

// Len returns the number of stored entries.
func (s *ResultStore) Len() int {
	n := 0
	for _, entries := range s.data {
		n += len(entries)
	}
	return n
}

// Suites returns the number of entries per suite.
func (s *ResultStore) Suites() map[string]int {
	out := make(map[string]int, len(s.data))
	for suite, entries := range s.data {
		out[suite] = len(entries)
	}
	return out
}

// Flush writes the table when it changed since the last Load or Flush.
func (s *ResultStore) Flush() error {
	if !s.dirty {
		return nil
	}
	if err := writeDocument(s.path, s.data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
