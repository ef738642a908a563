package report

// This file contains the per-phase timing profile written as JSON.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nytrix/nytest/model"
)

// ProfileRevision tags the JSON profile layout.
const ProfileRevision = "phase-v1"

// PhaseTotals is the millisecond breakdown of one or more cases.
type PhaseTotals struct {
	MS           int64 `json:"ms"`
	AOTMS        int64 `json:"aot_ms"`
	ReplMS       int64 `json:"repl_ms"`
	ELFMS        int64 `json:"elf_ms"`
	ELFCompileMS int64 `json:"elf_compile_ms"`
	ELFRunMS     int64 `json:"elf_run_ms"`
	CachedTests  int   `json:"cached_tests"`
}

func (t *PhaseTotals) add(o PhaseTotals) {
	t.MS += o.MS
	t.AOTMS += o.AOTMS
	t.ReplMS += o.ReplMS
	t.ELFMS += o.ELFMS
	t.ELFCompileMS += o.ELFCompileMS
	t.ELFRunMS += o.ELFRunMS
}

func millis(d time.Duration) int64 {
	return d.Round(time.Millisecond).Milliseconds()
}

// Breakdown splits the duration of res by phase. A native phase without
// a compile and run split counts entirely as run time.
func Breakdown(res model.CaseResult) PhaseTotals {
	b := PhaseTotals{
		AOTMS: millis(res.Direct.Duration),
		ELFMS: millis(res.Native.Duration),
	}
	if res.Interactive != nil {
		b.ReplMS = millis(res.Interactive.Duration)
	}
	if res.Native.Compile != nil {
		b.ELFCompileMS = millis(*res.Native.Compile)
	}
	if res.Native.Run != nil {
		b.ELFRunMS = millis(*res.Native.Run)
	}
	if b.ELFMS > 0 && b.ELFCompileMS == 0 && b.ELFRunMS == 0 {
		b.ELFRunMS = b.ELFMS
	}
	b.MS = b.AOTMS + b.ReplMS + b.ELFMS
	return b
}

// ProfileSuite aggregates the cases of one suite.
type ProfileSuite struct {
	Tests int   `json:"tests"`
	SumMS int64 `json:"sum_ms"`
	PhaseTotals
}

// ProfileTest is the breakdown of a single case.
type ProfileTest struct {
	Suite   string `json:"suite"`
	Display string `json:"display"`
	Cached  bool   `json:"cached"`
	PhaseTotals
}

// Profile is the JSON phase profile of a run.
type Profile struct {
	Rev         string                   `json:"rev"`
	PhaseTotals PhaseTotals              `json:"phase_totals"`
	Suites      map[string]*ProfileSuite `json:"suites"`
	Tests       map[string]*ProfileTest  `json:"tests"`
	GeneratedAt int64                    `json:"generated_at"`
	DurationMS  int64                    `json:"duration_ms"`
	Total       int                      `json:"total"`
	Passed      int                      `json:"passed"`
	Failed      int                      `json:"failed"`

	root string
}

func NewProfile(root string) *Profile {
	return &Profile{
		Rev:    ProfileRevision,
		Suites: make(map[string]*ProfileSuite),
		Tests:  make(map[string]*ProfileTest),
		root:   root,
	}
}

func (p *Profile) relPath(c model.TestCase) string {
	path := c.AbsPath
	if path == "" {
		return filepath.ToSlash(c.Path)
	}
	if rel, err := filepath.Rel(p.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// Record adds res. Cache hits carry the phase durations of the run that
// produced them.
func (p *Profile) Record(res model.CaseResult) {
	b := Breakdown(res)
	p.PhaseTotals.add(b)

	suite := res.Case.Suite
	s, ok := p.Suites[suite]
	if !ok {
		s = &ProfileSuite{}
		p.Suites[suite] = s
	}
	s.Tests++
	s.SumMS += b.MS
	s.PhaseTotals.add(b)
	if res.Cached {
		s.CachedTests++
		p.PhaseTotals.CachedTests++
	}

	rel := p.relPath(res.Case)
	p.Tests[rel] = &ProfileTest{
		Suite:       suite,
		Display:     Shorten("", rel),
		Cached:      res.Cached,
		PhaseTotals: b,
	}
}

// Write stores the profile at path with the run totals from s.
func (p *Profile) Write(path string, s *Summary, now time.Time) error {
	p.GeneratedAt = now.Unix()
	p.DurationMS = now.Sub(s.Start).Milliseconds()
	p.Total = s.Total
	p.Passed = s.Passed
	p.Failed = s.Failed()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create profile directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}
