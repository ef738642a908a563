package report

// This file contains the pprof view of a run. Every case becomes a sample
// whose stack is the case under its suite, with one value per phase, so
// `go tool pprof -top` ranks the slowest cases and phases.

import (
	"fmt"
	"os"
	"time"

	"github.com/google/pprof/profile"
	"github.com/nytrix/nytest/model"
)

// Sample types of the timing profile, in value order.
var timingSampleTypes = []string{"aot", "repl", "native_compile", "native_run"}

// TimingProfile builds a pprof profile of case durations.
type TimingProfile struct {
	profile   *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
	mappings  map[string]*profile.Mapping
}

// NewTimingProfile starts a profile for a run that began at start.
func NewTimingProfile(start time.Time) *TimingProfile {
	p := &profile.Profile{
		TimeNanos:  start.UnixNano(),
		PeriodType: &profile.ValueType{Type: "wall", Unit: "milliseconds"},
		Period:     1,
	}
	for _, t := range timingSampleTypes {
		p.SampleType = append(p.SampleType, &profile.ValueType{Type: t, Unit: "milliseconds"})
	}
	p.DefaultSampleType = timingSampleTypes[0]
	return &TimingProfile{
		profile:   p,
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
		mappings:  make(map[string]*profile.Mapping),
	}
}

// Record adds the phase durations of res. Cases without any measured time
// are left out.
func (t *TimingProfile) Record(res model.CaseResult) {
	b := Breakdown(res)
	values := []int64{b.AOTMS, b.ReplMS, b.ELFCompileMS, b.ELFRunMS}
	var total int64
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return
	}

	suite := res.Case.Suite
	stack := []*profile.Location{
		t.location(suite, res.Case.Path),
		t.location(suite, SuiteLabel(suite)),
	}

	for _, s := range t.profile.Sample {
		if stacksEqual(s.Location, stack) {
			for i, v := range values {
				s.Value[i] += v
			}
			return
		}
	}
	s := &profile.Sample{
		Location: stack,
		Value:    values,
		Label:    map[string][]string{"suite": {suite}},
	}
	if res.Cached {
		s.Label["cached"] = []string{"true"}
	}
	t.profile.Sample = append(t.profile.Sample, s)
}

func (t *TimingProfile) location(suite, name string) *profile.Location {
	key := suite + "\x00" + name
	if loc, ok := t.locations[key]; ok {
		return loc
	}
	loc := &profile.Location{
		ID:      uint64(len(t.profile.Location) + 1),
		Mapping: t.mapping(suite),
		Line:    []profile.Line{{Function: t.function(name)}},
	}
	t.locations[key] = loc
	t.profile.Location = append(t.profile.Location, loc)
	return loc
}

func (t *TimingProfile) function(name string) *profile.Function {
	if fn, ok := t.functions[name]; ok {
		return fn
	}
	fn := &profile.Function{
		ID:         uint64(len(t.profile.Function) + 1),
		Name:       name,
		SystemName: name,
	}
	t.functions[name] = fn
	t.profile.Function = append(t.profile.Function, fn)
	return fn
}

func (t *TimingProfile) mapping(suite string) *profile.Mapping {
	if m, ok := t.mappings[suite]; ok {
		return m
	}
	m := &profile.Mapping{
		ID:    uint64(len(t.profile.Mapping) + 1),
		File:  suite,
		Limit: ^uint64(0),
	}
	t.mappings[suite] = m
	t.profile.Mapping = append(t.profile.Mapping, m)
	return m
}

// Profile finalizes the profile for a run that ended at end.
func (t *TimingProfile) Profile(end time.Time) *profile.Profile {
	t.profile.DurationNanos = end.UnixNano() - t.profile.TimeNanos
	return t.profile
}

// Write stores the gzipped profile at path.
func (t *TimingProfile) Write(path string, end time.Time) error {
	p := t.Profile(end)
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("invalid timing profile: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write timing profile: %w", err)
	}
	return f.Close()
}

// stacksEqual returns true if two stacks have the same location IDs
func stacksEqual(a, b []*profile.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
