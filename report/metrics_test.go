package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nytrix/nytest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetrics(t *testing.T) {
	start := time.Unix(1700000000, 0)
	s := NewSummary(start)
	for _, res := range sampleResults() {
		s.Add(res, res.Total())
	}
	s.SetJobs(model.SuiteStd, 4)

	path := filepath.Join(t.TempDir(), "nytest.prom")
	require.NoError(t, WriteMetrics(path, s, start.Add(3*time.Second)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `nytest_cases{outcome="passed",suite="std"} 1`)
	assert.Contains(t, text, `nytest_cases{outcome="cached",suite="runtime"} 1`)
	assert.Contains(t, text, `nytest_suite_jobs{suite="std"} 4`)
	assert.Contains(t, text, "nytest_run_duration_seconds 3")
	assert.Contains(t, text, "nytest_last_run_success 1")
	assert.Contains(t, text, "# HELP nytest_suite_duration_seconds Summed case duration per suite")
}

func TestSummaryRowsOrder(t *testing.T) {
	s := NewSummary(time.Now())
	for _, suite := range []string{"zeta", model.SuiteStd, "alpha", model.SuiteBenchmark} {
		s.Add(model.CaseResult{Case: model.TestCase{Suite: suite}, Direct: passed(model.PhaseDirect, 0)}, 0)
	}
	var got []string
	for _, row := range s.Rows() {
		got = append(got, row.Suite)
	}
	assert.Equal(t, []string{model.SuiteBenchmark, model.SuiteStd, "alpha", "zeta"}, got)
	assert.Equal(t, "Zeta", SuiteLabel("zeta"))
}
