package report

// This file contains the Prometheus textfile export of a run.

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics writes the gauges of a finished run to path in the text
// exposition format, suitable for a node exporter textfile collector.
func WriteMetrics(path string, s *Summary, now time.Time) error {
	reg := prometheus.NewRegistry()

	cases := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nytest_cases",
		Help: "Test cases of the last run by suite and outcome",
	}, []string{"suite", "outcome"})
	suiteSeconds := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nytest_suite_duration_seconds",
		Help: "Summed case duration per suite",
	}, []string{"suite"})
	slowest := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nytest_case_duration_max_seconds",
		Help: "Slowest case duration per suite",
	}, []string{"suite"})
	jobs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nytest_suite_jobs",
		Help: "Workers used per suite",
	}, []string{"suite"})
	runSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nytest_run_duration_seconds",
		Help: "Wall time of the last run",
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nytest_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nytest_last_run_success",
		Help: "1 if every case of the last run passed",
	})
	reg.MustRegister(cases, suiteSeconds, slowest, jobs, runSeconds, lastRun, success)

	for _, row := range s.Rows() {
		cases.WithLabelValues(row.Suite, "passed").Set(float64(row.Passed))
		cases.WithLabelValues(row.Suite, "failed").Set(float64(row.Tests - row.Passed))
		cases.WithLabelValues(row.Suite, "cached").Set(float64(row.Cached))
		suiteSeconds.WithLabelValues(row.Suite).Set(row.Sum.Seconds())
		slowest.WithLabelValues(row.Suite).Set(row.Max.Seconds())
		jobs.WithLabelValues(row.Suite).Set(float64(row.Jobs))
	}
	runSeconds.Set(now.Sub(s.Start).Seconds())
	lastRun.Set(float64(now.Unix()))
	if s.OK() {
		success.Set(1)
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
