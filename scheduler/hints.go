package scheduler

// This file contains the static cost hints used before any timing history
// exists.

import (
	"path"

	"github.com/nytrix/nytest/model"
)

var costHints = map[string]map[string]float64{
	model.SuiteBenchmark: {
		"sieve.ny":      5.0,
		"mandelbrot.ny": 4.0,
		"float.ny":      3.0,
		"spectral.ny":   2.5,
		"binary.ny":     2.0,
		"fibonacci.ny":  1.5,
		"dict.ny":       1.0,
		"list.ny":       0.8,
	},
	model.SuiteRuntime: {
		"strings.ny":  1.5,
		"parser.ny":   1.4,
		"comptime.ny": 1.3,
		"control.ny":  1.2,
	},
	model.SuiteStd: {
		"time.ny":     6.0,
		"zlib.ny":     5.0,
		"socket.ny":   4.5,
		"core.ny":     4.0,
		"process.ny":  3.5,
		"sys.ny":      3.2,
		"io.ny":       3.0,
		"requests.ny": 2.6,
		"http.ny":     2.4,
		"bigint.ny":   2.0,
	},
}

// CostHint returns the static cost estimate in seconds of the case at p,
// a slash separated path, or 0 when nothing is known.
func CostHint(suite, p string) float64 {
	return costHints[suite][path.Base(p)]
}
