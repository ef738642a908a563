package hostinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cpuinfoSMT = `processor	: 0
model name	: Example CPU 9000
physical id	: 0
core id		: 0

processor	: 1
model name	: Example CPU 9000
physical id	: 0
core id		: 0

processor	: 2
model name	: Example CPU 9000
physical id	: 0
core id		: 1

processor	: 3
model name	: Example CPU 9000
physical id	: 0
core id		: 1
`

const cpuinfoARM = `processor	: 0
BogoMIPS	: 108.00

processor	: 1
BogoMIPS	: 108.00

Hardware	: BCM2835
`

func TestParseCPUInfo(t *testing.T) {
	physical, model := ParseCPUInfo(strings.NewReader(cpuinfoSMT))
	assert.Equal(t, 2, physical)
	assert.Equal(t, "Example CPU 9000", model)

	physical, model = ParseCPUInfo(strings.NewReader(cpuinfoARM))
	assert.Equal(t, 0, physical)
	assert.Equal(t, "BCM2835", model)
}

func TestNormalizePhysical(t *testing.T) {
	tests := []struct {
		name  string
		topo  Topology
		probe int
		want  int
	}{
		{"probed", Topology{Arch: "amd64", Logical: 16}, 8, 8},
		{"estimate half", Topology{Arch: "amd64", Logical: 8}, 0, 4},
		{"estimate small", Topology{Arch: "amd64", Logical: 2}, 0, 2},
		{"arm uses logical", Topology{Arch: "arm64", Logical: 4}, 0, 4},
		{"clamped", Topology{Arch: "amd64", Logical: 4}, 16, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.topo.normalizePhysical(tt.probe))
		})
	}
}

func TestSMTRatio(t *testing.T) {
	assert.InDelta(t, 2.0, Topology{Logical: 16, Physical: 8}.SMTRatio(), 1e-9)
	assert.InDelta(t, 1.0, Topology{Logical: 4, Physical: 8}.SMTRatio(), 1e-9)
	assert.InDelta(t, 1.0, Topology{Logical: 4}.SMTRatio(), 1e-9)
}

func TestLowMemoryARM(t *testing.T) {
	assert.True(t, Topology{OS: "linux", Arch: "arm", MemTotal: gib}.LowMemoryARM())
	assert.False(t, Topology{OS: "linux", Arch: "arm64", MemTotal: 4 * gib}.LowMemoryARM())
	assert.False(t, Topology{OS: "linux", Arch: "amd64", MemTotal: gib}.LowMemoryARM())
	assert.False(t, Topology{OS: "linux", Arch: "arm64"}.LowMemoryARM())
}

func TestDetect(t *testing.T) {
	topo := Detect()
	require.GreaterOrEqual(t, topo.Logical, 1)
	require.GreaterOrEqual(t, topo.Physical, 1)
	require.LessOrEqual(t, topo.Physical, topo.Logical)
}
