package hostinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCPULabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "unknown"},
		{in: "AMD Ryzen 9 7950X 16-Core Processor", want: "AMD Ryzen 9 7950X"},
		{in: "Intel(R) Core(TM) i7-8700 CPU", want: "Intel(R) Core(TM) i7-8700"},
		{in: "Apple M2", want: "Apple M2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Topology{CPUModel: tt.in}.CPULabel())
		})
	}
}

func TestMemLabel(t *testing.T) {
	assert.Equal(t, "unknown", Topology{}.MemLabel())
	assert.Equal(t, "16.0 GiB", Topology{MemTotal: 16 * gib}.MemLabel())
	assert.Equal(t, "2.00 TiB", Topology{MemTotal: 2048 * gib}.MemLabel())
}

func TestOSLabel(t *testing.T) {
	assert.Equal(t, "macos", Topology{OS: "darwin"}.OSLabel())
	assert.Equal(t, "linux", Topology{OS: "linux"}.OSLabel())
}
