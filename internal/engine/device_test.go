package engine

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func profileFor(avail Availability) *DeviceProfile {
	return NewDeviceProfile(DeviceConfig{Detect: func() Availability { return avail }}, zerolog.Nop())
}

func TestDeviceSelectionOrder(t *testing.T) {
	cases := []struct {
		name      string
		avail     Availability
		device    string
		precision Precision
		attention string
	}{
		{"cuda wins", Availability{CUDA: true, MPS: true}, DeviceCUDA, PrecisionBF16, ""},
		{"mps second", Availability{MPS: true}, DeviceMPS, PrecisionFP32, AttentionSDPA},
		{"cpu last", Availability{}, DeviceCPU, PrecisionFP32, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := profileFor(tc.avail).Resolve()
			assert.Equal(t, tc.device, p.Device)
			assert.Equal(t, tc.precision, p.Precision)
			assert.Equal(t, tc.attention, p.Attention)
			assert.False(t, p.Downgraded)
		})
	}
}

func TestForceCPUStartsDowngraded(t *testing.T) {
	p := NewDeviceProfile(DeviceConfig{
		ForceCPU: true,
		Detect:   func() Availability { return Availability{CUDA: true} },
	}, zerolog.Nop())
	got := p.Resolve()
	assert.Equal(t, DeviceCPU, got.Device)
	assert.Equal(t, PrecisionFP32, got.Precision)
	assert.True(t, got.Downgraded, "forced cpu leaves no fallback")
	assert.False(t, p.DowngradeToSafe())
}

func TestDowngradeToSafe(t *testing.T) {
	released := 0
	p := NewDeviceProfile(DeviceConfig{
		Detect:        func() Availability { return Availability{MPS: true} },
		ReleaseCaches: func() { released++ },
	}, zerolog.Nop())

	assert.True(t, p.DowngradeToSafe())
	got := p.Resolve()
	assert.Equal(t, DeviceCPU, got.Device)
	assert.Equal(t, PrecisionFP32, got.Precision)
	assert.Empty(t, got.Attention)
	assert.True(t, got.Downgraded)
	assert.Equal(t, 1, released)

	// Idempotent: a second downgrade reports no change and does not release
	// caches again.
	assert.False(t, p.DowngradeToSafe())
	assert.Equal(t, 1, released)
}

func TestDowngradeConcurrentSingleWinner(t *testing.T) {
	p := profileFor(Availability{CUDA: true})

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- p.DowngradeToSafe()
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent caller observes the transition")
	assert.Equal(t, DeviceCPU, p.Resolve().Device)
}
