package engine

import (
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Profile is a snapshot of the active device configuration. Loads observe
// the profile current at load time.
type Profile struct {
	Device     string
	Precision  Precision
	Attention  string
	Downgraded bool
}

// Availability reports which accelerator backends are usable on this host.
type Availability struct {
	CUDA bool
	MPS  bool
}

// DeviceConfig controls initial device selection.
type DeviceConfig struct {
	// ForceCPU pins the profile to the safe device from the start. The
	// profile then counts as already downgraded: no further fallback exists.
	ForceCPU bool
	// Detect overrides accelerator probing (used in tests). Nil selects the
	// default host probe.
	Detect func() Availability
	// ReleaseCaches is invoked on downgrade to clear accelerator-side
	// allocator caches. Optional.
	ReleaseCaches func()
}

// DeviceProfile is the process-wide device/precision selection. It mutates
// at most once per process: a single permanent downgrade to the safe device.
type DeviceProfile struct {
	mu            sync.Mutex
	device        string
	precision     Precision
	attention     string
	downgraded    bool
	releaseCaches func()
	log           zerolog.Logger
}

// NewDeviceProfile resolves the execution device once, honoring the
// explicit override and otherwise probing in priority order:
// dedicated accelerator (bf16), unified-memory accelerator (fp32, sdpa),
// safe CPU (fp32).
func NewDeviceProfile(cfg DeviceConfig, log zerolog.Logger) *DeviceProfile {
	p := &DeviceProfile{releaseCaches: cfg.ReleaseCaches, log: log}
	if cfg.ForceCPU {
		p.device = DeviceCPU
		p.precision = PrecisionFP32
		p.downgraded = true
		log.Info().Msg("device forced to cpu")
		return p
	}
	detect := cfg.Detect
	if detect == nil {
		detect = detectHost
	}
	avail := detect()
	switch {
	case avail.CUDA:
		p.device = DeviceCUDA
		p.precision = PrecisionBF16
	case avail.MPS:
		p.device = DeviceMPS
		p.precision = PrecisionFP32
		p.attention = AttentionSDPA
	default:
		p.device = DeviceCPU
		p.precision = PrecisionFP32
		log.Warn().Msg("no accelerator available, using cpu (generation will be slow)")
	}
	log.Info().Str("device", p.device).Str("precision", string(p.precision)).Msg("device profile resolved")
	return p
}

// Resolve returns the current device/precision snapshot.
func (p *DeviceProfile) Resolve() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Profile{
		Device:     p.device,
		Precision:  p.precision,
		Attention:  p.attention,
		Downgraded: p.downgraded,
	}
}

// DowngradeToSafe permanently switches the profile to the safe CPU device.
// It reports whether a change actually occurred; false means the profile
// was already on the safe device and no further fallback is possible.
// Idempotent and safe under concurrent callers: exactly one of two
// simultaneous downgrades observes true.
func (p *DeviceProfile) DowngradeToSafe() bool {
	p.mu.Lock()
	if p.device == DeviceCPU {
		p.downgraded = true
		p.mu.Unlock()
		return false
	}
	from := p.device
	p.device = DeviceCPU
	p.precision = PrecisionFP32
	p.attention = ""
	p.downgraded = true
	release := p.releaseCaches
	p.mu.Unlock()

	p.log.Warn().Str("from", from).Msg("device profile downgraded to cpu")
	if release != nil {
		release()
	}
	return true
}

// detectHost is a coarse host probe. The authoritative placement check
// happens inside the model backend; this only picks the profile the first
// load will be attempted with.
func detectHost() Availability {
	return Availability{
		CUDA: cudaVisible(),
		MPS:  runtime.GOOS == "darwin" && runtime.GOARCH == "arm64",
	}
}
