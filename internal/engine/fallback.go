package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// generationFn is one full generation attempt. It must resolve its model
// handle itself so a retry observes the post-downgrade device profile.
type generationFn func(ctx context.Context) (Audio, error)

// FallbackController wraps generation calls with the bounded
// exhaustion-recovery policy: on a device resource-exhaustion signature
// reported from a non-safe device it evicts the responsible slot, downgrades
// the process-wide profile to the safe device, and re-issues the request
// exactly once. Attempt count is fixed at one: if the retry fails too, or no
// downgrade is possible, the failure is terminal.
type FallbackController struct {
	profile  *DeviceProfile
	registry *ModelRegistry
	pub      EventPublisher
	log      zerolog.Logger
}

func NewFallbackController(profile *DeviceProfile, registry *ModelRegistry, pub EventPublisher, log zerolog.Logger) *FallbackController {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &FallbackController{profile: profile, registry: registry, pub: pub, log: log}
}

// Run executes gen, applying the single-retry downgrade policy for variant v.
func (f *FallbackController) Run(ctx context.Context, v Variant, gen generationFn) (Audio, error) {
	attemptProf := f.profile.Resolve()
	out, err := gen(ctx)
	if err == nil {
		return out, nil
	}
	if !isExhaustionSignature(err) {
		// Not recoverable by a device change; propagate unchanged.
		return Audio{}, err
	}
	if attemptProf.Device == DeviceCPU {
		return Audio{}, resourceExhaustionError{device: attemptProf.Device, msg: err.Error()}
	}

	f.log.Warn().Str("variant", string(v)).Str("device", attemptProf.Device).
		Err(err).Msg("device resources exhausted, falling back to cpu")
	f.registry.Evict(v)
	if !f.profile.DowngradeToSafe() {
		// Another caller downgraded first; the profile is already on the
		// safe device, so there is nothing left to fall back to.
		return Audio{}, resourceExhaustionError{device: DeviceCPU, msg: err.Error()}
	}
	f.pub.Publish(Event{Name: EventDowngrade, Variant: v, Fields: map[string]any{"from": attemptProf.Device}})

	f.pub.Publish(Event{Name: EventFallback, Variant: v})
	f.log.Info().Str("variant", string(v)).Msg("retrying generation on cpu")
	out, err = gen(ctx)
	if err == nil {
		return out, nil
	}
	if isExhaustionSignature(err) {
		return Audio{}, resourceExhaustionError{device: DeviceCPU, msg: err.Error()}
	}
	return Audio{}, err
}
