package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voiceforged/pkg/types"
)

// Resolver maps a variant to the model identifier handed to the backend
// (local directory when the weights are present, hub reference otherwise).
type Resolver interface {
	ModelID(v Variant) string
}

// slot owns the lazily loaded instance of one variant.
type slot struct {
	variant Variant
	// mu serializes first-loaders; reads take the shared lock only long
	// enough to copy the handle. Generation runs without the lock.
	mu      sync.RWMutex
	handle  ModelHandle
	lastErr string
}

// ModelRegistry is the fixed set of model slots, one per variant. Unrelated
// variants load and generate independently; there is no registry-wide lock.
type ModelRegistry struct {
	backend Backend
	resolve Resolver
	profile *DeviceProfile
	pub     EventPublisher
	log     zerolog.Logger
	slots   map[Variant]*slot
}

func NewModelRegistry(backend Backend, resolve Resolver, profile *DeviceProfile, pub EventPublisher, log zerolog.Logger) *ModelRegistry {
	if pub == nil {
		pub = noopPublisher{}
	}
	slots := make(map[Variant]*slot, len(Variants()))
	for _, v := range Variants() {
		slots[v] = &slot{variant: v}
	}
	return &ModelRegistry{backend: backend, resolve: resolve, profile: profile, pub: pub, log: log, slots: slots}
}

// Get returns the loaded handle for v, loading it first if needed. Exactly
// one of any number of concurrent first-callers performs the load; the rest
// wait and reuse the result. A failed load is recorded and retried on the
// next call (no negative caching).
func (r *ModelRegistry) Get(ctx context.Context, v Variant) (ModelHandle, error) {
	s := r.slots[v]

	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return s.handle, nil
	}

	modelID := r.resolve.ModelID(v)
	prof := r.profile.Resolve()
	r.pub.Publish(Event{Name: EventLoadStart, Variant: v, Fields: map[string]any{"model": modelID, "device": prof.Device}})
	r.log.Info().Str("variant", string(v)).Str("model", modelID).
		Str("device", prof.Device).Str("precision", string(prof.Precision)).
		Msg("loading model")

	start := time.Now()
	h, err := r.backend.Load(ctx, modelID, LoadOptions{
		Device:    prof.Device,
		Precision: prof.Precision,
		Attention: prof.Attention,
	})
	if err != nil {
		s.lastErr = err.Error()
		r.pub.Publish(Event{Name: EventLoadError, Variant: v, Fields: map[string]any{"error": err.Error()}})
		r.log.Error().Str("variant", string(v)).Err(err).Msg("model load failed")
		return nil, modelLoadError{variant: v, msg: err.Error()}
	}
	s.handle = h
	s.lastErr = ""
	r.pub.Publish(Event{Name: EventLoadDone, Variant: v, Fields: map[string]any{"dur_ms": time.Since(start).Milliseconds()}})
	r.log.Info().Str("variant", string(v)).Dur("dur", time.Since(start)).Msg("model loaded")
	return h, nil
}

// Evict drops the loaded instance of v, releasing device memory. No-op when
// nothing is loaded. The recorded load error is kept for diagnostics.
func (r *ModelRegistry) Evict(v Variant) {
	s := r.slots[v]
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		r.log.Warn().Str("variant", string(v)).Err(err).Msg("close on evict failed")
	}
	r.pub.Publish(Event{Name: EventEvict, Variant: v})
	r.log.Info().Str("variant", string(v)).Msg("model evicted")
}

// EvictAll unloads every variant.
func (r *ModelRegistry) EvictAll() {
	for _, v := range Variants() {
		r.Evict(v)
	}
}

// Loaded reports whether v currently holds a live instance. Never triggers
// a load.
func (r *ModelRegistry) Loaded(v Variant) bool {
	s := r.slots[v]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle != nil
}

// Snapshot projects per-variant state for status reporting. Side-effect
// free.
func (r *ModelRegistry) Snapshot() []types.ModelStatus {
	out := make([]types.ModelStatus, 0, len(r.slots))
	for _, v := range Variants() {
		s := r.slots[v]
		s.mu.RLock()
		out = append(out, types.ModelStatus{
			Variant:   string(v),
			Loaded:    s.handle != nil,
			LastError: s.lastErr,
		})
		s.mu.RUnlock()
	}
	return out
}
