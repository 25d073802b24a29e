package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a configurable spy implementing Backend.
type fakeBackend struct {
	mu         sync.Mutex
	loads      int
	loadsByID  map[string]int
	loadDevice []string
	loadErr    error
	// genErr supplies a per-call generation error based on the device the
	// handle was loaded on. Nil means success.
	genErr func(device string) error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{loadsByID: make(map[string]int)}
}

func (b *fakeBackend) Load(ctx context.Context, modelID string, opts LoadOptions) (ModelHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	b.loadsByID[modelID]++
	b.loadDevice = append(b.loadDevice, opts.Device)
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return &fakeHandle{backend: b, device: opts.Device}, nil
}

func (b *fakeBackend) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads
}

type fakeHandle struct {
	backend *fakeBackend
	device  string

	mu              sync.Mutex
	genCalls        int
	promptCalls     int
	fromPromptCalls int
	closed          bool
}

func (h *fakeHandle) Generate(ctx context.Context, p GenerateParams) (Audio, error) {
	h.mu.Lock()
	h.genCalls++
	h.mu.Unlock()
	h.backend.mu.Lock()
	fn := h.backend.genErr
	h.backend.mu.Unlock()
	if fn != nil {
		if err := fn(h.device); err != nil {
			return Audio{}, err
		}
	}
	return Audio{Samples: []float32{0.25, -0.25}, SampleRate: 24000}, nil
}

func (h *fakeHandle) CreateClonePrompt(ctx context.Context, ref, transcript string, embeddingOnly bool) (ClonePrompt, error) {
	h.mu.Lock()
	h.promptCalls++
	h.mu.Unlock()
	return fmt.Sprintf("prompt(%s,emb=%v)", ref, embeddingOnly), nil
}

func (h *fakeHandle) GenerateFromPrompt(ctx context.Context, text, language string, prompt ClonePrompt) (Audio, error) {
	h.mu.Lock()
	h.fromPromptCalls++
	h.mu.Unlock()
	h.backend.mu.Lock()
	fn := h.backend.genErr
	h.backend.mu.Unlock()
	if fn != nil {
		if err := fn(h.device); err != nil {
			return Audio{}, err
		}
	}
	return Audio{Samples: []float32{0.5}, SampleRate: 24000}, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

// stubResolver maps every variant to a synthetic identifier.
type stubResolver struct{}

func (stubResolver) ModelID(v Variant) string { return "models/" + string(v) }

func newTestEngine(backend Backend, avail Availability, pub EventPublisher) *Engine {
	return New(Options{
		Backend:  backend,
		Resolver: stubResolver{},
		Device: DeviceConfig{
			Detect: func() Availability { return avail },
		},
		Logger:    zerolog.Nop(),
		Publisher: pub,
	})
}

func TestGeneratePresetReturnsAudio(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	audio, err := e.GeneratePreset(context.Background(), "hello world", "Deep Male", "", SizeLarge)
	require.NoError(t, err)
	assert.Equal(t, 24000, audio.SampleRate)
	assert.NotEmpty(t, audio.Samples)
	assert.Equal(t, 1, b.loadCount())
}

func TestGeneratePresetUnknownNameUsesDefault(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	_, err := e.GeneratePreset(context.Background(), "hi", "No Such Voice", "", SizeLarge)
	require.NoError(t, err, "unknown preset must degrade to the default, not fail")
	assert.Equal(t, 1, b.loadCount())
}

func TestSecondGenerationReusesLoadedModel(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()
	_, err := e.GeneratePreset(ctx, "one", "Deep Male", "", SizeLarge)
	require.NoError(t, err)
	_, err = e.GeneratePreset(ctx, "two", "Deep Male", "", SizeLarge)
	require.NoError(t, err)
	assert.Equal(t, 1, b.loadCount(), "second call must reuse the cached handle")
}

func TestModelSizeSelectsVariant(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()
	_, err := e.GeneratePreset(ctx, "x", "Deep Male", "", SizeLarge)
	require.NoError(t, err)
	_, err = e.GeneratePreset(ctx, "x", "Deep Male", "", ParseModelSize("0.6B"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.loadsByID["models/custom_voice"])
	assert.Equal(t, 1, b.loadsByID["models/custom_voice_small"])
}

func TestEmptyTextFailsValidationBeforeAnyLoad(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() error
	}{
		{"preset", func() error {
			_, err := e.GeneratePreset(ctx, "   ", "Deep Male", "", SizeLarge)
			return err
		}},
		{"design", func() error {
			_, err := e.GenerateVoiceDesign(ctx, "\t\n", "a calm voice", "")
			return err
		}},
		{"clone", func() error {
			_, err := e.GenerateClone(ctx, "", "/tmp/ref.wav", "", "", SizeLarge)
			return err
		}},
		{"cached_clone", func() error {
			_, err := e.GenerateFromCachedPrompt(ctx, " ", "some-id", "")
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
	assert.Equal(t, 0, b.loadCount(), "validation failures must not touch the backend")
}

func TestOversizedTextFailsValidation(t *testing.T) {
	b := newFakeBackend()
	e := New(Options{
		Backend:  b,
		Resolver: stubResolver{},
		Device:   DeviceConfig{Detect: func() Availability { return Availability{} }},
		Config:   Config{MaxTextChars: 10},
		Logger:   zerolog.Nop(),
	})
	_, err := e.GeneratePreset(context.Background(), "this text is longer than ten characters", "Deep Male", "", SizeLarge)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, b.loadCount())
}

func TestTextLimitCountsRunesNotBytes(t *testing.T) {
	b := newFakeBackend()
	e := New(Options{
		Backend:  b,
		Resolver: stubResolver{},
		Device:   DeviceConfig{Detect: func() Availability { return Availability{} }},
		Config:   Config{MaxTextChars: 5},
		Logger:   zerolog.Nop(),
	})
	ctx := context.Background()

	// Five runes, ten bytes: must pass a five-character limit.
	_, err := e.GeneratePreset(ctx, strings.Repeat("ü", 5), "Deep Male", "", SizeLarge)
	require.NoError(t, err)

	_, err = e.GeneratePreset(ctx, strings.Repeat("ü", 6), "Deep Male", "", SizeLarge)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestVoiceDesignRequiresDescription(t *testing.T) {
	e := newTestEngine(newFakeBackend(), Availability{}, nil)
	_, err := e.GenerateVoiceDesign(context.Background(), "some text", "   ", "")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestGenerateCloneEmbeddingOnlyWithoutTranscript(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	_, err := e.GenerateClone(context.Background(), "hi", "/tmp/ref.wav", "", "", SizeLarge)
	require.NoError(t, err)
	assert.Equal(t, 1, b.loadsByID["models/clone"])
}

func TestCreateAndGenerateFromCachedPrompt(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()

	id, err := e.CreateClonePrompt(ctx, "/tmp/ref.wav", "the transcript", "")
	require.NoError(t, err)
	assert.Equal(t, PromptID("/tmp/ref.wav"), id)

	audio, err := e.GenerateFromCachedPrompt(ctx, "say this", id, "")
	require.NoError(t, err)
	assert.NotEmpty(t, audio.Samples)
}

func TestCreateClonePromptExplicitIDOverwrites(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()

	_, err := e.CreateClonePrompt(ctx, "/tmp/a.wav", "", "my-voice")
	require.NoError(t, err)
	_, err = e.CreateClonePrompt(ctx, "/tmp/b.wav", "", "my-voice")
	require.NoError(t, err)

	got, err := e.prompts.Lookup("my-voice")
	require.NoError(t, err)
	assert.Contains(t, got.(string), "/tmp/b.wav", "lookup must reflect the most recent write")
	assert.Equal(t, 1, e.prompts.Len())
}

func TestGenerateFromCachedPromptUnknownID(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	_, err := e.GenerateFromCachedPrompt(context.Background(), "text", "never-created", "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, b.loadCount(), "missing prompt id must not trigger any backend call")
}

func TestLoadErrorIsRetriedOnNextAccess(t *testing.T) {
	b := newFakeBackend()
	b.loadErr = errors.New("weights corrupted")
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()

	_, err := e.GeneratePreset(ctx, "hi", "Deep Male", "", SizeLarge)
	require.Error(t, err)
	assert.True(t, IsModelLoad(err))

	st := e.Status()
	var cv bool
	for _, m := range st.Models {
		if m.Variant == string(VariantCustomVoice) {
			cv = true
			assert.False(t, m.Loaded)
			assert.Contains(t, m.LastError, "weights corrupted")
		}
	}
	require.True(t, cv)

	// No negative caching: the next access retries and succeeds.
	b.mu.Lock()
	b.loadErr = nil
	b.mu.Unlock()
	_, err = e.GeneratePreset(ctx, "hi", "Deep Male", "", SizeLarge)
	require.NoError(t, err)
	assert.Equal(t, 2, b.loadCount())
}

func TestStatusNeverTriggersLoad(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{CUDA: true}, nil)

	st := e.Status()
	assert.Equal(t, DeviceCUDA, st.Device)
	assert.Equal(t, string(PrecisionBF16), st.Precision)
	assert.False(t, st.Downgraded)
	assert.Len(t, st.Models, len(Variants()))
	for _, m := range st.Models {
		assert.False(t, m.Loaded)
	}
	assert.Equal(t, PresetNames(), st.Presets)
	assert.Empty(t, st.CachedPromptIDs)
	assert.Equal(t, 0, b.loadCount(), "status must be side-effect free")

	// Still true after a mix of prior state.
	_, _ = e.GeneratePreset(context.Background(), "hi", "Deep Male", "", SizeLarge)
	before := b.loadCount()
	_ = e.Status()
	assert.Equal(t, before, b.loadCount())
}

func TestUnloadAllEvictsLoadedModels(t *testing.T) {
	b := newFakeBackend()
	e := newTestEngine(b, Availability{}, nil)
	ctx := context.Background()
	_, err := e.GeneratePreset(ctx, "hi", "Deep Male", "", SizeLarge)
	require.NoError(t, err)
	require.True(t, e.registry.Loaded(VariantCustomVoice))

	e.UnloadAll()
	for _, v := range Variants() {
		assert.False(t, e.registry.Loaded(v))
	}
}

func TestPresetCatalogExposed(t *testing.T) {
	e := newTestEngine(newFakeBackend(), Availability{}, nil)
	presets := e.Presets()
	require.Len(t, presets, 8)
	assert.Equal(t, DefaultPreset, presets[0].Name)
	assert.NotEmpty(t, presets[0].Description)
	assert.Equal(t, []string{"Ryan", "Vivian"}, e.Speakers())
	assert.Contains(t, e.Languages(), "Auto")
}
