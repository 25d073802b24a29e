package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"voiceforged/pkg/types"
)

// Default applied when Config.MaxTextChars is unset.
const defaultMaxTextChars = 5000

// Config holds engine tunables.
type Config struct {
	// MaxTextChars caps the input text length; 0 means the package default.
	MaxTextChars int
}

// Options wires the engine's collaborators.
type Options struct {
	Backend   Backend
	Resolver  Resolver
	Device    DeviceConfig
	Config    Config
	Logger    zerolog.Logger
	Publisher EventPublisher
}

// Engine is the synchronous public surface over the model registry, the
// device profile, the clone-prompt cache and the fallback policy. Construct
// one per process (or per test); there is no package-level singleton.
type Engine struct {
	cfg      Config
	profile  *DeviceProfile
	registry *ModelRegistry
	prompts  *ClonePromptCache
	fallback *FallbackController
	pub      EventPublisher
	log      zerolog.Logger
}

func New(opts Options) *Engine {
	pub := opts.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	cfg := opts.Config
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = defaultMaxTextChars
	}
	profile := NewDeviceProfile(opts.Device, opts.Logger)
	registry := NewModelRegistry(opts.Backend, opts.Resolver, profile, pub, opts.Logger)
	return &Engine{
		cfg:      cfg,
		profile:  profile,
		registry: registry,
		prompts:  NewClonePromptCache(),
		fallback: NewFallbackController(profile, registry, pub, opts.Logger),
		pub:      pub,
		log:      opts.Logger,
	}
}

// checkText enforces the precondition shared by every generation operation,
// before any device or model interaction.
func (e *Engine) checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrValidation("text cannot be empty")
	}
	if utf8.RuneCountInString(text) > e.cfg.MaxTextChars {
		return ErrValidation(fmt.Sprintf("text too long (max %d characters)", e.cfg.MaxTextChars))
	}
	return nil
}

// GeneratePreset synthesizes text with a named preset voice. An unknown
// preset name degrades to DefaultPreset with a warning; it is not an error.
func (e *Engine) GeneratePreset(ctx context.Context, text, presetName, language string, size ModelSize) (Audio, error) {
	if err := e.checkText(text); err != nil {
		return Audio{}, err
	}
	preset, ok := lookupPreset(presetName)
	if !ok {
		e.log.Warn().Str("preset", presetName).Str("fallback", DefaultPreset).Msg("unknown preset, using default")
		preset, _ = lookupPreset(DefaultPreset)
	}
	v := customVoiceVariant(size)
	lang := normalizeLanguage(language)
	return e.fallback.Run(ctx, v, func(ctx context.Context) (Audio, error) {
		h, err := e.registry.Get(ctx, v)
		if err != nil {
			return Audio{}, err
		}
		return h.Generate(ctx, GenerateParams{
			Text:     text,
			Language: lang,
			Speaker:  preset.Speaker,
			Instruct: preset.Instruct,
		})
	})
}

// GenerateVoiceDesign synthesizes text with a voice described in natural
// language. Both text and description are required.
func (e *Engine) GenerateVoiceDesign(ctx context.Context, text, description, language string) (Audio, error) {
	if err := e.checkText(text); err != nil {
		return Audio{}, err
	}
	if strings.TrimSpace(description) == "" {
		return Audio{}, ErrValidation("voice description cannot be empty")
	}
	lang := normalizeLanguage(language)
	return e.fallback.Run(ctx, VariantVoiceDesign, func(ctx context.Context) (Audio, error) {
		h, err := e.registry.Get(ctx, VariantVoiceDesign)
		if err != nil {
			return Audio{}, err
		}
		return h.Generate(ctx, GenerateParams{Text: text, Language: lang, Instruct: description})
	})
}

// GenerateClone synthesizes text in the voice of the reference audio. With a
// transcript the full cloning path is used; without one the prompt is built
// in embedding-only (x-vector) mode: faster, lower fidelity. The ephemeral
// prompt is not cached; use CreateClonePrompt for reuse.
func (e *Engine) GenerateClone(ctx context.Context, text, refAudioPath, transcript, language string, size ModelSize) (Audio, error) {
	if err := e.checkText(text); err != nil {
		return Audio{}, err
	}
	if strings.TrimSpace(refAudioPath) == "" {
		return Audio{}, ErrValidation("reference audio is required")
	}
	v := cloneVariant(size)
	lang := normalizeLanguage(language)
	embeddingOnly := strings.TrimSpace(transcript) == ""
	return e.fallback.Run(ctx, v, func(ctx context.Context) (Audio, error) {
		h, err := e.registry.Get(ctx, v)
		if err != nil {
			return Audio{}, err
		}
		prompt, err := h.CreateClonePrompt(ctx, refAudioPath, transcript, embeddingOnly)
		if err != nil {
			return Audio{}, err
		}
		return h.GenerateFromPrompt(ctx, text, lang, prompt)
	})
}

// CreateClonePrompt builds a reusable clone prompt from reference audio and
// stores it. The explicit id is used verbatim when given; otherwise the id
// is derived from the reference-audio path (see PromptID). Creating a prompt
// under an existing id overwrites it.
func (e *Engine) CreateClonePrompt(ctx context.Context, refAudioPath, transcript, explicitID string) (string, error) {
	if strings.TrimSpace(refAudioPath) == "" {
		return "", ErrValidation("reference audio is required")
	}
	id := explicitID
	if id == "" {
		id = PromptID(refAudioPath)
	}
	h, err := e.registry.Get(ctx, VariantClone)
	if err != nil {
		return "", err
	}
	embeddingOnly := strings.TrimSpace(transcript) == ""
	prompt, err := h.CreateClonePrompt(ctx, refAudioPath, transcript, embeddingOnly)
	if err != nil {
		return "", err
	}
	e.prompts.Put(id, prompt, refAudioPath)
	e.log.Info().Str("prompt_id", id).Bool("embedding_only", embeddingOnly).Msg("clone prompt cached")
	return id, nil
}

// GenerateFromCachedPrompt synthesizes text using a previously stored clone
// prompt. A missing prompt id fails hard before any model access.
func (e *Engine) GenerateFromCachedPrompt(ctx context.Context, text, promptID, language string) (Audio, error) {
	if err := e.checkText(text); err != nil {
		return Audio{}, err
	}
	prompt, err := e.prompts.Lookup(promptID)
	if err != nil {
		return Audio{}, err
	}
	lang := normalizeLanguage(language)
	return e.fallback.Run(ctx, VariantClone, func(ctx context.Context) (Audio, error) {
		h, err := e.registry.Get(ctx, VariantClone)
		if err != nil {
			return Audio{}, err
		}
		return h.GenerateFromPrompt(ctx, text, lang, prompt)
	})
}

// Status reports device profile, per-variant load state, preset names and
// cached prompt ids. Side-effect free; never triggers a load.
func (e *Engine) Status() types.StatusResponse {
	prof := e.profile.Resolve()
	return types.StatusResponse{
		Device:          prof.Device,
		Precision:       string(prof.Precision),
		Downgraded:      prof.Downgraded,
		Models:          e.registry.Snapshot(),
		Presets:         PresetNames(),
		CachedPromptIDs: e.prompts.IDs(),
	}
}

// Presets returns the catalog as name/description pairs.
func (e *Engine) Presets() []types.PresetInfo {
	names := PresetNames()
	out := make([]types.PresetInfo, 0, len(names))
	for _, n := range names {
		p, _ := lookupPreset(n)
		out = append(out, types.PresetInfo{Name: n, Description: p.Description})
	}
	return out
}

// Speakers lists the speaker identities of the custom-voice models.
func (e *Engine) Speakers() []string { return Speakers() }

// Languages lists the supported language selectors.
func (e *Engine) Languages() []string { return Languages() }

// Unload evicts one variant, releasing its device memory.
func (e *Engine) Unload(v Variant) { e.registry.Evict(v) }

// UnloadAll evicts every variant; called on shutdown.
func (e *Engine) UnloadAll() { e.registry.EvictAll() }
