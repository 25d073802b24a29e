// Package registry resolves model variants to loadable identifiers:
// a local weights directory when present under the models dir, otherwise
// the upstream hub reference. Downloading weights is a separate offline
// provisioning step; this package only looks.
package registry

import (
	"fmt"
	"path/filepath"

	"voiceforged/internal/common/fsutil"
	"voiceforged/internal/engine"
)

// Hub references of the model variants.
var hubIDs = map[engine.Variant]string{
	engine.VariantCustomVoice:      "Qwen/Qwen3-TTS-12Hz-1.7B-CustomVoice",
	engine.VariantCustomVoiceSmall: "Qwen/Qwen3-TTS-12Hz-0.6B-CustomVoice",
	engine.VariantVoiceDesign:      "Qwen/Qwen3-TTS-12Hz-1.7B-VoiceDesign",
	engine.VariantClone:            "Qwen/Qwen3-TTS-12Hz-1.7B-Base",
	engine.VariantCloneSmall:       "Qwen/Qwen3-TTS-12Hz-0.6B-Base",
}

// Directory names the offline provisioning step uses under the models dir.
var localNames = map[engine.Variant]string{
	engine.VariantCustomVoice:      "Qwen3-TTS-12Hz-1.7B-CustomVoice",
	engine.VariantCustomVoiceSmall: "Qwen3-TTS-12Hz-0.6B-CustomVoice",
	engine.VariantVoiceDesign:      "Qwen3-TTS-12Hz-1.7B-VoiceDesign",
	engine.VariantClone:            "Qwen3-TTS-12Hz-1.7B-Base",
	engine.VariantCloneSmall:       "Qwen3-TTS-12Hz-0.6B-Base",
}

// weightsFile marks a provisioned local model directory.
const weightsFile = "model.safetensors"

// Resolver implements engine.Resolver against a models directory.
type Resolver struct {
	modelsDir string
}

// New builds a Resolver rooted at dir ('~' expanded, made absolute). The
// directory does not have to exist; resolution then always falls back to
// hub references.
func New(dir string) (*Resolver, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Resolver{modelsDir: abs}, nil
}

// ModelsDir returns the resolved absolute models directory.
func (r *Resolver) ModelsDir() string { return r.modelsDir }

// ModelID prefers the local weights directory for v and falls back to the
// hub reference. Checked per call, so weights provisioned after startup are
// picked up by the next load.
func (r *Resolver) ModelID(v engine.Variant) string {
	if name, ok := localNames[v]; ok {
		local := filepath.Join(r.modelsDir, name)
		if fsutil.PathExists(filepath.Join(local, weightsFile)) {
			return local
		}
	}
	return hubIDs[v]
}
