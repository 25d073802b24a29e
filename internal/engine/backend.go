package engine

import "context"

// Device identifiers understood by backends.
const (
	DeviceCUDA = "cuda:0"
	DeviceMPS  = "mps"
	DeviceCPU  = "cpu"
)

// Precision selects the numeric type models are loaded with.
type Precision string

const (
	PrecisionFP32 Precision = "fp32"
	PrecisionBF16 Precision = "bf16"
)

// Attention implementation hints forwarded to the backend.
const (
	AttentionSDPA  = "sdpa"
	AttentionFlash = "flash_attention_2"
)

// LoadOptions carries the device placement a model must be loaded with.
type LoadOptions struct {
	Device    string
	Precision Precision
	// Attention is a backend hint (e.g., sdpa on unified-memory devices).
	// Empty means backend default.
	Attention string
}

// Audio is raw PCM output from a generation call. Encoding to a container
// format (WAV) happens outside the engine.
type Audio struct {
	Samples    []float32
	SampleRate int
}

// GenerateParams are the inputs of a direct (non-prompt) generation.
// Speaker and Instruct are used by the custom-voice models; the voice-design
// model only reads Instruct.
type GenerateParams struct {
	Text     string
	Language string
	Speaker  string
	Instruct string
}

// ClonePrompt is an opaque, reusable representation of a reference voice.
// The engine never inspects it; it only stores and hands it back.
type ClonePrompt any

// Backend abstracts the model runtime used by the engine. Concrete
// implementations live under internal/backend.
type Backend interface {
	// Load instantiates the model identified by modelID (local path or hub
	// reference) on the given device. Load failures must be returned, not
	// cached: the engine retries on the next access.
	Load(ctx context.Context, modelID string, opts LoadOptions) (ModelHandle, error)
}

// ModelHandle is a live model instance. Calls are long-running, synchronous
// and run to completion; the engine adds no timeouts of its own.
type ModelHandle interface {
	Generate(ctx context.Context, p GenerateParams) (Audio, error)
	// CreateClonePrompt builds a voice-clone prompt from reference audio.
	// With embeddingOnly set, only the speaker embedding (x-vector) is
	// extracted; faster, lower fidelity, and the transcript is ignored.
	CreateClonePrompt(ctx context.Context, refAudioPath, transcript string, embeddingOnly bool) (ClonePrompt, error)
	GenerateFromPrompt(ctx context.Context, text, language string, prompt ClonePrompt) (Audio, error)
	// Close releases device memory held by the instance.
	Close() error
}
