package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: text cannot be empty
	Error string `json:"error" example:"text cannot be empty"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// GenerateResponse is returned by the generation endpoints once the audio
// file has been written under the static output directory.
type GenerateResponse struct {
	// Always "success" on the happy path.
	// example: success
	Status string `json:"status" example:"success"`
	// URL path the generated WAV is served from.
	// example: /static/generations/preset_5f3a.wav
	URL string `json:"url" example:"/static/generations/preset_5f3a.wav"`
	// Bare filename of the generated WAV.
	Filename string `json:"filename"`
	// Model size used for the generation ("1.7B" or "0.6B").
	// example: 1.7B
	ModelSize string `json:"model_size" example:"1.7B"`
	// Which synthesis feature produced the audio (preset, design, clone, cached_clone).
	// example: preset
	Feature string `json:"feature" example:"preset"`
}

// DeleteResponse acknowledges removal of a generated audio file.
type DeleteResponse struct {
	// example: success
	Status  string `json:"status" example:"success"`
	Message string `json:"message,omitempty"`
}

// CreatePromptResponse is returned when a reusable clone prompt was stored.
type CreatePromptResponse struct {
	Success  bool   `json:"success"`
	PromptID string `json:"prompt_id"`
	Message  string `json:"message,omitempty"`
}

// PresetsResponse wraps the preset catalog for GET /presets.
type PresetsResponse struct {
	Presets []PresetInfo `json:"presets"`
}

// LanguagesResponse wraps the supported language list.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

// SpeakersResponse wraps the supported speaker list.
type SpeakersResponse struct {
	Speakers []string `json:"speakers"`
}

// StatusResponse is the engine state report returned by GET /status.
type StatusResponse struct {
	// Active compute device (cuda:0, mps or cpu).
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Numeric precision models are loaded with (fp32 or bf16).
	// example: fp32
	Precision string `json:"precision" example:"fp32"`
	// True once the profile has been permanently downgraded to the safe device.
	Downgraded bool `json:"downgraded"`
	// Per-variant load state.
	Models []ModelStatus `json:"models"`
	// Names of the available voice presets.
	Presets []string `json:"presets"`
	// IDs of the cached reusable clone prompts.
	CachedPromptIDs []string `json:"cached_prompt_ids"`
}
