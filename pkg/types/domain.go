package types

// PresetInfo describes one entry of the static voice preset catalog.
type PresetInfo struct {
	// Preset name as accepted by the preset generation endpoint.
	// example: Deep Male
	Name string `json:"name" example:"Deep Male"`
	// Human-readable description of the voice.
	// example: A deep, commanding male voice
	Description string `json:"description" example:"A deep, commanding male voice"`
}

// ModelStatus summarizes one model variant for /status.
type ModelStatus struct {
	// Variant identifier (e.g., custom_voice, voice_design, clone_small).
	// example: custom_voice
	Variant string `json:"variant" example:"custom_voice"`
	// Whether the variant is currently loaded in memory.
	// example: false
	Loaded bool `json:"loaded" example:"false"`
	// Message of the most recent failed load attempt, empty when none.
	LastError string `json:"last_error,omitempty"`
}
