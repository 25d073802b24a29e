package engine

// VoicePreset is one entry of the static preset catalog.
type VoicePreset struct {
	Speaker     string
	Instruct    string
	Description string
}

// DefaultPreset is used when a requested preset name is unknown.
const DefaultPreset = "Deep Male"

// presetOrder keeps catalog listings stable.
var presetOrder = []string{
	"Deep Male",
	"Energetic Female",
	"Raspy Wizard",
	"Soft Whisper",
	"News Anchor",
	"Cheerful Assistant",
	"Dramatic Narrator",
	"Calm Meditation",
}

var presetCatalog = map[string]VoicePreset{
	"Deep Male": {
		Speaker:     "Ryan",
		Instruct:    "Speak in a deep, calm, authoritative tone.",
		Description: "A deep, commanding male voice",
	},
	"Energetic Female": {
		Speaker:     "Vivian",
		Instruct:    "Speak with enthusiasm, energy, and excitement.",
		Description: "A vibrant, energetic female voice",
	},
	"Raspy Wizard": {
		Speaker:     "Ryan",
		Instruct:    "Speak like a wise old wizard with a raspy, mysterious voice.",
		Description: "An aged, mystical voice",
	},
	"Soft Whisper": {
		Speaker:     "Vivian",
		Instruct:    "Speak softly and gently, almost whispering.",
		Description: "A soft, intimate whisper",
	},
	"News Anchor": {
		Speaker:     "Ryan",
		Instruct:    "Speak clearly and professionally like a television news anchor.",
		Description: "Professional broadcast voice",
	},
	"Cheerful Assistant": {
		Speaker:     "Vivian",
		Instruct:    "Speak in a friendly, helpful, and cheerful manner.",
		Description: "Warm and approachable assistant",
	},
	"Dramatic Narrator": {
		Speaker:     "Ryan",
		Instruct:    "Speak with dramatic flair, building tension and atmosphere.",
		Description: "Cinematic narrator voice",
	},
	"Calm Meditation": {
		Speaker:     "Vivian",
		Instruct:    "Speak slowly, calmly, and peacefully, suitable for meditation.",
		Description: "Peaceful, relaxing voice",
	},
}

// lookupPreset resolves a preset by name. ok is false for unknown names;
// callers decide whether to fall back to DefaultPreset.
func lookupPreset(name string) (VoicePreset, bool) {
	p, ok := presetCatalog[name]
	return p, ok
}

// PresetNames returns the catalog names in stable order.
func PresetNames() []string {
	out := make([]string, len(presetOrder))
	copy(out, presetOrder)
	return out
}

// Speakers returns the speaker identities the custom-voice models support.
func Speakers() []string {
	return []string{"Ryan", "Vivian"}
}

// Languages returns the supported language selectors. Known without
// touching any model, so status/metadata endpoints never trigger a load.
func Languages() []string {
	return []string{
		"Auto", "Chinese", "English", "Japanese", "Korean",
		"German", "French", "Russian", "Portuguese",
		"Spanish", "Italian",
	}
}

// normalizeLanguage defaults an empty selector to automatic detection.
func normalizeLanguage(lang string) string {
	if lang == "" {
		return "Auto"
	}
	return lang
}
