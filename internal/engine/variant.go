package engine

// Variant identifies one of the fixed set of loadable model configurations.
type Variant string

const (
	VariantCustomVoice      Variant = "custom_voice"
	VariantCustomVoiceSmall Variant = "custom_voice_small"
	VariantVoiceDesign      Variant = "voice_design"
	VariantClone            Variant = "clone"
	VariantCloneSmall       Variant = "clone_small"
)

// Variants returns the fixed variant set in stable order.
func Variants() []Variant {
	return []Variant{
		VariantCustomVoice,
		VariantCustomVoiceSmall,
		VariantVoiceDesign,
		VariantClone,
		VariantCloneSmall,
	}
}

// ModelSize selects between the large and small checkpoint of a family.
type ModelSize string

const (
	SizeLarge ModelSize = "1.7B"
	SizeSmall ModelSize = "0.6B"
)

// ParseModelSize maps the loosely specified size strings accepted on the
// wire to a ModelSize. Anything unrecognized means the large checkpoint.
func ParseModelSize(s string) ModelSize {
	switch s {
	case "0.6B", "small", "small-model":
		return SizeSmall
	default:
		return SizeLarge
	}
}

func customVoiceVariant(size ModelSize) Variant {
	if size == SizeSmall {
		return VariantCustomVoiceSmall
	}
	return VariantCustomVoice
}

func cloneVariant(size ModelSize) Variant {
	if size == SizeSmall {
		return VariantCloneSmall
	}
	return VariantClone
}
