package engine

import "strings"

// validationError signals caller-fault input (empty/oversized text, missing
// fields) for 400 mapping. Never retried.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validationError.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// modelLoadError signals a weight fetch/parse/initialization failure. The
// slot stays unloaded and the next access retries; the engine adds no
// backoff of its own.
type modelLoadError struct {
	variant Variant
	msg     string
}

func (e modelLoadError) Error() string {
	return "failed to load " + string(e.variant) + " model: " + e.msg
}

// ErrModelLoad constructs a modelLoadError.
func ErrModelLoad(v Variant, msg string) error { return modelLoadError{variant: v, msg: msg} }

// IsModelLoad reports whether err indicates a failed model load.
func IsModelLoad(err error) bool {
	_, ok := err.(modelLoadError)
	return ok
}

// notFoundError signals an unknown cached-prompt id. Unknown preset names do
// NOT produce this error; presets degrade to a default instead.
type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string { return e.kind + " not found: " + e.id }

// ErrPromptNotFound constructs a notFoundError for a clone prompt id.
func ErrPromptNotFound(id string) error { return notFoundError{kind: "clone prompt", id: id} }

// IsNotFound reports whether err indicates a missing cached resource.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// resourceExhaustionError is the terminal form of a device-memory or
// channel-limit failure: either the safe device also failed, or no further
// downgrade was possible.
type resourceExhaustionError struct {
	device string
	msg    string
}

func (e resourceExhaustionError) Error() string {
	return "device resources exhausted on " + e.device + ": " + e.msg
}

// ErrResourceExhaustion constructs a terminal exhaustion error.
func ErrResourceExhaustion(device, msg string) error {
	return resourceExhaustionError{device: device, msg: msg}
}

// IsResourceExhaustion reports whether err is a terminal exhaustion failure.
func IsResourceExhaustion(err error) bool {
	_, ok := err.(resourceExhaustionError)
	return ok
}

// exhaustionMarkers are substrings of backend error messages that identify
// the device resource-exhaustion signature. The channel-count form is what
// the unified-memory backend reports when an attention buffer exceeds its
// addressing limit.
var exhaustionMarkers = []string{
	"channels > 65536",
	"out of memory",
	"insufficient memory",
}

// isExhaustionSignature matches backend errors against the known
// resource-exhaustion signatures. Anything else is not recoverable by a
// device downgrade and must propagate unchanged.
func isExhaustionSignature(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range exhaustionMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
