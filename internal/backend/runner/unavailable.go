package runner

import (
	"context"
	"errors"

	"voiceforged/internal/engine"
)

// Unavailable is a backend that refuses every load with a clear message. It
// is installed when no runner binary is configured, so misconfigured
// deployments fail fast at first use instead of producing mocked audio.
type Unavailable struct{ Reason string }

func (u Unavailable) Load(ctx context.Context, modelID string, opts engine.LoadOptions) (engine.ModelHandle, error) {
	reason := u.Reason
	if reason == "" {
		reason = "tts runner not configured"
	}
	return nil, errors.New(reason)
}
