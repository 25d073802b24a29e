package httpapi

import "context"

// maxFormBytes caps non-upload form bodies.
var maxFormBytes int64 = 1 << 20

// maxUploadBytes caps multipart requests carrying reference audio.
// Default matches the documented 10 MiB reference-audio limit plus framing.
var maxUploadBytes int64 = 11 << 20

// maxReferenceAudioBytes is the per-file cap for uploaded reference audio.
const maxReferenceAudioBytes = 10 << 20

// SetMaxUploadBytes configures the multipart request size cap.
func SetMaxUploadBytes(n int64) {
	if n <= 0 {
		maxUploadBytes = 11 << 20
		return
	}
	maxUploadBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
}

// serverBaseCtx is a process-level context canceled on shutdown, so a
// daemon stop also cancels in-flight synthesis work.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is
// done. The returned cancel func must be called when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
