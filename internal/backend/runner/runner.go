// Package runner provides the production engine backend: it supervises one
// TTS runner subprocess per loaded model and speaks line-delimited JSON with
// it over stdin/stdout. The runner owns the neural network; this side owns
// process lifecycle and framing only.
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voiceforged/internal/engine"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultReadyTimeout = 5 * time.Minute
	maxErrLineBytes     = 16 * 1024
)

// Config holds runner backend tunables.
type Config struct {
	// Bin is the runner executable (required).
	Bin string
	// ExtraArgs are appended to every runner invocation.
	ExtraArgs []string
	// ReadyTimeout bounds how long a model load may take; 0 means the
	// package default.
	ReadyTimeout time.Duration
}

// Backend implements engine.Backend by spawning a runner process per model.
type Backend struct {
	cfg Config
	log zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Backend {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Backend{cfg: cfg, log: log}
}

// request is one frame sent to the runner.
type request struct {
	ID          uint64 `json:"id"`
	Op          string `json:"op"`
	Text        string `json:"text,omitempty"`
	Language    string `json:"language,omitempty"`
	Speaker     string `json:"speaker,omitempty"`
	Instruct    string `json:"instruct,omitempty"`
	RefAudio    string `json:"ref_audio,omitempty"`
	RefText     string `json:"ref_text,omitempty"`
	XVectorOnly bool   `json:"x_vector_only,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// response is one frame read back. Event frames ("ready", "fatal") share the
// same shape with ID zero.
type response struct {
	ID         uint64 `json:"id"`
	Event      string `json:"event,omitempty"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	// PCM is base64 of little-endian float32 samples.
	PCM string `json:"pcm,omitempty"`
	// Prompt is an opaque blob the runner can re-ingest later.
	Prompt string `json:"prompt,omitempty"`
}

// prompt is the opaque clone prompt this backend produces. Keeping the blob
// on this side lets cached prompts outlive the runner process that built
// them.
type prompt struct{ blob string }

// Load spawns a runner for modelID and waits for its ready event.
func (b *Backend) Load(ctx context.Context, modelID string, opts engine.LoadOptions) (engine.ModelHandle, error) {
	if strings.TrimSpace(b.cfg.Bin) == "" {
		return nil, errors.New("tts runner binary not configured")
	}
	args := []string{"--model", modelID, "--device", opts.Device, "--precision", string(opts.Precision)}
	if opts.Attention != "" {
		args = append(args, "--attention", opts.Attention)
	}
	args = append(args, b.cfg.ExtraArgs...)

	cmd := exec.Command(b.cfg.Bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("runner stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runner stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("runner stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}
	go b.drainStderr(modelID, stderr)

	h := &handle{
		backend: b,
		model:   modelID,
		cmd:     cmd,
		stdin:   stdin,
		scanner: newFrameScanner(stdout),
	}
	if err := h.awaitReady(ctx, b.cfg.ReadyTimeout); err != nil {
		_ = h.Close()
		return nil, err
	}
	b.log.Debug().Str("model", modelID).Int("pid", cmd.Process.Pid).Msg("runner ready")
	return h, nil
}

func (b *Backend) drainStderr(model string, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, maxErrLineBytes), maxErrLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			b.log.Debug().Str("model", model).Msg("runner: " + line)
		}
	}
}

// newFrameScanner sizes the line scanner for PCM payloads (minutes of audio
// base64-encoded in one line).
func newFrameScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 256<<20)
	return sc
}

// handle is one live runner process.
type handle struct {
	backend *Backend
	model   string
	cmd     *exec.Cmd
	// mu serializes the request/response exchange on the pipes. One
	// in-flight call per model instance.
	mu      sync.Mutex
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	nextID  uint64
	closed  bool
}

func (h *handle) awaitReady(ctx context.Context, timeout time.Duration) error {
	type result struct {
		frame response
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := h.readFrame()
		ch <- result{frame: f, err: err}
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("runner startup: %w", r.err)
		}
		switch r.frame.Event {
		case "ready":
			return nil
		case "fatal":
			return errors.New(r.frame.Error)
		default:
			return fmt.Errorf("unexpected runner frame %q during startup", r.frame.Event)
		}
	case <-timer.C:
		return fmt.Errorf("runner did not become ready within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *handle) readFrame() (response, error) {
	if !h.scanner.Scan() {
		if err := h.scanner.Err(); err != nil {
			return response{}, err
		}
		return response{}, io.ErrUnexpectedEOF
	}
	var f response
	if err := json.Unmarshal(h.scanner.Bytes(), &f); err != nil {
		return response{}, fmt.Errorf("bad runner frame: %w", err)
	}
	return f, nil
}

// call performs one synchronous exchange with the runner. Cancellation
// terminates the runner process: the pipe protocol cannot abort a single
// request, so an abandoned exchange leaves the handle unusable.
func (h *handle) call(ctx context.Context, req request) (response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return response{}, errors.New("model handle is closed")
	}
	if err := ctx.Err(); err != nil {
		return response{}, err
	}
	h.nextID++
	req.ID = h.nextID
	buf, err := json.Marshal(req)
	if err != nil {
		return response{}, err
	}
	buf = append(buf, '\n')
	if _, err := h.stdin.Write(buf); err != nil {
		return response{}, fmt.Errorf("write to runner: %w", err)
	}

	type result struct {
		frame response
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			f, err := h.readFrame()
			if err != nil {
				ch <- result{err: err}
				return
			}
			if f.Event != "fatal" && f.ID != req.ID {
				// stale frame from an earlier aborted exchange
				continue
			}
			ch <- result{frame: f}
			return
		}
	}()

	select {
	case <-ctx.Done():
		// Killing the process unblocks the reader goroutine with EOF.
		_ = h.closeLocked()
		return response{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return response{}, fmt.Errorf("read from runner: %w", r.err)
		}
		if r.frame.Event == "fatal" {
			return response{}, errors.New(r.frame.Error)
		}
		if !r.frame.OK {
			return response{}, errors.New(r.frame.Error)
		}
		return r.frame, nil
	}
}

func (h *handle) Generate(ctx context.Context, p engine.GenerateParams) (engine.Audio, error) {
	f, err := h.call(ctx, request{
		Op:       "generate",
		Text:     p.Text,
		Language: p.Language,
		Speaker:  p.Speaker,
		Instruct: p.Instruct,
	})
	if err != nil {
		return engine.Audio{}, err
	}
	return decodeAudio(f)
}

func (h *handle) CreateClonePrompt(ctx context.Context, refAudioPath, transcript string, embeddingOnly bool) (engine.ClonePrompt, error) {
	f, err := h.call(ctx, request{
		Op:          "create_prompt",
		RefAudio:    refAudioPath,
		RefText:     transcript,
		XVectorOnly: embeddingOnly,
	})
	if err != nil {
		return nil, err
	}
	if f.Prompt == "" {
		return nil, errors.New("runner returned an empty clone prompt")
	}
	return prompt{blob: f.Prompt}, nil
}

func (h *handle) GenerateFromPrompt(ctx context.Context, text, language string, p engine.ClonePrompt) (engine.Audio, error) {
	rp, ok := p.(prompt)
	if !ok {
		return engine.Audio{}, fmt.Errorf("clone prompt of unexpected type %T", p)
	}
	f, err := h.call(ctx, request{
		Op:       "generate_from_prompt",
		Text:     text,
		Language: language,
		Prompt:   rp.blob,
	})
	if err != nil {
		return engine.Audio{}, err
	}
	return decodeAudio(f)
}

// Close terminates the runner process, releasing its device memory.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeLocked()
}

// closeLocked requires h.mu to be held.
func (h *handle) closeLocked() error {
	if h.closed {
		return nil
	}
	h.closed = true

	_ = h.stdin.Close()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	err := h.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return err
	}
	return nil
}

func decodeAudio(f response) (engine.Audio, error) {
	if f.SampleRate <= 0 {
		return engine.Audio{}, fmt.Errorf("runner returned invalid sample rate %d", f.SampleRate)
	}
	samples, err := decodePCM(f.PCM)
	if err != nil {
		return engine.Audio{}, err
	}
	return engine.Audio{Samples: samples, SampleRate: f.SampleRate}, nil
}
