package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voiceforged/internal/engine"
	"voiceforged/internal/wav"
	"voiceforged/pkg/types"
)

// Service defines the engine methods required by the HTTP API layer.
type Service interface {
	GeneratePreset(ctx context.Context, text, presetName, language string, size engine.ModelSize) (engine.Audio, error)
	GenerateVoiceDesign(ctx context.Context, text, description, language string) (engine.Audio, error)
	GenerateClone(ctx context.Context, text, refAudioPath, transcript, language string, size engine.ModelSize) (engine.Audio, error)
	GenerateFromCachedPrompt(ctx context.Context, text, promptID, language string) (engine.Audio, error)
	CreateClonePrompt(ctx context.Context, refAudioPath, transcript, explicitID string) (string, error)
	Status() types.StatusResponse
	Presets() []types.PresetInfo
	Speakers() []string
	Languages() []string
}

// MuxOptions configures the router.
type MuxOptions struct {
	// OutputDir is where generated WAV files are written and served from.
	OutputDir string
	// DefaultModelSize is used when a request omits model_size. Empty means
	// the large checkpoint.
	DefaultModelSize engine.ModelSize
}

// allowedAudioExts is the reference-audio upload allowlist.
var allowedAudioExts = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true, ".ogg": true,
}

type server struct {
	svc         Service
	outputDir   string
	defaultSize engine.ModelSize
}

func NewMux(svc Service, opts MuxOptions) http.Handler {
	size := opts.DefaultModelSize
	if size == "" {
		size = engine.SizeLarge
	}
	s := &server{svc: svc, outputDir: opts.OutputDir, defaultSize: size}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
		}))
	}

	r.Get("/status", s.handleStatus)
	r.Get("/presets", s.handlePresets)
	r.Get("/languages", s.handleLanguages)
	r.Get("/speakers", s.handleSpeakers)

	r.Post("/tts/preset", s.handlePreset)
	r.Post("/tts/design", s.handleDesign)
	r.Post("/tts/clone", s.handleClone)
	r.Post("/tts/clone/create-prompt", s.handleCreatePrompt)
	r.Post("/tts/clone/from-prompt", s.handleFromPrompt)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// Models load lazily; the daemon serves as soon as it is up.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	if s.outputDir != "" {
		fs := http.StripPrefix("/static/generations/", http.FileServer(http.Dir(s.outputDir)))
		r.Get("/static/generations/*", fs.ServeHTTP)
		r.Delete("/generations/{filename}", s.handleDeleteGeneration)
	}

	MountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// handleStatus godoc
// @Summary Engine status
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Status())
}

func (s *server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.PresetsResponse{Presets: s.svc.Presets()})
}

func (s *server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.LanguagesResponse{Languages: s.svc.Languages()})
}

func (s *server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.SpeakersResponse{Speakers: s.svc.Speakers()})
}

// requestSize resolves the model_size form value, falling back to the
// configured default when the request omits it.
func (s *server) requestSize(v string) engine.ModelSize {
	if strings.TrimSpace(v) == "" {
		return s.defaultSize
	}
	return engine.ParseModelSize(v)
}

// parseForm accepts urlencoded or multipart form bodies with a size cap.
func parseForm(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return r.ParseMultipartForm(limit)
	}
	return r.ParseForm()
}

// generate runs one synthesis call end to end: invoke, encode, persist,
// respond. Handlers supply the feature tag and the call closure.
func (s *server) generate(w http.ResponseWriter, r *http.Request, feature string, size engine.ModelSize,
	call func(ctx context.Context) (engine.Audio, error)) {

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo {
		z := zlog.Info().Str("path", r.URL.Path)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("generation start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	audio, err := call(ctx)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status, _ := errorStatus(err)
		if lvl >= LevelInfo {
			zlog.Info().Str("path", r.URL.Path).Int("status", status).
				Dur("dur", time.Since(start)).Err(err).Msg("generation end")
		}
		writeEngineError(w, r, err)
		return
	}

	resp, err := s.saveGeneration(feature, size, audio)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to persist generated audio")
		writeJSONError(w, http.StatusInternalServerError, "failed to store generated audio")
		return
	}
	if lvl >= LevelInfo {
		secs := float64(len(audio.Samples)) / float64(audio.SampleRate)
		zlog.Info().Str("path", r.URL.Path).Int("status", 200).
			Float64("audio_secs", secs).Dur("dur", time.Since(start)).Msg("generation end")
	}
	writeJSON(w, resp)
}

// saveGeneration encodes the audio as WAV under the output dir.
func (s *server) saveGeneration(feature string, size engine.ModelSize, audio engine.Audio) (types.GenerateResponse, error) {
	filename := fmt.Sprintf("%s_%s.wav", feature, uuid.NewString())
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return types.GenerateResponse{}, err
	}
	path := filepath.Join(s.outputDir, filename)
	if err := os.WriteFile(path, wav.Encode(audio.Samples, audio.SampleRate), 0o644); err != nil {
		return types.GenerateResponse{}, err
	}
	return types.GenerateResponse{
		Status:    "success",
		URL:       "/static/generations/" + filename,
		Filename:  filename,
		ModelSize: string(size),
		Feature:   feature,
	}, nil
}

// handleDeleteGeneration godoc
// @Summary Delete a generated audio file
// @Produce json
// @Success 200 {object} types.DeleteResponse
// @Failure 404 {object} types.ErrorResponse
// @Router /generations/{filename} [delete]
func (s *server) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	// Reject anything that could escape the output dir.
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		writeJSONError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	path := filepath.Join(s.outputDir, filename)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, http.StatusNotFound, "file not found")
			return
		}
		zlog.Error().Str("path", path).Err(err).Msg("failed to delete generated file")
		writeJSONError(w, http.StatusInternalServerError, "failed to delete file")
		return
	}
	writeJSON(w, types.DeleteResponse{Status: "success", Message: "File deleted"})
}

// handlePreset godoc
// @Summary Generate speech with a preset voice
// @Accept mpfd
// @Produce json
// @Success 200 {object} types.GenerateResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /tts/preset [post]
func (s *server) handlePreset(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	text := r.FormValue("text")
	presetName := r.FormValue("preset_name")
	language := r.FormValue("language")
	size := s.requestSize(r.FormValue("model_size"))
	s.generate(w, r, "preset", size, func(ctx context.Context) (engine.Audio, error) {
		return s.svc.GeneratePreset(ctx, text, presetName, language, size)
	})
}

func (s *server) handleDesign(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	text := r.FormValue("text")
	description := r.FormValue("voice_description")
	language := r.FormValue("language")
	s.generate(w, r, "design", engine.SizeLarge, func(ctx context.Context) (engine.Audio, error) {
		return s.svc.GenerateVoiceDesign(ctx, text, description, language)
	})
}

func (s *server) handleClone(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	refPath, cleanup, err := s.saveReferenceUpload(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	text := r.FormValue("text")
	transcript := strings.TrimSpace(r.FormValue("reference_text"))
	language := r.FormValue("language")
	size := s.requestSize(r.FormValue("model_size"))
	s.generate(w, r, "clone", size, func(ctx context.Context) (engine.Audio, error) {
		return s.svc.GenerateClone(ctx, text, refPath, transcript, language, size)
	})
}

func (s *server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	refPath, cleanup, err := s.saveReferenceUpload(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	transcript := strings.TrimSpace(r.FormValue("reference_text"))
	explicitID := strings.TrimSpace(r.FormValue("prompt_id"))

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	id, err := s.svc.CreateClonePrompt(ctx, refPath, transcript, explicitID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, types.CreatePromptResponse{
		Success:  true,
		PromptID: id,
		Message:  fmt.Sprintf("Clone prompt created. Use prompt_id %q with /tts/clone/from-prompt", id),
	})
}

func (s *server) handleFromPrompt(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, maxFormBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	text := r.FormValue("text")
	promptID := r.FormValue("prompt_id")
	language := r.FormValue("language")
	if strings.TrimSpace(promptID) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt_id is required")
		return
	}
	s.generate(w, r, "cached_clone", engine.SizeLarge, func(ctx context.Context) (engine.Audio, error) {
		return s.svc.GenerateFromCachedPrompt(ctx, text, promptID, language)
	})
}

// saveReferenceUpload validates the multipart "file" part and spills it to a
// temp file. The cleanup func removes the temp file; always call it.
func (s *server) saveReferenceUpload(r *http.Request) (string, func(), error) {
	noop := func() {}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", noop, fmt.Errorf("reference audio file is required")
	}
	defer file.Close()

	if header.Filename == "" {
		return "", noop, fmt.Errorf("no file provided")
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioExts[ext] {
		return "", noop, fmt.Errorf("unsupported audio format %q", ext)
	}
	if header.Size > maxReferenceAudioBytes {
		return "", noop, fmt.Errorf("file too large (max %d MB)", maxReferenceAudioBytes>>20)
	}

	path := filepath.Join(os.TempDir(), "voiceforged_"+uuid.NewString()+ext)
	if err := spillToFile(path, file); err != nil {
		return "", noop, fmt.Errorf("failed to store uploaded file")
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zlog.Warn().Str("path", path).Err(err).Msg("failed to remove temp upload")
		}
	}
	return path, cleanup, nil
}

func spillToFile(path string, src multipart.File) error {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := dst.ReadFrom(src); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
