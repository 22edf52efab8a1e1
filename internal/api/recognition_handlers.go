package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/4ier/logodeth/internal/llm"
	"github.com/4ier/logodeth/internal/ranking"
	"github.com/4ier/logodeth/internal/recognition"
	"github.com/4ier/logodeth/internal/validate"
)

// multipartOverhead is the allowance for form fields and boundaries on top
// of the file itself.
const multipartOverhead = 1 << 20

// RecognizeResponse is a Result plus its ranked candidate list.
type RecognizeResponse struct {
	*recognition.Result
	Ranked []ranking.RankedResult `json:"ranked"`
}

// AlternateSource supplies extra candidates to rank next to a result.
type AlternateSource interface {
	Alternates(label string) []ranking.Candidate
}

// RecognitionHandlers serves the recognize endpoints.
type RecognitionHandlers struct {
	service     *recognition.Service
	constraints validate.FileConstraints
	alternates  AlternateSource
	logger      *slog.Logger
}

// RecognitionHandlersConfig configures RecognitionHandlers.
type RecognitionHandlersConfig struct {
	Service     *recognition.Service
	Constraints validate.FileConstraints
	// Alternates is optional; mock mode uses it to rank every fixture.
	Alternates AlternateSource
	Logger     *slog.Logger
}

// NewRecognitionHandlers creates recognition handlers.
func NewRecognitionHandlers(cfg RecognitionHandlersConfig) *RecognitionHandlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RecognitionHandlers{
		service:     cfg.Service,
		constraints: cfg.Constraints,
		alternates:  cfg.Alternates,
		logger:      logger,
	}
}

// Recognize handles POST /api/v1/recognize.
//
// Form fields: file (required), provider_preference (JSON array of provider
// names, optional), force_refresh (bool, optional).
func (h *RecognitionHandlers) Recognize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	maxBody := h.constraints.MaxSizeBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "File too large")
			return
		}
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Expected a multipart/form-data upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "No file uploaded")
		return
	}
	data, err := readUpload(file, h.constraints.MaxSizeBytes)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read upload", "error", err)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Could not read uploaded file")
		return
	}

	info, err := validate.Upload(header.Filename, data, h.constraints)
	if err != nil {
		h.writeValidationError(w, ctx, err)
		return
	}

	pref, err := parsePreference(r.FormValue("provider_preference"))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	forceRefresh := false
	if v := r.FormValue("force_refresh"); v != "" {
		forceRefresh, err = strconv.ParseBool(v)
		if err != nil {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "force_refresh must be a boolean")
			return
		}
	}

	h.logger.InfoContext(ctx, "processing logo recognition",
		"filename", header.Filename,
		"size", info.Size,
		"mime_type", info.MIMEType)

	result, err := h.service.Recognize(ctx, recognition.Upload{
		Data:               data,
		Filename:           header.Filename,
		MIMEType:           info.MIMEType,
		ProviderPreference: pref,
		ForceRefresh:       forceRefresh,
	})
	if err != nil {
		h.writeRecognitionError(w, ctx, err)
		return
	}

	WriteJSON(w, ctx, http.StatusOK, h.respond(result))
}

// Cached handles GET /api/v1/recognize/{hash}.
func (h *RecognitionHandlers) Cached(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := r.PathValue("hash")

	result, err := h.service.Cached(ctx, hash)
	switch {
	case errors.Is(err, recognition.ErrNotFound):
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "No cached result found")
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "cache lookup failed", "image_hash", hash, "error", err)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Cache unavailable")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, h.respond(result))
}

func (h *RecognitionHandlers) respond(result *recognition.Result) RecognizeResponse {
	var alternates []ranking.Candidate
	if h.alternates != nil {
		alternates = h.alternates.Alternates(result.BandName)
	}
	return RecognizeResponse{
		Result: result,
		Ranked: recognition.Ranked(result, alternates...),
	}
}

func (h *RecognitionHandlers) writeValidationError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, validate.ErrInvalidFileType):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidFileType, err.Error())
	case errors.Is(err, validate.ErrFileTooLarge):
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, err.Error())
	case errors.Is(err, validate.ErrInvalidMIMEType):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidMIMEType, err.Error())
	default:
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	}
}

func (h *RecognitionHandlers) writeRecognitionError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, recognition.ErrBudgetExceeded):
		WriteError(w, ctx, http.StatusTooManyRequests, ErrCodeBudgetExceeded, err.Error())
	case errors.Is(err, recognition.ErrInvalidImage):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, llm.ErrNoProviders):
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error())
	default:
		h.logger.ErrorContext(ctx, "recognition failed", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeRecognitionFailed, err.Error())
	}
}

// readUpload reads at most limit+1 bytes so oversized files are detected
// without buffering all of them. limit <= 0 disables the cap.
func readUpload(file multipart.File, limit int64) ([]byte, error) {
	defer file.Close()
	if limit <= 0 {
		return io.ReadAll(file)
	}
	return io.ReadAll(io.LimitReader(file, limit+1))
}

// parsePreference decodes a JSON array of provider names. Empty means none.
func parsePreference(raw string) ([]llm.Provider, error) {
	if raw == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, errors.New("provider_preference must be a JSON array of provider names")
	}
	pref := make([]llm.Provider, 0, len(names))
	for _, name := range names {
		p, err := llm.ParseProvider(name)
		if err != nil {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		pref = append(pref, p)
	}
	return pref, nil
}
