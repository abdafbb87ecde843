package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Brownie44l1/plantcare-api/internal/diagnosis"
	"github.com/Brownie44l1/plantcare-api/internal/labels"
	"github.com/Brownie44l1/plantcare-api/internal/model"
	"github.com/Brownie44l1/plantcare-api/internal/service"
	"github.com/Brownie44l1/plantcare-api/internal/web"
)

const (
	imageField      = "image"
	msgTryAnother   = "Error during analysis. Please try another image."
	msgSelectFile   = "Please select an image file to upload."
	msgFileTooLarge = "The image is too large."
)

// Detector is what the HTTP layer needs from the prediction service.
type Detector interface {
	Ready() bool
	Labels() (labels.Table, error)
	InputSize() (int, error)
	Diagnose(ctx context.Context, data []byte) (*diagnosis.Diagnosis, error)
	DiagnoseTensor(ctx context.Context, input []float32) (*diagnosis.Diagnosis, error)
}

type Handler struct {
	detector  Detector
	pages     *web.Renderer
	log       zerolog.Logger
	maxUpload int64
}

func NewHandler(detector Detector, pages *web.Renderer, log zerolog.Logger, maxUpload int64) *Handler {
	return &Handler{
		detector:  detector,
		pages:     pages,
		log:       log,
		maxUpload: maxUpload,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.detector.Ready() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONError(w, http.StatusServiceUnavailable, "model not loaded")
}

func (h *Handler) Labels(w http.ResponseWriter, r *http.Request) {
	table, err := h.detector.Labels()
	if err != nil {
		h.requestLog(r).Error().Err(err).Msg("labels unavailable")
		writeJSONError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	type entry struct {
		Index     int    `json:"index"`
		Label     string `json:"label"`
		PlantType string `json:"plant_type"`
		Condition string `json:"condition"`
		Healthy   bool   `json:"healthy"`
	}
	out := make([]entry, 0, table.Len())
	for i, l := range table.Labels() {
		out = append(out, entry{Index: i, Label: l.String(), PlantType: l.Plant(), Condition: l.Condition(), Healthy: l.IsHealthy()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": out})
}

// Predict classifies a raw, already preprocessed input tensor.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	var req model.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	expectedSize, err := h.detector.InputSize()
	if err != nil {
		h.requestLog(r).Error().Err(err).Msg("model unavailable")
		writeJSONError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	if len(req.Image) != expectedSize {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)))
		return
	}

	result, err := h.detector.DiagnoseTensor(r.Context(), req.Image)
	if err != nil {
		h.requestLog(r).Error().Err(err).Msg("prediction failed")
		writeJSONError(w, http.StatusInternalServerError, "Prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PredictFromImage classifies an uploaded JPEG or PNG.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.readUpload(w, r)
	if err != nil {
		status, msg := uploadErrorStatus(err)
		writeJSONError(w, status, msg)
		return
	}
	h.requestLog(r).Debug().Str("file", name).Int("bytes", len(data)).Msg("received upload")

	result, err := h.detector.Diagnose(r.Context(), data)
	if err != nil {
		if errors.Is(err, service.ErrInvalidImage) {
			writeJSONError(w, http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG")
			return
		}
		h.requestLog(r).Error().Err(err).Str("file", name).Msg("prediction failed")
		writeJSONError(w, http.StatusInternalServerError, "Prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

var errNoFile = errors.New("no image file provided")

// readUpload pulls the image field out of a multipart form.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(imageField)
	if err != nil {
		return nil, "", errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func uploadErrorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, msgFileTooLarge
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "No image file provided. Use 'image' as the form field name"
	default:
		return http.StatusBadRequest, "Failed to parse form"
	}
}

func (h *Handler) requestLog(r *http.Request) *zerolog.Logger {
	l := h.log.With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		l = l.Str("request_id", rid)
	}
	logger := l.Logger()
	return &logger
}

// writeJSON encodes v before writing the header. A value that cannot be
// encoded is answered with a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(ErrorResponse{Error: "failed to encode response", Code: status})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}
