package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/Brownie44l1/plantcare-api/internal/labels"
	"github.com/Brownie44l1/plantcare-api/internal/web"
)

// Page returns the GET handler for p.
func (h *Handler) Page(p web.Page) http.HandlerFunc {
	switch p {
	case web.PageHome:
		return h.home
	case web.PageDetect:
		return h.detectForm
	case web.PageAbout:
		return h.about
	case web.PageTips:
		return h.tips
	default:
		return func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }
	}
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageHome, web.Data{})
}

func (h *Handler) about(w http.ResponseWriter, r *http.Request) {
	table, err := h.detector.Labels()
	if err != nil {
		table = labels.Default()
	}
	h.render(w, r, http.StatusOK, web.PageAbout, web.Data{Plants: table.Plants(), Classes: table.Len()})
}

func (h *Handler) tips(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageTips, web.Data{})
}

func (h *Handler) detectForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageDetect, h.detectData())
}

// Detect handles the upload form and renders the diagnosis card, or the
// generic retry message when the image cannot be analysed.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	data := h.detectData()

	img, name, err := h.readUpload(w, r)
	if err != nil {
		status, msg := uploadErrorStatus(err)
		if status == http.StatusBadRequest {
			msg = msgSelectFile
		}
		data.Error = msg
		h.render(w, r, status, web.PageDetect, data)
		return
	}

	diag, err := h.detector.Diagnose(r.Context(), img)
	if err != nil {
		h.requestLog(r).Warn().Err(err).Str("file", name).Msg("analysis failed")
		data.Error = msgTryAnother
		h.render(w, r, http.StatusUnprocessableEntity, web.PageDetect, data)
		return
	}
	data.Diagnosis = diag
	data.Filename = name
	h.render(w, r, http.StatusOK, web.PageDetect, data)
}

func (h *Handler) detectData() web.Data {
	return web.Data{MaxUpload: humanBytes(h.maxUpload)}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, p web.Page, data web.Data) {
	var buf bytes.Buffer
	if err := h.pages.Render(&buf, p, data); err != nil {
		h.requestLog(r).Error().Err(err).Str("page", p.String()).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
