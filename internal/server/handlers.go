package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/pipeline"
)

// =============================================================================
// Request / Response Types
// =============================================================================

// exportBody is the JSON body of every POST route.
type exportBody struct {
	Request card.Request `json:"request"`
	Name    string       `json:"name,omitempty"`    // Owner name for filenames
	Theme   string       `json:"theme,omitempty"`   // Fills the palette when the request has none
	Quality int          `json:"quality,omitempty"` // JPEG quality 1-100
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, palette.Themes())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, err := s.decode(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data, err := s.runner.Preview(r.Context(), body.Request)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.respondBytes(w, export.FormatPNG.ContentType(), data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !format.IsImage() {
		s.respondError(w, r, errors.New(errors.ErrCodeInvalidFormat, "use /api/v1/print for %s", format))
		return
	}
	body, err := s.decode(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.execute(w, r, pipeline.Options{
		Request: body.Request,
		Formats: []export.Format{format},
		Name:    body.Name,
		Quality: body.Quality,
	}, true)
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	paper, err := export.ParsePaperSize(r.URL.Query().Get("paper"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	body, err := s.decode(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.execute(w, r, pipeline.Options{
		Request: body.Request,
		Formats: []export.Format{export.FormatPDF},
		Name:    body.Name,
		Paper:   paper,
	}, false)
}

// execute runs one format through the pipeline and writes the artifact.
// Downloads are sent as attachments, print pages inline.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, opts pipeline.Options, attachment bool) {
	opts.Logger = s.logger.With("request_id", requestIDFrom(r.Context()))
	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	art := res.Artifacts[0]
	cacheState := "MISS"
	if res.CacheInfo.RenderHit {
		cacheState = "HIT"
	}
	w.Header().Set("X-Cache", cacheState)
	if attachment {
		w.Header().Set("Content-Disposition", `attachment; filename="`+art.Filename+`"`)
	}
	s.respondBytes(w, art.ContentType, art.Data)
}

// =============================================================================
// Helpers
// =============================================================================

// decode reads an exportBody and resolves its theme into the palette.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (exportBody, error) {
	var body exportBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return body, err
		}
		return body, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body")
	}
	if body.Theme != "" {
		theme, ok := palette.Lookup(body.Theme)
		if !ok {
			return body, errors.New(errors.ErrCodeInvalidTheme, "unknown theme %q", body.Theme)
		}
		if body.Request.Palette.IsZero() {
			body.Request.Palette = theme.Palette()
		}
	}
	return body, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response failed", "err", err)
	}
}

func (s *Server) respondBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("write response failed", "err", err)
	}
}

// respondError maps err onto a status code and writes it as JSON. Only
// server-side failures are logged.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)
	msg := errors.UserMessage(err)
	switch status {
	case http.StatusRequestEntityTooLarge:
		code, msg = errors.ErrCodeInvalidInput, "request body too large"
	case http.StatusInternalServerError:
		s.logger.Error("request failed", "path", r.URL.Path, "err", err,
			"request_id", requestIDFrom(r.Context()))
		msg = "internal error"
	}
	if code == "" {
		code = errors.ErrCodeInternal
	}
	s.respondJSON(w, status, errorBody{Code: code, Error: msg})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeBusy):
		return http.StatusConflict
	case errors.Is(err, errors.ErrCodeForbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrCodeTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
