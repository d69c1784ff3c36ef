package server

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/wudi/pdfscrub/assemble"
	"github.com/wudi/pdfscrub/observability"
	"github.com/wudi/pdfscrub/parser"
	"github.com/wudi/pdfscrub/pipeline"
)

//go:embed landing.md
var landingMarkdown []byte

const landingTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8" />
<title>Borrar Respuestas de Parciales</title>
<style>
body { display: flex; justify-content: center; font-family: Inter, system-ui, Helvetica, Arial, sans-serif; line-height: 1.5; }
.container { max-width: 40em; }
</style>
</head>
<body>
<div class="container">
%s</div>
</body>
</html>
`

func renderLanding() ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(landingMarkdown, &body); err != nil {
		return nil, fmt.Errorf("render landing page: %w", err)
	}
	return []byte(fmt.Sprintf(landingTemplate, body.String())), nil
}

// OutputSuffix is appended to the upload's base name in the download.
const OutputSuffix = "_SinCorrecciones.pdf"

const (
	formFile    = "file"
	formTargets = "search_strings"
)

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.landing)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","service":"pdfscrub"}`))
}

func (s *Server) eraseAnswers(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFile)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file was provided")
		return
	}
	data, err := readAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read file")
		return
	}

	var targets []string
	for _, t := range r.MultipartForm.Value[formTargets] {
		if t != "" {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		writeError(w, r, http.StatusBadRequest, "no search strings were provided")
		return
	}
	if !parser.IsPDF(data) {
		writeError(w, r, http.StatusUnsupportedMediaType, "the file is not a PDF")
		return
	}

	out, err := s.proc.Run(r.Context(), data, targets)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("scrub failed",
			observability.String("request_id", RequestIDFrom(r.Context())),
			observability.String("file", header.Filename),
			observability.Int("status", status),
			observability.Error("error", err),
		)
		writeError(w, r, status, errorMessage(status, err))
		return
	}

	name := outputName(header.Filename)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(len(out)))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func readAll(f multipart.File) ([]byte, error) {
	defer f.Close()
	return io.ReadAll(f)
}

// outputName keeps the part of the upload's base name before the first dot
// and replaces spaces with underscores.
func outputName(upload string) string {
	base := filepath.Base(strings.ReplaceAll(upload, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return -1
		}
		return r
	}, base)
	if base == "" || base == "/" {
		base = "document"
	}
	return base + OutputSuffix
}

func statusFor(err error) int {
	var (
		ce *pipeline.ConfigError
		ie *pipeline.InputError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce):
		if errors.Is(err, assemble.ErrNoImages) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case errors.As(err, &ie):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return http.StatusText(status)
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      message,
		"request_id": RequestIDFrom(r.Context()),
	})
}
