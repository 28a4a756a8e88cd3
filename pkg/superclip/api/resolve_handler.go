package api

import (
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

// clipPageTemplate renders a text clip as a standalone HTML page for
// direct-link visitors.
var clipPageTemplate = template.Must(template.New("clip").Parse(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Super Clipboard {{.Code}}</title>
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <style>
      body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; margin: 32px; color: #0f172a; background: #f8fafc; }
      pre { white-space: pre-wrap; word-break: break-word; padding: 24px; background: #fff; border-radius: 16px; box-shadow: 0 12px 32px rgba(15, 23, 42, 0.12); }
      footer { margin-top: 24px; font-size: 0.875rem; color: #64748b; }
    </style>
  </head>
  <body>
    <h1>Shared text</h1>
    <pre>{{.Content}}</pre>
    <footer>Created {{.Created}}, downloads {{.Downloads}}</footer>
  </body>
</html>
`))

type clipPageData struct {
	Code      string
	Content   string
	Created   string
	Downloads int
}

// ResolveHandler serves direct links: short identifiers that resolve
// to a clip without going through the JSON API.
type ResolveHandler struct {
	service    superclip.Service
	staticRoot string
}

// NewResolveHandler creates a new direct-link handler. staticRoot may
// be empty when no frontend bundle is served.
func NewResolveHandler(service superclip.Service, staticRoot string) *ResolveHandler {
	return &ResolveHandler{service: service, staticRoot: staticRoot}
}

// RegisterRoutes attaches the direct-link routes to the root router.
// They are registered last so static API prefixes keep precedence.
func (h *ResolveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/", h.Index)
	r.Get("/{identifier}", h.ResolveClip)
	r.Get("/{identifier}/raw", h.ResolveClipRaw)
}

// Health reports service liveness.
func (h *ResolveHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"ok":        true,
		"timestamp": time.Now().UnixMilli(),
	})
}

// Index serves the frontend bundle when one is deployed, and a small
// identification payload otherwise.
func (h *ResolveHandler) Index(w http.ResponseWriter, r *http.Request) {
	if h.staticRoot != "" {
		indexPath := filepath.Join(h.staticRoot, "index.html")
		if _, err := os.Stat(indexPath); err == nil {
			http.ServeFile(w, r, indexPath)
			return
		}
	}
	render.JSON(w, r, map[string]interface{}{
		"name": "Super Clipboard API",
		"ok":   true,
	})
}

// ResolveClip resolves an identifier and serves the clip content:
// text clips render as an HTML page, file clips stream the stored
// bytes. Every visit counts as a download.
func (h *ResolveHandler) ResolveClip(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

// ResolveClipRaw behaves like ResolveClip but serves text clips as
// plain text instead of an HTML page.
func (h *ResolveHandler) ResolveClipRaw(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

func (h *ResolveHandler) resolve(w http.ResponseWriter, r *http.Request, raw bool) {
	identifier := chi.URLParam(r, "identifier")

	clip, err := h.service.ResolveClip(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, superclip.ErrClipNotFound) {
			http.Error(w, "clip not found or expired", http.StatusNotFound)
			return
		}
		slog.Error("Failed to resolve clip", "error", err)
		http.Error(w, "failed to resolve clip", http.StatusInternalServerError)
		return
	}

	clip, removed, err := h.service.RegisterDownload(r.Context(), clip.ID, clip.OwnerID)
	if err != nil {
		if errors.Is(err, superclip.ErrClipNotFound) {
			http.Error(w, "clip not found or expired", http.StatusNotFound)
			return
		}
		slog.Error("Failed to track direct link download", "clip_id", clip.ID, "error", err)
		http.Error(w, "failed to track download", http.StatusInternalServerError)
		return
	}

	if clip.Kind == superclip.ClipKindText {
		h.serveText(w, r, clip, raw)
	} else {
		h.serveFile(w, r, clip)
	}

	if removed {
		removeExhaustedClip(r.Context(), h.service, clip.ID, clip.OwnerID)
	}
}

func (h *ResolveHandler) serveText(w http.ResponseWriter, r *http.Request, clip *superclip.Clip, raw bool) {
	if raw {
		render.PlainText(w, r, clip.Text)
		return
	}
	data := clipPageData{
		Code:      clip.AccessCode,
		Content:   clip.Text,
		Created:   clip.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		Downloads: clip.DownloadCount,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := clipPageTemplate.Execute(w, data); err != nil {
		slog.Error("Failed to render clip page", "clip_id", clip.ID, "error", err)
	}
}

func (h *ResolveHandler) serveFile(w http.ResponseWriter, r *http.Request, clip *superclip.Clip) {
	reader, err := h.service.OpenBlob(r.Context(), clip)
	if err != nil {
		if errors.Is(err, superclip.ErrBlobMissing) {
			http.Error(w, "file data missing", http.StatusGone)
			return
		}
		slog.Error("Failed to open clip file", "clip_id", clip.ID, "error", err)
		http.Error(w, "failed to open clip file", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	writeFileHeaders(w, clip.File)
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream clip file", "clip_id", clip.ID, "error", err)
	}
}
