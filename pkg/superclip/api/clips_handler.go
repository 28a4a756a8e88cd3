package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

// ClipsHandler handles the clip lifecycle API endpoints.
type ClipsHandler struct {
	service superclip.Service
}

// NewClipsHandler creates a new clips handler.
func NewClipsHandler(service superclip.Service) *ClipsHandler {
	return &ClipsHandler{service: service}
}

// Routes returns the router for clip endpoints.
func (h *ClipsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListClips)
	r.Post("/", h.CreateClip)
	r.Get("/code/{accessCode}", h.GetClipByCode)
	r.Get("/{clipID}", h.GetClip)
	r.Delete("/{clipID}", h.DeleteClip)
	r.Post("/{clipID}/download", h.TrackDownload)
	r.Get("/{clipID}/file", h.DownloadFile)
	return r
}

// CreateClipRequest is the request body for creating a clip.
type CreateClipRequest struct {
	Kind             string           `json:"kind"`
	ExpiresAt        int64            `json:"expiresAt"`
	MaxDownloads     *int             `json:"maxDownloads"`
	AccessCode       string           `json:"accessCode"`
	AccessToken      string           `json:"accessToken"`
	AccessTokenOwner string           `json:"accessTokenOwner"`
	OwnerID          string           `json:"ownerId"`
	Payload          ClipPayloadInput `json:"payload"`
	CaptchaToken     string           `json:"captchaToken"`
}

// ClipPayloadInput carries exactly one of the two payload variants.
type ClipPayloadInput struct {
	Text *string          `json:"text"`
	File *StoredFileInput `json:"file"`
}

// StoredFileInput describes an uploaded file. The declared size and
// mime are informational; the stored values come from the decoded
// data URL.
type StoredFileInput struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Mime    string `json:"mime"`
	DataURL string `json:"dataUrl"`
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}

// validate normalizes the request and translates it into the service
// input, rejecting shapes the wire contract does not allow.
func (req *CreateClipRequest) validate() (superclip.CreateClipRequest, error) {
	var input superclip.CreateClipRequest

	kind := superclip.ClipKind(req.Kind)
	if !kind.IsValid() {
		return input, errors.New("kind must be \"text\" or \"file\"")
	}
	if req.ExpiresAt <= 0 {
		return input, errors.New("expiresAt must be a positive epoch timestamp in milliseconds")
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return input, errors.New("ownerId is required")
	}
	if len(ownerID) > 64 {
		return input, errors.New("ownerId must be at most 64 characters")
	}

	accessCode := strings.TrimSpace(req.AccessCode)
	if accessCode != "" {
		if len(accessCode) < 5 || len(accessCode) > 12 {
			return input, errors.New("access code must be 5 to 12 characters")
		}
		if !isAlphanumeric(accessCode) {
			return input, errors.New("access code must contain only letters and digits")
		}
	}

	accessToken := strings.TrimSpace(req.AccessToken)
	if accessToken != "" && len(accessToken) < 7 {
		return input, errors.New("access token must be at least 7 characters")
	}
	tokenOwner := strings.TrimSpace(req.AccessTokenOwner)
	if len(tokenOwner) > 64 {
		return input, errors.New("accessTokenOwner must be at most 64 characters")
	}
	if accessToken != "" && tokenOwner == "" {
		return input, errors.New("accessTokenOwner is required when accessToken is set")
	}

	switch kind {
	case superclip.ClipKindText:
		if req.Payload.Text == nil || strings.TrimSpace(*req.Payload.Text) == "" {
			return input, errors.New("text clips require a text payload")
		}
		if req.Payload.File != nil {
			return input, errors.New("text clips must not include file data")
		}
		input.Text = *req.Payload.Text
	case superclip.ClipKindFile:
		if req.Payload.File == nil {
			return input, errors.New("file clips require file data")
		}
		if req.Payload.Text != nil {
			return input, errors.New("file clips must not include a text payload")
		}
		if req.Payload.File.Name == "" || len(req.Payload.File.Name) > 255 {
			return input, errors.New("file name must be 1 to 255 characters")
		}
		if req.Payload.File.DataURL == "" {
			return input, errors.New("file dataUrl is required")
		}
		input.File = &superclip.FileUpload{
			Name:    req.Payload.File.Name,
			DataURL: req.Payload.File.DataURL,
		}
	}

	input.Kind = kind
	input.ExpiresAt = req.ExpiresAt
	input.MaxDownloads = req.MaxDownloads
	input.AccessCode = accessCode
	input.AccessToken = accessToken
	input.OwnerID = ownerID
	input.CaptchaToken = req.CaptchaToken
	return input, nil
}

// createStatus maps clip creation errors onto HTTP status codes:
// conflicts (duplicate code, token ownership) are distinct from
// validation failures so clients can react differently.
func createStatus(err error) int {
	switch {
	case errors.Is(err, superclip.ErrCaptchaFailed):
		return http.StatusUnauthorized
	case errors.Is(err, superclip.ErrAccessCodeTaken),
		errors.Is(err, superclip.ErrTokenOccupied),
		errors.Is(err, superclip.ErrTokenExpired),
		errors.Is(err, superclip.ErrTokenInvalid),
		errors.Is(err, superclip.ErrTokenNotRegistered):
		return http.StatusConflict
	case errors.Is(err, superclip.ErrInvalidExpiry),
		errors.Is(err, superclip.ErrOwnerRequired),
		errors.Is(err, superclip.ErrInvalidKind),
		errors.Is(err, superclip.ErrTextRequired),
		errors.Is(err, superclip.ErrFileRequired),
		errors.Is(err, superclip.ErrFileTooLarge),
		errors.Is(err, superclip.ErrInvalidDataURL):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateClip creates a new clip.
func (h *ClipsHandler) CreateClip(w http.ResponseWriter, r *http.Request) {
	var req CreateClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	input, err := req.validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	clip, err := h.service.CreateClip(r.Context(), input)
	if err != nil {
		slog.Error("Failed to create clip", "owner_id", input.OwnerID, "error", err)
		http.Error(w, err.Error(), createStatus(err))
		return
	}

	slog.Info("Clip created", "clip_id", clip.ID, "kind", clip.Kind, "owner_id", clip.OwnerID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newClipView(clip, requestBaseURL(r)))
}

// ListClips returns all active clips of one owner, newest first.
// Inactive clips are purged before listing.
func (h *ClipsHandler) ListClips(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
	if ownerID == "" {
		http.Error(w, "ownerId is required", http.StatusBadRequest)
		return
	}

	clips, err := h.service.ListClips(r.Context(), ownerID)
	if err != nil {
		slog.Error("Failed to list clips", "owner_id", ownerID, "error", err)
		http.Error(w, "failed to list clips", http.StatusInternalServerError)
		return
	}

	baseURL := requestBaseURL(r)
	items := make([]ClipView, 0, len(clips))
	for _, clip := range clips {
		items = append(items, newClipView(clip, baseURL))
	}
	render.JSON(w, r, ClipListResponse{Items: items})
}

// GetClip returns one active clip by id, scoped to its owner.
func (h *ClipsHandler) GetClip(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "clipID"))
	if err != nil {
		http.Error(w, "clip not found", http.StatusNotFound)
		return
	}
	ownerID := r.URL.Query().Get("ownerId")

	clip, err := h.service.GetClip(r.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, superclip.ErrClipNotFound) {
			http.Error(w, "clip not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get clip", "clip_id", id, "error", err)
		http.Error(w, "failed to get clip", http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, newClipView(clip, requestBaseURL(r)))
}

// GetClipByCode returns one active clip by access code, without owner
// scoping.
func (h *ClipsHandler) GetClipByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "accessCode")

	clip, err := h.service.GetClipByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, superclip.ErrClipNotFound) {
			http.Error(w, "clip not found or expired", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get clip by code", "error", err)
		http.Error(w, "failed to get clip", http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, newClipView(clip, requestBaseURL(r)))
}

// DeleteClip removes one clip of the requesting owner.
func (h *ClipsHandler) DeleteClip(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "clipID"))
	if err != nil {
		http.Error(w, "clip not found", http.StatusNotFound)
		return
	}
	ownerID := r.URL.Query().Get("ownerId")

	if err := h.service.DeleteClip(r.Context(), id, ownerID); err != nil {
		if errors.Is(err, superclip.ErrClipNotFound) {
			http.Error(w, "clip not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to delete clip", "clip_id", id, "error", err)
		http.Error(w, "failed to delete clip", http.StatusInternalServerError)
		return
	}

	slog.Info("Clip deleted", "clip_id", id)
	render.JSON(w, r, DeleteResponse{OK: true})
}

// TrackDownload increments the download count of a clip and reports
// whether that consumed the last allowed download. When it did, the
// clip is removed after the response is written.
func (h *ClipsHandler) TrackDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "clipID"))
	if err != nil {
		http.Error(w, "clip not found", http.StatusNotFound)
		return
	}
	ownerID := r.URL.Query().Get("ownerId")

	clip, removed, err := h.service.RegisterDownload(r.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, superclip.ErrClipNotFound) {
			http.Error(w, "clip not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to track download", "clip_id", id, "error", err)
		http.Error(w, "failed to track download", http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, DownloadResponse{
		Clip:    newClipView(clip, requestBaseURL(r)),
		Removed: removed,
	})

	if removed {
		removeExhaustedClip(r.Context(), h.service, id, clip.OwnerID)
	}
}

// DownloadFile streams the stored bytes of a file clip, counting the
// access as a download. The clip is removed after streaming when the
// download limit is reached.
func (h *ClipsHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "clipID"))
	if err != nil {
		http.Error(w, "clip not found", http.StatusNotFound)
		return
	}
	ownerID := r.URL.Query().Get("ownerId")

	download, err := h.service.DownloadClipFile(r.Context(), id, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, superclip.ErrClipNotFound):
			http.Error(w, "clip not found", http.StatusNotFound)
		case errors.Is(err, superclip.ErrBlobMissing):
			http.Error(w, "file data missing", http.StatusGone)
		case errors.Is(err, superclip.ErrClipGone):
			http.Error(w, "clip expired or destroyed", http.StatusGone)
		default:
			slog.Error("Failed to open clip file", "clip_id", id, "error", err)
			http.Error(w, "failed to open clip file", http.StatusInternalServerError)
		}
		return
	}
	defer download.Reader.Close()

	writeFileHeaders(w, download.Clip.File)
	if _, err := io.Copy(w, download.Reader); err != nil {
		slog.Error("Failed to stream clip file", "clip_id", id, "error", err)
	}

	if download.Removed {
		removeExhaustedClip(r.Context(), h.service, id, download.Clip.OwnerID)
	}
}

// removeExhaustedClip deletes a clip whose last allowed download has
// just been served. The response is already written at this point, so
// failures are only logged.
func removeExhaustedClip(ctx context.Context, service superclip.Service, id uuid.UUID, ownerID string) {
	if err := service.DeleteClip(ctx, id, ownerID); err != nil && !errors.Is(err, superclip.ErrClipNotFound) {
		slog.Warn("Failed to remove exhausted clip", "clip_id", id, "error", err)
	}
}

func writeFileHeaders(w http.ResponseWriter, file *superclip.StoredFile) {
	contentType := file.Mime
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": asciiFilename(file.Name)})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", disposition)
}
