package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
	"github.com/pixia1234/super-clipboard/pkg/superclip/repo/memory"
	memorystorage "github.com/pixia1234/super-clipboard/pkg/superclip/storage/memory"
)

// setupClipsHandlerTest builds a ClipsHandler over an in-memory
// service, mounted the way cmd/server mounts it.
func setupClipsHandlerTest(t *testing.T, opts ...superclip.Option) (chi.Router, superclip.Service) {
	t.Helper()
	store := memorystorage.New()
	repo := memory.New(memory.Config{Blobs: store})

	options := append([]superclip.Option{
		superclip.WithRepository(repo),
		superclip.WithBlobStore(store),
	}, opts...)
	svc, err := superclip.New(options...)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Mount("/api/clips", NewClipsHandler(svc).Routes())
	return router, svc
}

func futureExpiryMilli() int64 {
	return time.Now().Add(time.Hour).UnixMilli()
}

func textDataURL(payload string) string {
	return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTextClipRequest() CreateClipRequest {
	text := "hello from the clipboard"
	return CreateClipRequest{
		Kind:      "text",
		ExpiresAt: futureExpiryMilli(),
		OwnerID:   "owner-1",
		Payload:   ClipPayloadInput{Text: &text},
	}
}

func TestClipsHandler_CreateClip_Text(t *testing.T) {
	router, _ := setupClipsHandlerTest(t)

	reqBody := createTextClipRequest()
	reqBody.AccessCode = "54321"
	w := postJSON(t, router, "/api/clips", reqBody)

	assert.Equal(t, http.StatusCreated, w.Code)

	var view ClipView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "text", view.Kind)
	assert.Equal(t, "owner-1", view.OwnerID)
	assert.Equal(t, 0, view.DownloadCount)
	require.NotNil(t, view.AccessCode)
	assert.Equal(t, "54321", *view.AccessCode)
	require.NotNil(t, view.Payload.Text)
	assert.Equal(t, "hello from the clipboard", *view.Payload.Text)
	assert.Nil(t, view.Payload.File)
	require.NotNil(t, view.DirectURL)
	assert.True(t, strings.HasSuffix(*view.DirectURL, "/owner-1.54321"), *view.DirectURL)
	assert.Less(t, view.CreatedAt, view.ExpiresAt)
}

func TestClipsHandler_CreateClip_File(t *testing.T) {
	router, _ := setupClipsHandlerTest(t)

	reqBody := CreateClipRequest{
		Kind:      "file",
		ExpiresAt: futureExpiryMilli(),
		OwnerID:   "owner-1",
		Payload: ClipPayloadInput{
			File: &StoredFileInput{
				Name:    "notes.txt",
				DataURL: textDataURL("file bytes"),
			},
		},
	}
	w := postJSON(t, router, "/api/clips", reqBody)

	assert.Equal(t, http.StatusCreated, w.Code)

	var view ClipView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "file", view.Kind)
	assert.Nil(t, view.Payload.Text)
	require.NotNil(t, view.Payload.File)
	assert.Equal(t, "notes.txt", view.Payload.File.Name)
	assert.Equal(t, int64(len("file bytes")), view.Payload.File.Size)
	assert.Equal(t, "text/plain", view.Payload.File.Mime)
	assert.Contains(t, view.Payload.File.DownloadURL, "/api/clips/"+view.ID+"/file")
	assert.Contains(t, view.Payload.File.DownloadURL, "ownerId=owner-1")
}

func TestClipsHandler_CreateClip_Validation(t *testing.T) {
	router, _ := setupClipsHandlerTest(t)

	text := "payload"
	tests := []struct {
		name    string
		mutate  func(*CreateClipRequest)
		message string
	}{
		{
			name:    "unknown kind",
			mutate:  func(r *CreateClipRequest) { r.Kind = "image" },
			message: "kind",
		},
		{
			name:    "missing owner",
			mutate:  func(r *CreateClipRequest) { r.OwnerID = "  " },
			message: "ownerId",
		},
		{
			name:    "expiry not positive",
			mutate:  func(r *CreateClipRequest) { r.ExpiresAt = 0 },
			message: "expiresAt",
		},
		{
			name:    "access code too short",
			mutate:  func(r *CreateClipRequest) { r.AccessCode = "123" },
			message: "access code",
		},
		{
			name:    "access code not alphanumeric",
			mutate:  func(r *CreateClipRequest) { r.AccessCode = "12 45!" },
			message: "access code",
		},
		{
			name: "token without bound owner",
			mutate: func(r *CreateClipRequest) {
				r.AccessToken = "tok-1234567"
				r.AccessTokenOwner = ""
			},
			message: "accessTokenOwner",
		},
		{
			name:    "text clip without text",
			mutate:  func(r *CreateClipRequest) { r.Payload = ClipPayloadInput{} },
			message: "text",
		},
		{
			name: "text clip with file payload",
			mutate: func(r *CreateClipRequest) {
				r.Payload.File = &StoredFileInput{Name: "x", DataURL: textDataURL("x")}
			},
			message: "file data",
		},
		{
			name: "file clip without data url",
			mutate: func(r *CreateClipRequest) {
				r.Kind = "file"
				r.Payload = ClipPayloadInput{File: &StoredFileInput{Name: "x"}}
			},
			message: "dataUrl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqBody := CreateClipRequest{
				Kind:      "text",
				ExpiresAt: futureExpiryMilli(),
				OwnerID:   "owner-1",
				Payload:   ClipPayloadInput{Text: &text},
			}
			tt.mutate(&reqBody)

			w := postJSON(t, router, "/api/clips", reqBody)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestClipsHandler_CreateClip_DuplicateCode(t *testing.T) {
	router, _ := setupClipsHandlerTest(t)

	first := createTextClipRequest()
	first.AccessCode = "77777"
	w := postJSON(t, router, "/api/clips", first)
	require.Equal(t, http.StatusCreated, w.Code)

	second := createTextClipRequest()
	second.AccessCode = "77777"
	second.OwnerID = "someone-else"
	w = postJSON(t, router, "/api/clips", second)
	assert.Equal(t, http.StatusConflict, w.Code)
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, token string) error {
	return errors.New("rejected")
}

func TestClipsHandler_CreateClip_CaptchaRejected(t *testing.T) {
	router, _ := setupClipsHandlerTest(t, superclip.WithCaptchaVerifier(rejectingVerifier{}))

	w := postJSON(t, router, "/api/clips", createTextClipRequest())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClipsHandler_ListClips(t *testing.T) {
	router, svc := setupClipsHandlerTest(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second"} {
		_, err := svc.CreateClip(ctx, superclip.CreateClipRequest{
			Kind: superclip.ClipKindText, ExpiresAt: futureExpiryMilli(),
			OwnerID: "owner-1", Text: text,
		})
		require.NoError(t, err)
	}
	_, err := svc.CreateClip(ctx, superclip.CreateClipRequest{
		Kind: superclip.ClipKindText, ExpiresAt: futureExpiryMilli(),
		OwnerID: "owner-2", Text: "not mine",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/clips?ownerId=owner-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp ClipListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	for _, item := range resp.Items {
		assert.Equal(t, "owner-1", item.OwnerID)
	}

	t.Run("missing owner", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/clips", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestClipsHandler_GetClip(t *testing.T) {
	router, svc := setupClipsHandlerTest(t)

	clip, err := svc.CreateClip(context.Background(), superclip.CreateClipRequest{
		Kind: superclip.ClipKindText, ExpiresAt: futureExpiryMilli(),
		OwnerID: "owner-1", Text: "mine",
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/clips/"+clip.ID.String()+"?ownerId=owner-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var view ClipView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, clip.ID.String(), view.ID)
	})

	t.Run("wrong owner", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/clips/"+clip.ID.String()+"?ownerId=intruder", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/clips/"+uuid.NewString()+"?ownerId=owner-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/clips/not-a-uuid?ownerId=owner-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestClipsHandler_DeleteClip(t *testing.T) {
	router, svc := setupClipsHandlerTest(t)
	ctx := context.Background()

	clip, err := svc.CreateClip(ctx, superclip.CreateClipRequest{
		Kind: superclip.ClipKindText, ExpiresAt: futureExpiryMilli(),
		OwnerID: "owner-1", Text: "short lived",
	})
	require.NoError(t, err)

	t.Run("wrong owner is reported as missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/clips/"+clip.ID.String()+"?ownerId=intruder", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner delete succeeds", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/clips/"+clip.ID.String()+"?ownerId=owner-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp DeleteResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.OK)

		_, err := svc.GetClip(ctx, clip.ID, "owner-1")
		assert.ErrorIs(t, err, superclip.ErrClipNotFound)
	})
}

func TestClipsHandler_TrackDownload(t *testing.T) {
	router, svc := setupClipsHandlerTest(t)
	ctx := context.Background()

	two := 2
	clip, err := svc.CreateClip(ctx, superclip.CreateClipRequest{
		Kind: superclip.ClipKindText, ExpiresAt: futureExpiryMilli(),
		MaxDownloads: &two, OwnerID: "owner-1", Text: "count me",
	})
	require.NoError(t, err)

	track := func() DownloadResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/api/clips/"+clip.ID.String()+"/download?ownerId=owner-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var resp DownloadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	first := track()
	assert.Equal(t, 1, first.Clip.DownloadCount)
	assert.False(t, first.Removed)

	second := track()
	assert.Equal(t, 2, second.Clip.DownloadCount)
	assert.True(t, second.Removed)

	// The exhausted clip is removed after the response is served.
	_, err = svc.GetClip(ctx, clip.ID, "owner-1")
	assert.ErrorIs(t, err, superclip.ErrClipNotFound)

	req := httptest.NewRequest(http.MethodPost, "/api/clips/"+clip.ID.String()+"/download?ownerId=owner-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClipsHandler_DownloadFile(t *testing.T) {
	router, svc := setupClipsHandlerTest(t)
	ctx := context.Background()

	original := "the exact original bytes"
	one := 1
	clip, err := svc.CreateClip(ctx, superclip.CreateClipRequest{
		Kind: superclip.ClipKindFile, ExpiresAt: futureExpiryMilli(),
		MaxDownloads: &one, OwnerID: "owner-1",
		File: &superclip.FileUpload{Name: "payload.txt", DataURL: textDataURL(original)},
	})
	require.NoError(t, err)

	path := "/api/clips/" + clip.ID.String() + "/file?ownerId=owner-1"

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, original, w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "payload.txt")

	// The single allowed download is spent; the clip is gone.
	req = httptest.NewRequest(http.MethodGet, path, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClipsHandler_DownloadFile_WrongOwner(t *testing.T) {
	router, svc := setupClipsHandlerTest(t)

	clip, err := svc.CreateClip(context.Background(), superclip.CreateClipRequest{
		Kind: superclip.ClipKindFile, ExpiresAt: futureExpiryMilli(),
		OwnerID: "owner-1",
		File:    &superclip.FileUpload{Name: "payload.txt", DataURL: textDataURL("secret")},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/clips/"+clip.ID.String()+"/file?ownerId=intruder", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
