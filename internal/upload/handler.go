package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
)

// multipart framing allowance on top of the file limit
const formOverhead = 64 << 10

// allowedTypes maps accepted content types to the stored extension.
var allowedTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
}

var keyPattern = regexp.MustCompile(`^cost-proof-\d+-[a-z0-9]+\.(pdf|jpg|png|gif)$`)

type Response struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
}

type Handler struct {
	*transport.BaseHandler
	store   *Store
	maxSize int64
	now     func() time.Time
}

func NewHandler(baseHandler *transport.BaseHandler, store *Store, maxSize int64) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		store:       store,
		maxSize:     maxSize,
		now:         time.Now,
	}
}

// Upload stores a multipart "file" field as a cost proof.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+formOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.HandleServiceError(w, h.errTooLarge())
			return
		}
		h.HandleServiceError(w, internal.NewValidationError("No file uploaded", internal.ErrCodeUploadMissing))
		return
	}
	defer file.Close()

	if header.Size > h.maxSize {
		h.HandleServiceError(w, h.errTooLarge())
		return
	}

	declared := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	ext, ok := allowedTypes[declared]
	if !ok {
		h.HandleServiceError(w, errBadType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		h.HandleServiceError(w, internal.NewInternalError("failed to read upload", err))
		return
	}
	if int64(len(data)) > h.maxSize {
		h.HandleServiceError(w, h.errTooLarge())
		return
	}
	// the declared type must match the bytes
	if allowedTypes[http.DetectContentType(data)] != ext {
		h.HandleServiceError(w, errBadType)
		return
	}

	key := h.newKey(ext)
	url, err := h.store.Put(r.Context(), key, data, declared)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("cost proof uploaded", "filename", key, "size", len(data))
	h.WriteJSON(w, http.StatusOK, Response{
		Success:  true,
		Filename: key,
		URL:      url,
		Type:     ext,
		Size:     int64(len(data)),
	})
}

// Serve streams a previously uploaded file.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !keyPattern.MatchString(key) {
		h.HandleServiceError(w, ErrBlobNotFound)
		return
	}

	obj, err := h.store.Open(r.Context(), key)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.Logger.Warn("failed to stream upload", "filename", key, "error", err)
	}
}

var errBadType = internal.NewValidationError("Invalid file type. Allowed: PDF, JPG, PNG, GIF", internal.ErrCodeUploadBadType)

func (h *Handler) errTooLarge() *internal.AppError {
	return internal.NewValidationError(
		fmt.Sprintf("File size exceeds %dMB limit", h.maxSize>>20),
		internal.ErrCodeUploadTooLarge,
	)
}

func (h *Handler) newKey(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("cost-proof-%d-%s.%s", h.now().UnixMilli(), suffix, ext)
}
