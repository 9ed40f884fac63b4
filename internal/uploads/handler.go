package uploads

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"saintplus-client/internal/shared/server/middleware"
	"saintplus-client/internal/shared/server/respond"
	"saintplus-client/internal/shared/storage/object"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/shared/util"
)

const (
	maxUploadBytes = 10 << 20
	presignExpires = 15 * time.Minute
)

// SignatureVerifier checks a presigned PUT issued by the local store.
type SignatureVerifier interface {
	Verify(storageKey, contentType, expires, sig string) error
}

// Handler issues upload URLs and, for the local store, accepts the PUT itself.
type Handler struct {
	presigner object.Presigner
	store     object.ObjectStore
	verifier  SignatureVerifier
}

// NewHandler builds the upload handler. verifier may be nil when URLs point at S3.
func NewHandler(presigner object.Presigner, store object.ObjectStore, verifier SignatureVerifier) *Handler {
	return &Handler{presigner: presigner, store: store, verifier: verifier}
}

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type uploadURLResponse struct {
	UploadURL        string `json:"uploadUrl"`
	FileKey          string `json:"fileKey"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// RegisterRoutes attaches the authenticated upload-url endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload-url", h.uploadURL)
}

// RegisterStorageRoutes attaches the unauthenticated presigned PUT target.
func (h *Handler) RegisterStorageRoutes(r gin.IRoutes) {
	if h.verifier == nil {
		return
	}
	r.PUT("/storage/*key", h.put)
}

func (h *Handler) uploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.Filename = strings.TrimSpace(req.Filename)
	contentType := resolveContentType(req.Filename, req.ContentType)

	if req.Filename == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "filename is required", nil)
		return
	}
	if !util.IsTranscriptType(contentType) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	key, err := object.KeyFor(userID, req.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid filename", nil)
		return
	}

	url, err := h.presigner.PresignPut(c.Request.Context(), key, contentType, presignExpires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":         err,
			"key":         key,
			"contentType": contentType,
			"request_id":  c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	telemetry.Info("uploads.presign.issued", map[string]any{"user_id": userID, "key": key})
	respond.OK(c, uploadURLResponse{
		UploadURL:        url,
		FileKey:          key,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}

func (h *Handler) put(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	contentType := c.ContentType()
	if err := h.verifier.Verify(key, contentType, c.Query("expires"), c.Query("sig")); err != nil {
		respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	n, err := h.store.SaveWithKey(c.Request.Context(), key, contentType, body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "file exceeds upload limit", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store object", nil)
		return
	}
	telemetry.Info("uploads.stored", map[string]any{"key": key, "size_bytes": n})
	c.Status(http.StatusOK)
}

// resolveContentType falls back to the file extension when the client sent
// nothing specific.
func resolveContentType(fileName, contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == util.DefaultContentType {
		return util.ContentTypeFor(fileName)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return contentType
}
