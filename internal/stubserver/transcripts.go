package stubserver

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"saintplus-client/internal/extract"
	"saintplus-client/internal/queue"
	"saintplus-client/internal/shared/metrics"
	"saintplus-client/internal/shared/server/middleware"
	"saintplus-client/internal/shared/server/respond"
	"saintplus-client/internal/shared/storage/object"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/shared/util"
)

const maxExtractSize = 10 << 20

// TranscriptHandler serves major extraction and the parse handoff.
type TranscriptHandler struct {
	Queue queue.Client
	Store object.ObjectStore
	now   func() time.Time
}

func NewTranscriptHandler(q queue.Client, store object.ObjectStore) *TranscriptHandler {
	return &TranscriptHandler{Queue: q, Store: store, now: time.Now}
}

type parseRequest struct {
	FileKey string `json:"fileKey"`
	Major1  string `json:"major1"`
	Major2  string `json:"major2"`
	Major3  string `json:"major3"`
}

type parseAccepted struct {
	JobID string `json:"jobId"`
}

// RegisterRoutes attaches transcript routes to the router group.
func (h *TranscriptHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extract-majors", h.extractMajors)
	rg.POST("/parse", h.parse)
}

func (h *TranscriptHandler) extractMajors(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxExtractSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	text, err := extract.TextFromBytes(c.Request.Context(), data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "지원하지 않는 파일 형식입니다.", nil)
			return
		}
		respond.Error(c, http.StatusUnprocessableEntity, "extract_failed", "성적표를 읽을 수 없습니다.", nil)
		return
	}
	majors := extract.Majors(text)
	telemetry.Info("stub.majors_extracted", map[string]any{
		"user_id":   middleware.UserIDFromContext(c),
		"file_name": fileHeader.Filename,
		"count":     len(majors),
	})
	respond.OK(c, majors)
}

func (h *TranscriptHandler) parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.FileKey = strings.TrimSpace(req.FileKey)
	if req.FileKey == "" || strings.TrimSpace(req.Major1) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileKey and major1 are required", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	if !object.OwnedBy(req.FileKey, userID) {
		respond.Error(c, http.StatusForbidden, "forbidden", "file does not belong to the caller", nil)
		return
	}
	if !h.checkUploaded(c, req.FileKey) {
		return
	}

	job := queue.ParseJob{
		JobID:      uuid.NewString(),
		UserID:     userID,
		FileKey:    req.FileKey,
		Major1:     strings.TrimSpace(req.Major1),
		Major2:     strings.TrimSpace(req.Major2),
		Major3:     strings.TrimSpace(req.Major3),
		RequestID:  middleware.RequestIDFromContext(c),
		EnqueuedAt: h.now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := h.Queue.Send(c.Request.Context(), job); err != nil {
		telemetry.Error("stub.parse_enqueue_failed", map[string]any{"job_id": job.JobID, "err": err})
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue parse job", nil)
		return
	}
	metrics.IncStubParseJobs()
	telemetry.Info("stub.parse_enqueued", map[string]any{"job_id": job.JobID, "user_id": job.UserID, "file_key": job.FileKey})
	respond.Accepted(c, parseAccepted{JobID: job.JobID})
}

// checkUploaded confirms the object exists with a transcript content type.
// S3 presigned URLs do not pin the type, so it is enforced here for both stores.
func (h *TranscriptHandler) checkUploaded(c *gin.Context, key string) bool {
	info, err := h.Store.Stat(c.Request.Context(), key)
	switch {
	case errors.Is(err, object.ErrNotFound):
		respond.Error(c, http.StatusConflict, "not_uploaded", "업로드된 파일을 찾을 수 없습니다.", nil)
		return false
	case err != nil:
		telemetry.Error("stub.parse_stat_failed", map[string]any{"file_key": key, "err": err})
		respond.Error(c, http.StatusServiceUnavailable, "storage_unavailable", "failed to read uploaded file", nil)
		return false
	case !util.IsTranscriptType(info.ContentType):
		telemetry.Warn("stub.parse_bad_content_type", map[string]any{"file_key": key, "content_type": info.ContentType})
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "지원하지 않는 파일 형식입니다.", nil)
		return false
	}
	return true
}
