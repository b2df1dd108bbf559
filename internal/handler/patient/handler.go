package patient

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/exporter"
	"github.com/jwalitptl/queue-api/internal/importer"
	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/service/notification"
	"github.com/jwalitptl/queue-api/internal/service/patient"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
	"github.com/jwalitptl/queue-api/pkg/logger"
)

// UploadConfig bounds and places staged import files.
type UploadConfig struct {
	MaxBytes int64
	Dir      string
}

type Handler struct {
	service  patient.PatientService
	notifier notification.Service
	upload   UploadConfig
	logger   *logger.Logger
	now      func() time.Time
}

func NewHandler(service patient.PatientService, notifier notification.Service, upload UploadConfig, log *logger.Logger) *Handler {
	if upload.MaxBytes <= 0 {
		upload.MaxBytes = 10 << 20
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		service:  service,
		notifier: notifier,
		upload:   upload,
		logger:   log,
		now:      time.Now,
	}
}

// RegisterRoutes expects rg to be behind the auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	patients := rg.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/stats", h.GetStats)

		patients.POST("/import", h.ImportPatients)
		patients.GET("/export/csv", h.ExportCSV)
		patients.GET("/export/excel", h.ExportExcel)
		patients.POST("/export/email", h.EmailExport)
		patients.POST("/sms/delay-bulk", h.BulkDelaySMS)

		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
		patients.POST("/:id/sms", h.SendSMS)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	p, err := h.service.Create(c.Request.Context(), doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, "patient created", p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	var filters model.PatientFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid query parameters", err))
		return
	}

	patients, err := h.service.List(c.Request.Context(), doctorID, &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", patients)
}

func (h *Handler) GetStats(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", stats)
}

func (h *Handler) GetPatient(c *gin.Context) {
	doctorID, id, ok := h.ids(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id, doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	doctorID, id, ok := h.ids(c)
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	p, err := h.service.Update(c.Request.Context(), id, doctorID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "patient updated", p)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	doctorID, id, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, doctorID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "patient deleted", nil)
}

// ImportPatients stages the uploaded file on disk under its original
// extension, imports it and removes it whatever the outcome.
func (h *Handler) ImportPatients(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("multipart field \"file\" is required", err))
		return
	}
	if fh.Size > h.upload.MaxBytes {
		httputil.RespondWithError(c, apperrors.BadRequest(fmt.Sprintf("file exceeds %d bytes", h.upload.MaxBytes), nil))
		return
	}
	fileName := filepath.Base(fh.Filename)
	ext := strings.ToLower(filepath.Ext(fileName))
	if !importer.Supported(ext) {
		httputil.RespondWithError(c, apperrors.UnsupportedFormat(ext))
		return
	}

	path, err := h.stage(fh, ext)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Error(err, "failed to remove staged upload", "path", path)
		}
	}()

	res, err := h.service.Import(c.Request.Context(), doctorID, patient.ImportSource{Path: path, FileName: fileName})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated,
		fmt.Sprintf("%d of %d patients imported", res.Persisted, res.Parsed), res)
}

func (h *Handler) stage(fh *multipart.FileHeader, ext string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.upload.Dir, "import-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return dst.Name(), nil
}

func (h *Handler) ExportCSV(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}
	data, err := h.service.ExportCSV(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.attachment(c, "csv", exporter.ContentTypeCSV, data)
}

func (h *Handler) ExportExcel(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}
	data, err := h.service.ExportXLSX(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.attachment(c, "xlsx", exporter.ContentTypeXLSX, data)
}

func (h *Handler) attachment(c *gin.Context, ext, contentType string, data []byte) {
	name := fmt.Sprintf("patients-%s.%s", h.now().Format("2006-01-02"), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) EmailExport(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}
	to, err := h.service.EmailExport(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "export sent", gin.H{"email": to})
}

func (h *Handler) SendSMS(c *gin.Context) {
	doctorID, id, ok := h.ids(c)
	if !ok {
		return
	}

	var req model.SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	p, err := h.notifier.SendOne(c.Request.Context(), id, doctorID, req.Message)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "message sent", p)
}

func (h *Handler) BulkDelaySMS(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}
	res, err := h.notifier.BulkNotify(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK,
		fmt.Sprintf("%d of %d messages sent", res.SentCount, res.TotalCandidates), res)
}

func (h *Handler) doctorID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.DoctorID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ids(c *gin.Context) (doctorID, id uuid.UUID, ok bool) {
	if doctorID, ok = h.doctorID(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid patient ID", nil))
		return uuid.Nil, uuid.Nil, false
	}
	return doctorID, id, true
}
