package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/middleware"
	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/service/doctor"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

type Handler struct {
	svc doctor.DoctorService
}

func NewHandler(svc doctor.DoctorService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.POST("/register", h.Register)
		doctors.POST("/login", h.Login)
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.GET("/profile", h.GetProfile)
		doctors.PUT("/profile", h.UpdateProfile)
	}
}

// RegisterAdminRoutes expects rg to require an administrator.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/stats", h.GetStats)
		doctors.PUT("/:id/activate", h.Activate)
		doctors.PUT("/:id/archive", h.Archive)
		doctors.GET("/:id/history", h.History)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	doc, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, "registration received, awaiting activation", doc)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", tokens)
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := middleware.DoctorID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	doc, err := h.svc.GetProfile(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", doc)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := middleware.DoctorID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	doc, err := h.svc.UpdateProfile(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "profile updated", doc)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.svc.ListDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", doctors)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", stats)
}

func (h *Handler) Activate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	doc, err := h.svc.Activate(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "account activated", doc)
}

// Archive archives by default; {"archived": false} restores the account.
func (h *Handler) Archive(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	req := model.ArchiveDoctorRequest{Archived: true}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithError(c, middleware.BindingError(err))
			return
		}
	}

	doc, err := h.svc.SetArchived(c.Request.Context(), id, req.Archived)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	msg := "account archived"
	if !req.Archived {
		msg = "account restored"
	}
	httputil.RespondWithSuccess(c, http.StatusOK, msg, doc)
}

func (h *Handler) History(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	actions, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, "", actions)
}

func paramID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", nil))
		return uuid.Nil, false
	}
	return id, true
}
