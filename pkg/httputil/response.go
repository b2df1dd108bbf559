package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/queue-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrNotFound:           http.StatusNotFound,
	errors.ErrBadRequest:         http.StatusBadRequest,
	errors.ErrUnauthorized:       http.StatusUnauthorized,
	errors.ErrForbidden:          http.StatusForbidden,
	errors.ErrInternal:           http.StatusInternalServerError,
	errors.ErrValidation:         http.StatusBadRequest,
	errors.ErrConflict:           http.StatusConflict,
	errors.ErrConstraint:         http.StatusConflict,
	errors.ErrUnsupportedFormat:  http.StatusUnsupportedMediaType,
	errors.ErrRead:               http.StatusBadRequest,
	errors.ErrEmptyBatch:         http.StatusUnprocessableEntity,
	errors.ErrNoRecordsPersisted: http.StatusUnprocessableEntity,
	errors.ErrNoRecords:          http.StatusNotFound,
	errors.ErrDispatch:           http.StatusBadGateway,
}

// StatusFor maps an error to the HTTP status returned to clients.
func StatusFor(err error) int {
	if status, ok := statusByCode[errors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// RespondWithError sends an error response. Internal errors never leak their cause.
func RespondWithError(c *gin.Context, err error) {
	code := errors.CodeOf(err)
	status := StatusFor(err)
	message := publicMessage(err)

	_ = c.Error(err)
	c.JSON(status, Response{
		Status:  "error",
		Message: message,
		Error: &Error{
			Code:    status,
			Kind:    code.String(),
			Message: message,
		},
	})
}

// publicMessage hides driver and upstream details. Causes are kept only for
// errors the client can act on, like a malformed upload.
func publicMessage(err error) string {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) || appErr.Code == errors.ErrInternal {
		return "internal server error"
	}
	switch appErr.Code {
	case errors.ErrRead, errors.ErrBadRequest:
		return appErr.Error()
	}
	return appErr.Message
}

// RespondWithBadRequest reports a request binding failure.
func RespondWithBadRequest(c *gin.Context, err error) {
	RespondWithError(c, errors.BadRequest(err.Error(), nil))
}
