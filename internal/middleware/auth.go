package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/service/doctor"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
)

const (
	ContextDoctorID = "doctor_id"
	ContextIsAdmin  = "is_admin"
)

type TokenValidator interface {
	Validate(token string) (*model.TokenClaims, error)
}

type AuthMiddleware struct {
	tokens    TokenValidator
	directory doctor.Directory
}

func NewAuthMiddleware(tokens TokenValidator, directory doctor.Directory) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:    tokens,
		directory: directory,
	}
}

// Authenticate verifies the bearer token and that the account may still use the API.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperrors.Unauthorized(nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, apperrors.Unauthorized(nil))
			return
		}

		claims, err := m.tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, apperrors.Unauthorized(err))
			return
		}

		ref, err := m.directory.FindByID(c.Request.Context(), claims.DoctorID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrNotFound) {
				err = apperrors.Unauthorized(err)
			}
			abort(c, err)
			return
		}
		if ref.IsArchived || !ref.IsActive {
			abort(c, apperrors.Forbidden("account is not active"))
			return
		}

		c.Set(ContextDoctorID, ref.ID)
		c.Set(ContextIsAdmin, ref.IsAdmin)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsAdmin) {
			abort(c, apperrors.Forbidden("administrator access required"))
			return
		}
		c.Next()
	}
}

// DoctorID returns the authenticated doctor set by Authenticate.
func DoctorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextDoctorID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abort(c *gin.Context, err error) {
	httputil.RespondWithError(c, err)
	c.Abort()
}
