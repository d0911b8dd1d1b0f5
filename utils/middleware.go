package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/logger"
	"cafemanager/model"
)

const sessionKey = "session_user"

// SessionUser is the authenticated caller, loaded fresh on every request.
type SessionUser struct {
	ID    string
	Name  string
	Email string
	Role  model.UserRole
	// CafeID is the staff member's cafe.
	CafeID *string
	// ManagedCafeID is set when the user manages a cafe.
	ManagedCafeID *string
}

// HomeCafeID is the cafe the user belongs to, preferring the managed one.
func (u *SessionUser) HomeCafeID() string {
	if u.ManagedCafeID != nil {
		return *u.ManagedCafeID
	}
	if u.CafeID != nil {
		return *u.CafeID
	}
	return ""
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization header required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.New("invalid token format")
	}
	return strings.TrimPrefix(authHeader, "Bearer "), nil
}

func AuthMiddleware(db *gorm.DB, tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			apperr.Respond(c, apperr.Unauthorized(err.Error()))
			return
		}
		claims, err := tokens.Validate(raw, TokenAccess)
		if err != nil {
			apperr.Respond(c, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		var user model.User
		if err := db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperr.Respond(c, apperr.Unauthorized("User no longer exists"))
				return
			}
			apperr.Respond(c, apperr.Internal(err))
			return
		}

		session := &SessionUser{
			ID:     user.ID,
			Name:   user.Name,
			Email:  user.Email,
			Role:   user.Role,
			CafeID: user.CafeID,
		}
		if user.Role == model.RoleManager {
			var cafe model.Cafe
			err := db.WithContext(c.Request.Context()).Select("id").Where("manager_id = ?", user.ID).Take(&cafe).Error
			switch {
			case err == nil:
				session.ManagedCafeID = &cafe.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				apperr.Respond(c, apperr.Internal(err))
				return
			}
		}

		c.Set(sessionKey, session)
		ctx := logger.Ctx(c.Request.Context()).With().Str(logger.UserID, user.ID).Logger().WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CurrentUser returns the session stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*SessionUser, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*SessionUser)
	return u, ok
}

// SetCurrentUser is used by handlers that establish a session without a token.
func SetCurrentUser(c *gin.Context, u *SessionUser) {
	c.Set(sessionKey, u)
}

// Recovery turns panics into the standard internal error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Ctx(c.Request.Context()).Error().Interface("panic", recovered).Msg("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
			"code":    apperr.CodeInternal,
		})
	})
}
