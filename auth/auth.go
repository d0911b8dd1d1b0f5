// Package auth registers users and issues session tokens.
package auth

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/logger"
	"cafemanager/model"
	"cafemanager/utils"
)

const (
	minPasswordLength = 6

	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
)

type Controller struct {
	db     *gorm.DB
	tokens *utils.TokenIssuer
}

func NewController(db *gorm.DB, tokens *utils.TokenIssuer) *Controller {
	return &Controller{db: db, tokens: tokens}
}

type registerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     model.UserRole `json:"role"`
}

func (r *registerRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Name == "" || r.Email == "" || r.Password == "" || r.Role == "" {
		return apperr.Validation("Name, email, password and role are required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperr.Validation("Email is not valid")
	}
	if !r.Role.Valid() {
		return apperr.Validation("Role must be MANAGER or STAFF").WithCode("INVALID_ROLE")
	}
	if len(r.Password) < minPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}
	return nil
}

func emailTaken() error {
	return apperr.Conflict(CodeEmailTaken, "A user with this email already exists")
}

func (ctl *Controller) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid request body"))
		return
	}
	if err := req.normalize(); err != nil {
		apperr.Respond(c, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}

	user := model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     req.Role,
	}
	err = ctl.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.User{}).Where("email = ?", user.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return emailTaken()
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return emailTaken()
			}
			return err
		}
		if user.Role == model.RoleStaff {
			return linkInvitation(tx, &user)
		}
		return nil
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	logger.Ctx(c.Request.Context()).Info().Str(logger.UserID, user.ID).Str("role", string(user.Role)).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

// linkInvitation attaches a new staff user to the oldest pending invitation
// for their email, if any.
func linkInvitation(tx *gorm.DB, user *model.User) error {
	var invite model.AllowedStaff
	err := tx.Where("email = ? AND user_id IS NULL", user.Email).Order("created_at ASC").Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Model(&invite).Update("user_id", user.ID).Error; err != nil {
		return err
	}
	user.CafeID = &invite.CafeID
	return tx.Model(user).Update("cafe_id", invite.CafeID).Error
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ctl *Controller) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("Email and password are required"))
		return
	}

	invalid := apperr.Unauthorized("Invalid email or password").WithCode(CodeInvalidCredentials)

	var user model.User
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := ctl.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apperr.Respond(c, invalid)
			return
		}
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		apperr.Respond(c, invalid)
		return
	}

	pair, err := ctl.tokens.GenerateTokens(user.ID, user.Role)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (ctl *Controller) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.Validation("refreshToken is required"))
		return
	}
	pair, err := ctl.tokens.Refresh(req.RefreshToken)
	if err != nil {
		apperr.Respond(c, apperr.Unauthorized("Invalid or expired refresh token"))
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Me returns the session user together with the cafe they belong to.
func (ctl *Controller) Me(c *gin.Context) {
	session, ok := utils.CurrentUser(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthorized("Authentication required"))
		return
	}

	var cafe *model.Cafe
	if id := session.HomeCafeID(); id != "" {
		var found model.Cafe
		err := ctl.db.WithContext(c.Request.Context()).First(&found, "id = ?", id).Error
		switch {
		case err == nil:
			cafe = &found
		case !errors.Is(err, gorm.ErrRecordNotFound):
			apperr.Respond(c, apperr.Internal(err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":     session.ID,
			"name":   session.Name,
			"email":  session.Email,
			"role":   session.Role,
			"cafeId": session.CafeID,
		},
		"cafe": cafe,
	})
}
