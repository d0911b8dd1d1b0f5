package controller

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/model"
)

const CodeStaffExists = "STAFF_EXISTS"

type StaffController struct {
	db *gorm.DB
}

func NewStaffController(db *gorm.DB) *StaffController {
	return &StaffController{db: db}
}

func (ctl *StaffController) List(c *gin.Context) {
	var staff []model.AllowedStaff
	err := ctl.db.WithContext(c.Request.Context()).
		Preload("User").
		Where("cafe_id = ?", access.CurrentCafe(c).ID).
		Order("created_at ASC").
		Find(&staff).Error
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "staff": staff})
}

// Invite allows email to join the cafe. A staff user with that email who
// has no cafe yet is linked right away.
func (ctl *StaffController) Invite(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		apperr.Respond(c, apperr.Validation("A valid email is required"))
		return
	}

	cafe := access.CurrentCafe(c)
	exists := apperr.Conflict(CodeStaffExists, "This email is already invited")
	invite := model.AllowedStaff{Email: email, CafeID: cafe.ID}

	err := ctl.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var dup int64
		if err := tx.Model(&model.AllowedStaff{}).Where("cafe_id = ? AND email = ?", cafe.ID, email).Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return exists
		}

		var user model.User
		err := tx.Where("email = ? AND role = ? AND cafe_id IS NULL", email, model.RoleStaff).Take(&user).Error
		switch {
		case err == nil:
			invite.UserID = &user.ID
			if err := tx.Model(&user).Update("cafe_id", cafe.ID).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := tx.Create(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return exists
			}
			return err
		}
		return nil
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Staff invited",
		"staff":   invite,
	})
}

// Remove deletes the invitation and detaches the linked user from the cafe.
func (ctl *StaffController) Remove(c *gin.Context) {
	cafe := access.CurrentCafe(c)
	err := ctl.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var invite model.AllowedStaff
		if err := tx.Where("id = ? AND cafe_id = ?", c.Param("staffId"), cafe.ID).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Staff member not found")
			}
			return err
		}
		if invite.UserID != nil {
			if err := tx.Model(&model.User{}).
				Where("id = ? AND cafe_id = ?", *invite.UserID, cafe.ID).
				Update("cafe_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&invite).Error
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Staff removed"})
}
