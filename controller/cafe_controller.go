package controller

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/logger"
	"cafemanager/model"
	"cafemanager/storage"
)

const (
	maxLogoSize = 5 << 20

	CodeCafeExists = "CAFE_EXISTS"
)

var logoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type CafeController struct {
	db   *gorm.DB
	disk storage.Disk
}

func NewCafeController(db *gorm.DB, disk storage.Disk) *CafeController {
	return &CafeController{db: db, disk: disk}
}

type createCafeRequest struct {
	Name    string  `json:"name"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

// Create provisions the caller's one and only cafe.
func (ctl *CafeController) Create(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	if user.Role != model.RoleManager {
		apperr.Respond(c, apperr.Forbidden("Forbidden: Manager access required"))
		return
	}

	var req createCafeRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		apperr.Respond(c, apperr.Validation("Cafe name is required"))
		return
	}

	exists := apperr.Conflict(CodeCafeExists, "You already manage a cafe")
	cafe := model.Cafe{Name: req.Name, Address: req.Address, Phone: req.Phone, ManagerID: user.ID}
	err := ctl.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&model.Cafe{}).Where("manager_id = ?", user.ID).Count(&owned).Error; err != nil {
			return err
		}
		if owned > 0 {
			return exists
		}
		if err := tx.Create(&cafe).Error; err != nil {
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

	logger.Ctx(c.Request.Context()).Info().Str(logger.CafeID, cafe.ID).Msg("cafe created")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Cafe created successfully",
		"cafe":    cafe,
	})
}

// Get returns the caller's cafe: the managed one if any, otherwise the
// cafe they work at. cafe is null when neither exists.
func (ctl *CafeController) Get(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	id := user.HomeCafeID()
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "cafe": nil})
		return
	}

	var cafe model.Cafe
	if err := ctl.db.WithContext(c.Request.Context()).First(&cafe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "cafe": nil})
			return
		}
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cafe": cafe})
}

// updateCafeRequest distinguishes absent fields (nil) from present ones.
// An explicit null clears address or phone.
type updateCafeRequest struct {
	Name    *string        `json:"name"`
	Address optionalString `json:"address"`
	Phone   optionalString `json:"phone"`
}

// Update applies only the fields present in the body.
func (ctl *CafeController) Update(c *gin.Context) {
	cafe := access.CurrentCafe(c)

	var req updateCafeRequest
	if !bindJSON(c, &req) {
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			apperr.Respond(c, apperr.Validation("Cafe name cannot be empty"))
			return
		}
		updates["name"] = name
	}
	if req.Address.Set {
		updates["address"] = req.Address.Value
	}
	if req.Phone.Set {
		updates["phone"] = req.Phone.Value
	}

	if len(updates) > 0 {
		if err := ctl.db.WithContext(c.Request.Context()).Model(cafe).Updates(updates).Error; err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
	}

	var fresh model.Cafe
	if err := ctl.db.WithContext(c.Request.Context()).First(&fresh, "id = ?", cafe.ID).Error; err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cafe updated successfully",
		"cafe":    fresh,
	})
}

// UploadLogo stores the multipart "logo" file and replaces the previous one.
func (ctl *CafeController) UploadLogo(c *gin.Context) {
	cafe := access.CurrentCafe(c)

	file, err := c.FormFile("logo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			apperr.Respond(c, apperr.Validation("Logo file is required"))
			return
		}
		apperr.Respond(c, apperr.Validation("Failed to read uploaded file"))
		return
	}
	if file.Size > maxLogoSize {
		apperr.Respond(c, apperr.Validation("File too large (max 5MB)").WithCode("FILE_TOO_LARGE"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType, ok := logoTypes[ext]
	if !ok {
		apperr.Respond(c, apperr.Validation("Invalid file type, only JPG/JPEG/PNG allowed").WithCode("INVALID_FILE_TYPE"))
		return
	}

	src, err := file.Open()
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	key := fmt.Sprintf("logos/cafe-%s-%d%s", cafe.ID, time.Now().UnixNano(), ext)
	if err := ctl.disk.Put(ctx, key, src, contentType); err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}

	url := ctl.disk.URL(key)
	if err := ctl.db.WithContext(ctx).Model(cafe).Updates(map[string]any{"logo": url, "logo_key": key}).Error; err != nil {
		_ = ctl.disk.Delete(ctx, key)
		apperr.Respond(c, apperr.Internal(err))
		return
	}

	if old := cafe.LogoKey; old != "" && old != key {
		if err := ctl.disk.Delete(ctx, old); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", old).Msg("failed to delete old logo")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logo updated successfully",
		"logo":    url,
	})
}
