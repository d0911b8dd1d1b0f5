package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/model"
	"cafemanager/service"
)

type CampaignController struct {
	db      *gorm.DB
	reports *service.ReportService
}

func NewCampaignController(db *gorm.DB, reports *service.ReportService) *CampaignController {
	return &CampaignController{db: db, reports: reports}
}

type campaignRequest struct {
	Name     *string              `json:"name"`
	Rules    *model.CampaignRules `json:"rules"`
	IsActive *bool                `json:"isActive"`
	StartsAt *time.Time           `json:"startsAt"`
	EndsAt   *time.Time           `json:"endsAt"`
}

func (r *campaignRequest) check() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return apperr.Validation("Campaign name cannot be empty")
	}
	if r.Rules != nil {
		if err := r.Rules.Validate(); err != nil {
			return apperr.Validation(err.Error()).WithCode("INVALID_RULES")
		}
	}
	return checkWindow(r.StartsAt, r.EndsAt)
}

func checkWindow(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return apperr.Validation("endsAt must not be before startsAt").WithCode("INVALID_WINDOW")
	}
	return nil
}

func (ctl *CampaignController) List(c *gin.Context) {
	var campaigns []model.Campaign
	err := ctl.db.WithContext(c.Request.Context()).
		Where("cafe_id = ?", access.CurrentCafe(c).ID).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "campaigns": campaigns})
}

func (ctl *CampaignController) Create(c *gin.Context) {
	var req campaignRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == nil || req.Rules == nil {
		apperr.Respond(c, apperr.Validation("Campaign name and rules are required"))
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(c, err)
		return
	}

	campaign := model.Campaign{
		Name:     strings.TrimSpace(*req.Name),
		Rules:    datatypes.NewJSONType(*req.Rules),
		IsActive: req.IsActive == nil || *req.IsActive,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		CafeID:   access.CurrentCafe(c).ID,
	}
	if err := ctl.db.WithContext(c.Request.Context()).Create(&campaign).Error; err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "campaign": campaign})
}

// Update applies the present fields. Start and end may only be set, not
// cleared.
func (ctl *CampaignController) Update(c *gin.Context) {
	var req campaignRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.check(); err != nil {
		apperr.Respond(c, err)
		return
	}

	campaign, err := ctl.find(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	startsAt, endsAt := campaign.StartsAt, campaign.EndsAt
	if req.StartsAt != nil {
		startsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		endsAt = req.EndsAt
	}
	if err := checkWindow(startsAt, endsAt); err != nil {
		apperr.Respond(c, err)
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Rules != nil {
		updates["rules"] = datatypes.NewJSONType(*req.Rules)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.StartsAt != nil {
		updates["starts_at"] = *req.StartsAt
	}
	if req.EndsAt != nil {
		updates["ends_at"] = *req.EndsAt
	}
	if len(updates) > 0 {
		if err := ctl.db.WithContext(c.Request.Context()).Model(campaign).Updates(updates).Error; err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
	}

	fresh, err := ctl.find(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "campaign": fresh})
}

func (ctl *CampaignController) Delete(c *gin.Context) {
	campaign, err := ctl.find(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := ctl.db.WithContext(c.Request.Context()).Delete(campaign).Error; err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Campaign deleted"})
}

func (ctl *CampaignController) Stats(c *gin.Context) {
	stats, err := ctl.reports.CampaignStats(c.Request.Context(), access.CurrentCafe(c).ID, c.Param("campaignId"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (ctl *CampaignController) find(c *gin.Context) (*model.Campaign, error) {
	var campaign model.Campaign
	err := ctl.db.WithContext(c.Request.Context()).
		Where("id = ? AND cafe_id = ?", c.Param("campaignId"), access.CurrentCafe(c).ID).
		First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Campaign not found")
	}
	return &campaign, err
}
