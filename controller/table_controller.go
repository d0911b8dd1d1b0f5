package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/model"
	"cafemanager/ws"
)

type TableController struct {
	db  *gorm.DB
	hub *ws.TableHub
}

func NewTableController(db *gorm.DB, hub *ws.TableHub) *TableController {
	return &TableController{db: db, hub: hub}
}

func (ctl *TableController) List(c *gin.Context) {
	var tables []model.Table
	err := ctl.db.WithContext(c.Request.Context()).
		Where("cafe_id = ?", access.CurrentCafe(c).ID).
		Order("name ASC").
		Find(&tables).Error
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tables": tables})
}

func (ctl *TableController) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !bindJSON(c, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		apperr.Respond(c, apperr.Validation("Table name is required"))
		return
	}

	cafe := access.CurrentCafe(c)
	table := model.Table{Name: name, CafeID: cafe.ID}
	if err := ctl.db.WithContext(c.Request.Context()).Create(&table).Error; err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	ctl.hub.Publish(cafe.ID, ws.EventTableCreated, table)
	c.JSON(http.StatusCreated, gin.H{"success": true, "table": table})
}

// Update lets any member flip isOccupied; renaming is for the manager.
func (ctl *TableController) Update(c *gin.Context) {
	var req struct {
		Name       *string `json:"name"`
		IsOccupied *bool   `json:"isOccupied"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, ok := sessionUser(c)
	if !ok {
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		if user.Role != model.RoleManager {
			apperr.Respond(c, apperr.Forbidden("Forbidden: Manager access required"))
			return
		}
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			apperr.Respond(c, apperr.Validation("Table name cannot be empty"))
			return
		}
		updates["name"] = name
	}
	if req.IsOccupied != nil {
		updates["is_occupied"] = *req.IsOccupied
	}

	cafe := access.CurrentCafe(c)
	table, err := ctl.find(c, cafe.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if len(updates) > 0 {
		if err := ctl.db.WithContext(c.Request.Context()).Model(table).Updates(updates).Error; err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
		if req.Name != nil {
			table.Name = updates["name"].(string)
		}
		if req.IsOccupied != nil {
			table.IsOccupied = *req.IsOccupied
		}
		ctl.hub.Publish(cafe.ID, ws.EventTableUpdated, *table)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "table": table})
}

func (ctl *TableController) Delete(c *gin.Context) {
	cafe := access.CurrentCafe(c)
	table, err := ctl.find(c, cafe.ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if err := ctl.db.WithContext(c.Request.Context()).Delete(table).Error; err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	ctl.hub.Publish(cafe.ID, ws.EventTableDeleted, *table)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Table deleted"})
}

func (ctl *TableController) find(c *gin.Context, cafeID string) (*model.Table, error) {
	var table model.Table
	err := ctl.db.WithContext(c.Request.Context()).
		Where("id = ? AND cafe_id = ?", c.Param("tableId"), cafeID).
		First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Table not found")
	}
	return &table, err
}
