package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/service"
	"cafemanager/store"
)

const maxImportSize = 10 << 20

type MenuController struct {
	menu *service.MenuService
}

func NewMenuController(menu *service.MenuService) *MenuController {
	return &MenuController{menu: menu}
}

func (ctl *MenuController) Menu(c *gin.Context) {
	menu, err := ctl.menu.Assemble(c.Request.Context(), access.CurrentCafe(c).ID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (ctl *MenuController) SaveCategories(c *gin.Context) {
	var req struct {
		Categories []store.CategoryInput `json:"categories"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Categories == nil {
		apperr.Respond(c, apperr.Validation("categories is required"))
		return
	}
	res, err := ctl.menu.SaveCategories(c.Request.Context(), access.CurrentCafe(c).ID, req.Categories)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	respondSaved(c, res)
}

func (ctl *MenuController) SaveExtras(c *gin.Context) {
	var req struct {
		Extras []store.ExtraInput `json:"extras"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Extras == nil {
		apperr.Respond(c, apperr.Validation("extras is required"))
		return
	}
	res, err := ctl.menu.SaveExtras(c.Request.Context(), access.CurrentCafe(c).ID, req.Extras)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	respondSaved(c, res)
}

func (ctl *MenuController) SaveMenuItems(c *gin.Context) {
	var req struct {
		MenuItems []store.MenuItemInput `json:"menuItems"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.MenuItems == nil {
		apperr.Respond(c, apperr.Validation("menuItems is required"))
		return
	}
	res, err := ctl.menu.SaveMenuItems(c.Request.Context(), access.CurrentCafe(c).ID, req.MenuItems)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	respondSaved(c, res)
}

// ImportMenuItems adds the rows of an uploaded xlsx file to the menu.
func (ctl *MenuController) ImportMenuItems(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			apperr.Respond(c, apperr.Validation("Excel file is required"))
			return
		}
		apperr.Respond(c, apperr.Validation("Failed to read uploaded file"))
		return
	}
	if file.Size > maxImportSize {
		apperr.Respond(c, apperr.Validation("File too large (max 10MB)").WithCode("FILE_TOO_LARGE"))
		return
	}

	src, err := file.Open()
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	defer src.Close()

	res, err := ctl.menu.ImportXLSX(c.Request.Context(), access.CurrentCafe(c).ID, src)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Menu imported",
		"result":  res,
	})
}
