// Package controller holds the gin handlers of the cafe API. Handlers under
// /api/cafes/:id run after access.Guard and read the cafe with
// access.CurrentCafe.
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"cafemanager/apperr"
	"cafemanager/reconcile"
	"cafemanager/utils"
)

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apperr.Respond(c, apperr.Validation("Invalid request body"))
		return false
	}
	return true
}

func sessionUser(c *gin.Context) (*utils.SessionUser, bool) {
	user, ok := utils.CurrentUser(c)
	if !ok {
		apperr.Respond(c, apperr.Unauthorized("Authentication required"))
	}
	return user, ok
}

func respondSaved[R reconcile.Record](c *gin.Context, res *reconcile.Result[R]) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"created": res.Created,
		"idMap":   res.IDMap,
		"deleted": res.Deleted,
		"updated": res.Updated,
		"skipped": res.Skipped,
	})
}

// optionalString records whether a JSON field was present at all, so that
// a missing field and an explicit null can be told apart.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
