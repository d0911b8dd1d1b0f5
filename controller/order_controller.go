package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cafemanager/access"
	"cafemanager/apperr"
	"cafemanager/model"
	"cafemanager/service"
)

type OrderController struct {
	orders *service.OrderService
}

func NewOrderController(orders *service.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

func (ctl *OrderController) Place(c *gin.Context) {
	user, ok := sessionUser(c)
	if !ok {
		return
	}
	var req service.PlaceOrder
	if !bindJSON(c, &req) {
		return
	}
	order, err := ctl.orders.Place(c.Request.Context(), access.CurrentCafe(c).ID, user.ID, req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (ctl *OrderController) List(c *gin.Context) {
	orders, err := ctl.orders.List(c.Request.Context(), access.CurrentCafe(c).ID, model.OrderStatus(c.Query("status")))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req struct {
		Status model.OrderStatus `json:"status"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if !req.Status.Valid() {
		apperr.Respond(c, apperr.Validation("Unknown order status"))
		return
	}
	order, err := ctl.orders.UpdateStatus(c.Request.Context(), access.CurrentCafe(c).ID, c.Param("orderId"), req.Status)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}
