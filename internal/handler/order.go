package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"reconcile/internal/domain"
	"reconcile/internal/service"
)

// OrderHandler receives orders pushed by the order system.
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// OrderItemRequest is a line of an order.
type OrderItemRequest struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name" binding:"required"`
	Quantity   int             `json:"quantity" binding:"required,min=1"`
	Price      decimal.Decimal `json:"price"`
}

// UpsertOrderRequest is the HTTP request body for placing or updating an order.
type UpsertOrderRequest struct {
	OrderID      string             `json:"order_id" binding:"required"`
	CustomerName string             `json:"customer_name"`
	TableNumber  string             `json:"table_number"`
	Items        []OrderItemRequest `json:"items" binding:"dive"`
	Amount       decimal.Decimal    `json:"final_amount"`
	Status       string             `json:"status" binding:"omitempty,oneof=pending cooking ready served cancelled"`
	CreatedAt    *time.Time         `json:"created_at"`
}

// UpdateStatusRequest is the HTTP request body for a kitchen status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending cooking ready served cancelled"`
}

// Upsert handles POST /orders
func (h *OrderHandler) Upsert(c *gin.Context) {
	var req UpsertOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
		})
	}

	in := service.OrderInput{
		ID:           req.OrderID,
		CustomerName: req.CustomerName,
		TableNumber:  req.TableNumber,
		Items:        items,
		Amount:       req.Amount,
		Status:       domain.OrderStatus(req.Status),
	}
	if req.CreatedAt != nil {
		in.CreatedAt = *req.CreatedAt
	}

	order, err := h.orderService.Upsert(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, service.NewOrderView(order))
}

// UpdateStatus handles POST /orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, service.NewOrderView(order))
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, service.NewOrderView(order))
}
