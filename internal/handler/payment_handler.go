package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servilink/service-booking/internal/application"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/middleware"
	"github.com/servilink/service-booking/internal/platform/response"
)

// PaymentHandler handles HTTP requests for payment operations.
type PaymentHandler struct {
	service *application.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers all payment routes on the given router group.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware(jwtManager))
	{
		payments.POST("/order", middleware.RequireRole(auth.RoleCustomer), h.CreateOrder)
		payments.POST("/verify", middleware.RequireRole(auth.RoleCustomer), h.VerifyPayment)
		payments.GET("/booking/:bookingId", h.GetPaymentByBooking)
		payments.POST("/:id/refund", middleware.RequireRole(auth.RoleAdmin), h.RefundPayment)
	}
}

// CreateOrder handles POST /api/v1/payments/order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.CreateOrder(c.Request.Context(), userID, req.BookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// VerifyPayment handles POST /api/v1/payments/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.VerifyPayment(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// GetPaymentByBooking handles GET /api/v1/payments/booking/:bookingId
func (h *PaymentHandler) GetPaymentByBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	role, _ := middleware.GetUserRole(c)

	bookingID, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	dto, err := h.service.GetPaymentByBooking(c.Request.Context(), userID, role, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// RefundPayment handles POST /api/v1/payments/:id/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid payment ID")
		return
	}

	var req application.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.InitiateRefund(c.Request.Context(), paymentID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
