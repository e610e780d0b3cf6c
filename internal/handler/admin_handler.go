package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servilink/service-booking/internal/application"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/middleware"
	"github.com/servilink/service-booking/internal/platform/response"
)

// AdminHandler handles the administrative surface: payment listing, revenue
// stats, platform configuration and earnings reconciliation.
type AdminHandler struct {
	payments *application.PaymentService
	config   *application.ConfigService
	earnings *application.EarningsService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	payments *application.PaymentService,
	config *application.ConfigService,
	earnings *application.EarningsService,
) *AdminHandler {
	return &AdminHandler{payments: payments, config: config, earnings: earnings}
}

// RegisterRoutes registers all admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/payments", h.ListPayments)
		admin.GET("/stats/payments", h.GetPaymentStats)
		admin.GET("/config", h.GetConfig)
		admin.PUT("/config", h.UpdateConfig)
		admin.GET("/providers/:id/earnings/reconcile", h.ReconcileEarnings)
	}
}

// ListPayments handles GET /api/v1/admin/payments
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	dtos, total, err := h.payments.ListAllPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dtos, total, page, limit)
}

// GetPaymentStats handles GET /api/v1/admin/stats/payments
func (h *AdminHandler) GetPaymentStats(c *gin.Context) {
	dto, err := h.payments.GetPaymentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// GetConfig handles GET /api/v1/admin/config
func (h *AdminHandler) GetConfig(c *gin.Context) {
	dto, err := h.config.GetConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// UpdateConfig handles PUT /api/v1/admin/config
func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	var req application.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.config.UpdateFeePercentage(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ReconcileEarnings handles GET /api/v1/admin/providers/:id/earnings/reconcile
func (h *AdminHandler) ReconcileEarnings(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid provider ID")
		return
	}

	dto, err := h.earnings.Reconcile(c.Request.Context(), providerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
