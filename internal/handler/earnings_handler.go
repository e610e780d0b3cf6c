package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servilink/service-booking/internal/application"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/middleware"
	"github.com/servilink/service-booking/internal/platform/response"
)

// EarningsHandler handles HTTP requests for the provider earnings ledger.
type EarningsHandler struct {
	service *application.EarningsService
}

// NewEarningsHandler creates a new EarningsHandler.
func NewEarningsHandler(service *application.EarningsService) *EarningsHandler {
	return &EarningsHandler{service: service}
}

// RegisterRoutes registers the provider-facing earnings routes.
func (h *EarningsHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	providers := r.Group("/providers")
	providers.Use(middleware.AuthMiddleware(jwtManager))
	{
		providers.GET("/me/earnings", middleware.RequireRole(auth.RoleProvider), h.GetMyEarnings)
	}
}

// GetMyEarnings handles GET /api/v1/providers/me/earnings
func (h *EarningsHandler) GetMyEarnings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	dto, err := h.service.GetEarnings(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
