package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vizinsight/models"
)

// HealthHandler checks the health status of the service
// @Summary      Health check
// @Description  Check the health status of all services (database, inference endpoint, SQL Server)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  models.HealthResponse  "Service health status"
// @Failure      503  {object}  models.HealthResponse  "Database unavailable"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := models.HealthResponse{
		Status:    "healthy",
		DB:        "connected",
		Inference: "ready",
		Warehouse: "not_configured",
	}

	code := http.StatusOK
	if h.db == nil || h.db.Ping() != nil {
		status.DB = "unavailable"
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	if h.aiService != nil {
		if _, err := h.aiService.Health(ctx); err != nil {
			status.Inference = "unavailable"
			if code == http.StatusOK {
				status.Status = "degraded"
			}
		}
	}

	if h.warehouse != nil {
		status.Warehouse = "connected"
		if err := h.warehouse.Ping(ctx); err != nil {
			status.Warehouse = "unavailable"
		}
	}

	c.JSON(code, status)
}
