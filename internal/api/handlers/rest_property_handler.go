package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hometour/portal/internal/services"
)

// RestPropertyHandler handles REST requests for property records.
type RestPropertyHandler struct {
	propertyService services.IPropertyService
}

// NewRestPropertyHandler creates a new RestPropertyHandler.
func NewRestPropertyHandler(propertyService services.IPropertyService) *RestPropertyHandler {
	return &RestPropertyHandler{propertyService: propertyService}
}

// SearchProperties handles GET /v1/property/search
func (h *RestPropertyHandler) SearchProperties(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter 'q'"})
		return
	}

	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 50 {
		limit = 10
	}

	records, err := h.propertyService.Search(c.Request.Context(), query, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search properties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func RegisterRestPropertyRoutes(r *gin.Engine, handler *RestPropertyHandler) {
	r.GET("/v1/property/search", handler.SearchProperties)
}
