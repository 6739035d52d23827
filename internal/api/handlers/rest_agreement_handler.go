package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"hometour/portal/internal/api/middleware"
	"hometour/portal/internal/services"
	"hometour/portal/internal/storage"
)

// RestAgreementHandler serves signed tour agreement documents. Routes using
// it must sit behind AuthMiddleware.
type RestAgreementHandler struct {
	showingService services.IShowingService
	storageService storage.IS3Storage
}

// NewRestAgreementHandler creates a new RestAgreementHandler.
func NewRestAgreementHandler(showingService services.IShowingService, storageService storage.IS3Storage) *RestAgreementHandler {
	return &RestAgreementHandler{
		showingService: showingService,
		storageService: storageService,
	}
}

// DownloadAgreement handles GET /v1/showing/:id/agreement. It redirects the
// caller to a short-lived presigned URL for the uploaded document.
func (h *RestAgreementHandler) DownloadAgreement(c *gin.Context) {
	showingID := c.Param("id")
	userID := c.GetString(middleware.ContextKeyUserID)

	ctx := c.Request.Context()
	showing, err := h.showingService.FindByID(ctx, showingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tour request not found"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tour request"})
		}
		return
	}
	if showing.UserID != userID && showing.AgentID() != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tour request not found"})
		return
	}

	agreement, err := h.showingService.FindAgreement(ctx, showingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No agreement on file"})
		} else {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve agreement"})
		}
		return
	}
	if agreement.DocumentKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No agreement document on file"})
		return
	}

	url, err := h.storageService.GenerateDownloadURL(ctx, agreement.DocumentKey)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate download URL"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, url)
}
