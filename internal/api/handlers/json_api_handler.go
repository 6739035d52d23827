package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"hometour/portal/internal/auth"
	"hometour/portal/internal/config"
	"hometour/portal/internal/models"
	"hometour/portal/internal/services"
	"hometour/portal/internal/storage"
	"hometour/portal/internal/tasks"
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// Helper to get AuthResult from context
func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// IAsynqClient defines the interface for the Asynq client methods used by the
// handler. This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg             *config.Config
	db              *mongo.Database
	rdb             *redis.Client
	userService     services.IUserService
	showingService  services.IShowingService
	actionService   services.IActionService
	favoriteService services.IFavoriteService
	messageService  services.IMessageService
	propertyService services.IPropertyService
	storageService  storage.IS3Storage
	taskClient      IAsynqClient
	methods         map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
// Accepts interfaces for dependencies.
func NewJsonApiHandler(
	cfg *config.Config,
	db *mongo.Database,
	rdb *redis.Client,
	taskClient IAsynqClient,
	userService services.IUserService,
	showingService services.IShowingService,
	actionService services.IActionService,
	favoriteService services.IFavoriteService,
	messageService services.IMessageService,
	propertyService services.IPropertyService,
	storageService storage.IS3Storage,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:             cfg,
		db:              db,
		rdb:             rdb,
		taskClient:      taskClient,
		userService:     userService,
		showingService:  showingService,
		actionService:   actionService,
		favoriteService: favoriteService,
		messageService:  messageService,
		propertyService: propertyService,
		storageService:  storageService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                    h.ping,
		"register":                h.register,
		"login":                   h.login,
		"upgradeTier":             h.upgradeTier,
		"lookupProperty":          h.lookupProperty,
		"submitShowing":           h.submitShowing,
		"getShowing":              h.getShowing,
		"listMyShowings":          h.listMyShowings,
		"listAssignableShowings":  h.listAssignableShowings,
		"assignAgent":             h.assignAgent,
		"agentConfirm":            h.agentConfirm,
		"getAgreementUploadURL":   h.getAgreementUploadURL,
		"signAgreement":           h.signAgreement,
		"buyerConfirm":            h.buyerConfirm,
		"cancelShowing":           h.cancelShowing,
		"rescheduleShowing":       h.rescheduleShowing,
		"completeShowing":         h.completeShowing,
		"recordAction":            h.recordAction,
		"removeAction":            h.removeAction,
		"getShowingActions":       h.getShowingActions,
		"getActionCount":          h.getActionCount,
		"getShowingInterest":      h.getShowingInterest,
		"recordContactAttempt":    h.recordContactAttempt,
		"sendMessage":             h.sendMessage,
		"getConversations":        h.getConversations,
		"markMessagesRead":        h.markMessagesRead,
		"getUnreadCount":          h.getUnreadCount,
		"addFavorite":             h.addFavorite,
		"removeFavorite":          h.removeFavorite,
		"updateFavoriteNotes":     h.updateFavoriteNotes,
		"listFavorites":           h.listFavorites,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	authErr := h.checkAuthForMethod(c, req.Method)
	if authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	var result interface{}
	var apiErr *ApiError

	if handlerFunc, ok := h.methods[req.Method]; ok {
		result, apiErr = handlerFunc(c, req.Arguments)
	} else {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// AuthResult holds optional authentication details
type AuthResult struct {
	UserID string // empty for guests
	Role   models.UserRole
}

// checkAuthForMethod checks if auth is needed and validates/extracts details
// if so. It stores the AuthResult in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	needsAuth := h.methodRequiresAuth(method)
	needsAgent := h.methodRequiresAgent(method)
	var authRes *AuthResult

	if !needsAuth && !needsAgent {
		// If method is public, check if an optional Auth header is present anyway
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ValidateJWT(tokenString, h.cfg.JwtSecret)
			if err == nil {
				authRes = &AuthResult{UserID: claims.UserID, Role: claims.Role}
			} else {
				log.Printf("DEBUG: Invalid optional auth token provided for method %s: %v", method, err)
				authRes = &AuthResult{} // Guest
			}
		} else {
			authRes = &AuthResult{} // Guest
		}
		ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
		c.Request = c.Request.WithContext(ctx)
		return nil
	}

	// Auth is required
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	claims, err := auth.ValidateJWT(parts[1], h.cfg.JwtSecret)
	if err != nil {
		log.Printf("DEBUG: Token validation failed for method %s: %v", method, err)
		return NewApiError(fmt.Sprintf("Invalid or expired token: %v", err))
	}

	if needsAgent && claims.Role != models.RoleAgent {
		log.Printf("DEBUG: Agent role required but not present for method %s", method)
		return NewApiError("Agent role required")
	}

	authRes = &AuthResult{UserID: claims.UserID, Role: claims.Role}
	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	// List authenticated methods
	case "upgradeTier",
		"submitShowing",
		"getShowing",
		"listMyShowings",
		"listAssignableShowings",
		"assignAgent",
		"agentConfirm",
		"getAgreementUploadURL",
		"signAgreement",
		"buyerConfirm",
		"cancelShowing",
		"rescheduleShowing",
		"completeShowing",
		"recordAction",
		"removeAction",
		"getShowingActions",
		"getActionCount",
		"getShowingInterest",
		"recordContactAttempt",
		"sendMessage",
		"getConversations",
		"markMessagesRead",
		"getUnreadCount",
		"addFavorite",
		"removeFavorite",
		"updateFavoriteNotes",
		"listFavorites":
		return true

	// Public methods by default
	case "ping",
		"register",
		"login",
		"lookupProperty":
		return false

	default:
		log.Printf("Warning: methodRequiresAuth check for unlisted method '%s', defaulting to false (public)", method)
		return false
	}
}

// methodRequiresAgent checks if a given API method requires the agent role.
func (h *JsonApiHandler) methodRequiresAgent(method string) bool {
	switch method {
	case "listAssignableShowings",
		"assignAgent",
		"agentConfirm",
		"completeShowing",
		"getShowingInterest":
		return true
	default:
		return false
	}
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	resp := JsonApiResponse{Success: false, Error: message}
	c.JSON(http.StatusOK, resp)
}

// parseRequiredSingleArgFromArray takes the raw JSON message for 'arguments',
// expects it to be a JSON array with at least one element,
// and unmarshals that first element into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}

	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// serviceApiError maps the well-known service sentinels onto stable API error
// strings the frontend can branch on. Anything unexpected collapses to the
// fallback so internals do not leak.
func serviceApiError(err error, fallback string) *ApiError {
	switch {
	case errors.Is(err, services.ErrValidation):
		return NewApiError(err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		return NewApiError("invalid_transition")
	case errors.Is(err, services.ErrAlreadyAssigned):
		return NewApiError("already_assigned")
	case errors.Is(err, services.ErrNotReversible):
		return NewApiError("not_reversible")
	case errors.Is(err, services.ErrMessagingFrozen):
		return NewApiError("messaging_frozen")
	case errors.Is(err, mongo.ErrNoDocuments):
		return NewApiError("not_found")
	default:
		return NewApiError(fallback)
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

// AuthResponse defines the structure for authentication responses
type AuthResponse struct {
	Token string          `json:"token"`
	Email string          `json:"email"`
	ID    string          `json:"id"`
	Role  models.UserRole `json:"role"`
}

type RegisterArgs struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Phone    string          `json:"phone"`
	Role     models.UserRole `json:"role"`
}

func (h *JsonApiHandler) register(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs RegisterArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if !emailRegex.MatchString(reqArgs.Email) {
		return nil, NewApiError("invalid_email")
	}

	ctx := c.Request.Context()
	user, err := h.userService.Register(ctx, reqArgs.Name, reqArgs.Email, reqArgs.Password, reqArgs.Phone, reqArgs.Role)
	if err != nil {
		if errors.Is(err, services.ErrEmailExists) {
			return nil, NewApiError("email_exists")
		}
		if errors.Is(err, services.ErrValidation) {
			return nil, NewApiError(err.Error())
		}
		log.Printf("Error registering user %s: %v", reqArgs.Email, err)
		return nil, NewApiError("Registration failed")
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s: %v", user.ID, err)
		return nil, NewApiError("Failed to generate session token")
	}

	log.Printf("Registered %s user %s", user.Role, user.ID)
	return AuthResponse{Token: token, Email: user.Email, ID: user.ID, Role: user.Role}, nil
}

type LoginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *JsonApiHandler) login(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LoginArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	if !emailRegex.MatchString(reqArgs.Email) {
		return nil, NewApiError("invalid_email")
	}

	ctx := c.Request.Context()
	user, err := h.userService.Authenticate(ctx, reqArgs.Email, reqArgs.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			// Do not reveal whether the account exists.
			log.Printf("Login attempt failed for %s", reqArgs.Email)
			return false, nil // Success: true, Data: false
		}
		log.Printf("DB error during login for %s: %v", reqArgs.Email, err)
		return nil, NewApiError("Database error")
	}

	token, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		log.Printf("Failed to generate JWT for user %s: %v", user.ID, err)
		return nil, NewApiError("Failed to generate session token")
	}

	log.Printf("Login successful for user %s (%s)", user.ID, reqArgs.Email)
	return AuthResponse{Token: token, Email: user.Email, ID: user.ID, Role: user.Role}, nil
}

func (h *JsonApiHandler) upgradeTier(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var tier models.BuyerTier
	if apiErr := h.parseRequiredSingleArgFromArray(args, &tier); apiErr != nil {
		return nil, apiErr
	}
	if tier != models.TierFree && tier != models.TierPaid {
		return nil, NewApiError("Invalid tier")
	}

	ctx := c.Request.Context()
	if err := h.userService.SetTier(ctx, authInfo.UserID, tier); err != nil {
		log.Printf("Error setting tier %s for user %s: %v", tier, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to update tier")
	}
	return true, nil
}

type LookupPropertyArgs struct {
	Address string `json:"address"`
	MlsID   string `json:"mls_id"`
}

func (h *JsonApiHandler) lookupProperty(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs LookupPropertyArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if strings.TrimSpace(reqArgs.Address) == "" && strings.TrimSpace(reqArgs.MlsID) == "" {
		return nil, NewApiError("address or mls_id required")
	}

	ctx := c.Request.Context()
	record, err := h.propertyService.Lookup(ctx, reqArgs.Address, reqArgs.MlsID)
	if err != nil {
		log.Printf("Property lookup failed for %q/%q: %v", reqArgs.Address, reqArgs.MlsID, err)
		return nil, NewApiError("Property lookup failed")
	}
	if record == nil {
		return nil, nil // Not known upstream; submission still allowed
	}

	// A fresh record may have photos worth caching for the tour page.
	if len(record.ImageURLs) > 0 && len(record.ImageKeys) == 0 {
		payloadBytes, _ := json.Marshal(tasks.PropertyPhotosPayload{
			PropertyID: record.ID,
			ImageURLs:  record.ImageURLs,
		})
		task := asynq.NewTask(tasks.TypePropertyPhotos, payloadBytes, asynq.Queue("low"))
		if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
			log.Printf("WARN: failed to enqueue photo caching for property %s: %v", record.ID, enqueueErr)
		}
	}
	return record, nil
}

type SubmitShowingArgs struct {
	PropertyAddress  string `json:"property_address"`
	MlsID            string `json:"mls_id"`
	PreferredDate    string `json:"preferred_date"` // YYYY-MM-DD
	PreferredTime    string `json:"preferred_time"` // HH:MM
	Message          string `json:"message"`
	ConsentToContact bool   `json:"consent_to_contact"`
}

func (h *JsonApiHandler) submitShowing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs SubmitShowingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	buyer, err := h.userService.FindByID(ctx, authInfo.UserID)
	if err != nil {
		log.Printf("Error loading buyer %s for submit: %v", authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to load account")
	}

	showing, err := h.showingService.Submit(ctx, buyer,
		reqArgs.PropertyAddress,
		reqArgs.MlsID,
		reqArgs.PreferredDate,
		reqArgs.PreferredTime,
		reqArgs.Message,
		reqArgs.ConsentToContact,
	)
	if err != nil {
		log.Printf("Error submitting showing for buyer %s: %v", authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to submit tour request")
	}

	log.Printf("Created showing request %s for buyer %s", showing.ID, authInfo.UserID)
	return showing, nil
}

func (h *JsonApiHandler) getShowing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	showing, apiErr := h.loadShowingForViewer(c.Request.Context(), showingID, authInfo.UserID)
	if apiErr != nil {
		return nil, apiErr
	}
	return showing, nil
}

// loadShowingForViewer loads a showing and hides it from anyone who is not
// the owning buyer or the assigned agent. Foreign callers get the same
// not_found as a missing id so the existence of the showing does not leak.
func (h *JsonApiHandler) loadShowingForViewer(ctx context.Context, showingID, viewerID string) (*models.ShowingRequest, *ApiError) {
	showing, err := h.showingService.FindByID(ctx, showingID)
	if err != nil {
		return nil, serviceApiError(err, "Failed to load tour request")
	}
	if showing.UserID != viewerID && showing.AgentID() != viewerID {
		return nil, NewApiError("not_found")
	}
	return showing, nil
}

func (h *JsonApiHandler) listMyShowings(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	ctx := c.Request.Context()
	var (
		showings []models.ShowingRequest
		err      error
	)
	if authInfo.Role == models.RoleAgent {
		showings, err = h.showingService.ListForAgent(ctx, authInfo.UserID)
	} else {
		showings, err = h.showingService.ListForBuyer(ctx, authInfo.UserID)
	}
	if err != nil {
		log.Printf("Error listing showings for user %s: %v", authInfo.UserID, err)
		return nil, NewApiError("Failed to list tour requests")
	}
	return showings, nil
}

func (h *JsonApiHandler) listAssignableShowings(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	ctx := c.Request.Context()
	showings, err := h.showingService.ListAssignable(ctx)
	if err != nil {
		log.Printf("Error listing assignable showings: %v", err)
		return nil, NewApiError("Failed to list open tour requests")
	}
	return showings, nil
}

func (h *JsonApiHandler) assignAgent(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	agent, err := h.userService.FindByID(ctx, authInfo.UserID)
	if err != nil {
		log.Printf("Error loading agent %s for assignment: %v", authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to load account")
	}

	assigned := models.AssignedAgent{
		AgentID: agent.ID,
		Name:    agent.Name,
		Phone:   agent.Phone,
		Email:   agent.Email,
	}
	if err := h.showingService.AssignAgent(ctx, showingID, assigned); err != nil {
		log.Printf("Error assigning agent %s to showing %s: %v", authInfo.UserID, showingID, err)
		return nil, serviceApiError(err, "Failed to claim tour request")
	}

	log.Printf("Agent %s assigned to showing %s", authInfo.UserID, showingID)
	return nil, nil
}

func (h *JsonApiHandler) agentConfirm(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.showingService.AgentConfirm(ctx, showingID, authInfo.UserID); err != nil {
		log.Printf("Error agent-confirming showing %s by %s: %v", showingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to confirm tour request")
	}
	return nil, nil
}

type GetAgreementUploadURLArgs struct {
	ShowingID   string `json:"showing_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *JsonApiHandler) getAgreementUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs GetAgreementUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.ShowingID == "" || reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, NewApiError("Missing required arguments (showing_id, filename, content_type)")
	}

	ctx := c.Request.Context()
	showing, err := h.showingService.FindByID(ctx, reqArgs.ShowingID)
	if err != nil {
		return nil, serviceApiError(err, "Failed to load tour request")
	}
	if showing.UserID != authInfo.UserID && showing.AgentID() != authInfo.UserID {
		return nil, NewApiError("not_found")
	}

	presignedURL, objectKey, err := h.storageService.GenerateAgreementUploadURL(ctx,
		reqArgs.ShowingID, reqArgs.Filename, reqArgs.ContentType)
	if err != nil {
		log.Printf("Error generating agreement upload URL for showing %s: %v", reqArgs.ShowingID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}

	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

type SignAgreementArgs struct {
	ShowingID   string `json:"showing_id"`
	SignerName  string `json:"signer_name"`
	DocumentKey string `json:"document_key"` // optional, from getAgreementUploadURL
}

func (h *JsonApiHandler) signAgreement(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs SignAgreementArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	err := h.showingService.SignAgreement(ctx, reqArgs.ShowingID, authInfo.UserID, reqArgs.SignerName, reqArgs.DocumentKey)
	if err != nil {
		log.Printf("Error signing agreement for showing %s by %s: %v", reqArgs.ShowingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to sign agreement")
	}
	return nil, nil
}

func (h *JsonApiHandler) buyerConfirm(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.showingService.BuyerConfirm(ctx, showingID, authInfo.UserID); err != nil {
		log.Printf("Error buyer-confirming showing %s by %s: %v", showingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to confirm tour")
	}
	return nil, nil
}

func (h *JsonApiHandler) cancelShowing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.showingService.Cancel(ctx, showingID, authInfo.UserID); err != nil {
		log.Printf("Error cancelling showing %s by %s: %v", showingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to cancel tour request")
	}
	return nil, nil
}

type RescheduleShowingArgs struct {
	ShowingID     string `json:"showing_id"`
	PreferredDate string `json:"preferred_date"`
	PreferredTime string `json:"preferred_time"`
	Reason        string `json:"reason"`
}

func (h *JsonApiHandler) rescheduleShowing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RescheduleShowingArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	showing, err := h.showingService.FindByID(ctx, reqArgs.ShowingID)
	if err != nil {
		return nil, serviceApiError(err, "Failed to load tour request")
	}
	buyer, err := h.userService.FindByID(ctx, authInfo.UserID)
	if err != nil {
		return nil, serviceApiError(err, "Failed to load account")
	}

	err = h.showingService.Reschedule(ctx, showing, buyer, reqArgs.PreferredDate, reqArgs.PreferredTime, reqArgs.Reason)
	if err != nil {
		log.Printf("Error rescheduling showing %s by %s: %v", reqArgs.ShowingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to reschedule tour request")
	}
	return nil, nil
}

// completeShowing transitions the showing to completed, then claims and
// enqueues the completion webhook. The claim flips completion_notified before
// the enqueue so a crash between the two leaves the showing for the hourly
// sweep rather than double-notifying.
func (h *JsonApiHandler) completeShowing(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.showingService.Complete(ctx, showingID, authInfo.UserID); err != nil {
		log.Printf("Error completing showing %s by %s: %v", showingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to complete tour")
	}

	claimed, err := h.showingService.ClaimCompletionNotice(ctx, showingID)
	if err != nil {
		log.Printf("CRITICAL: failed to claim completion notice for showing %s: %v", showingID, err)
		return nil, nil // Tour is completed; the sweep will pick the notice up
	}
	if claimed {
		payloadBytes, _ := json.Marshal(tasks.TourCompletedPayload{ShowingRequestID: showingID})
		task := asynq.NewTask(tasks.TypeTourCompleted, payloadBytes, asynq.Queue("critical"))
		if _, enqueueErr := h.taskClient.EnqueueContext(ctx, task); enqueueErr != nil {
			log.Printf("CRITICAL: failed to enqueue completion notice for showing %s: %v", showingID, enqueueErr)
			if releaseErr := h.showingService.ReleaseCompletionNotice(ctx, showingID); releaseErr != nil {
				log.Printf("CRITICAL: failed to release completion notice claim for showing %s: %v", showingID, releaseErr)
			}
		}
	}
	return nil, nil
}

type RecordActionArgs struct {
	ShowingID string                       `json:"showing_id"`
	Type      models.PostShowingActionType `json:"type"`
	Details   *models.ActionDetails        `json:"details"`
}

func (h *JsonApiHandler) recordAction(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RecordActionArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	err := h.actionService.RecordAction(ctx, reqArgs.ShowingID, authInfo.UserID, reqArgs.Type, reqArgs.Details)
	if err != nil {
		log.Printf("Error recording action %s on showing %s by %s: %v", reqArgs.Type, reqArgs.ShowingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to record action")
	}
	return nil, nil
}

type RemoveActionArgs struct {
	ShowingID string                       `json:"showing_id"`
	Type      models.PostShowingActionType `json:"type"`
}

func (h *JsonApiHandler) removeAction(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RemoveActionArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	err := h.actionService.RemoveAction(ctx, reqArgs.ShowingID, authInfo.UserID, reqArgs.Type)
	if err != nil {
		log.Printf("Error removing action %s on showing %s by %s: %v", reqArgs.Type, reqArgs.ShowingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to remove action")
	}
	return nil, nil
}

func (h *JsonApiHandler) getShowingActions(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if _, apiErr := h.loadShowingForViewer(ctx, showingID, authInfo.UserID); apiErr != nil {
		return nil, apiErr
	}
	presence, err := h.actionService.GetActionsForShowing(ctx, showingID)
	if err != nil {
		log.Printf("Error loading actions for showing %s: %v", showingID, err)
		return nil, serviceApiError(err, "Failed to load actions")
	}
	return presence, nil
}

func (h *JsonApiHandler) getActionCount(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if _, apiErr := h.loadShowingForViewer(ctx, showingID, authInfo.UserID); apiErr != nil {
		return nil, apiErr
	}
	count, err := h.actionService.GetActionCount(ctx, showingID)
	if err != nil {
		log.Printf("Error counting actions for showing %s: %v", showingID, err)
		return nil, serviceApiError(err, "Failed to count actions")
	}
	return count, nil
}

func (h *JsonApiHandler) getShowingInterest(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	// The interest score is agent-facing: only the agent who ran the tour
	// gets to see how warm the buyer is.
	ctx := c.Request.Context()
	showing, apiErr := h.loadShowingForViewer(ctx, showingID, authInfo.UserID)
	if apiErr != nil {
		return nil, apiErr
	}
	if showing.AgentID() != authInfo.UserID {
		return nil, NewApiError("not_found")
	}
	level, score, err := h.actionService.InterestForShowing(ctx, showingID)
	if err != nil {
		log.Printf("Error scoring interest for showing %s: %v", showingID, err)
		return nil, serviceApiError(err, "Failed to score interest")
	}
	return gin.H{"level": level, "score": score}, nil
}

type RecordContactAttemptArgs struct {
	ShowingID string `json:"showing_id"`
	Method    string `json:"method"` // sms | call | email
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// recordContactAttempt is fire-and-forget analytics: the tap-to-contact UI
// must never stall on it, so enqueue failures are swallowed and the task
// handler swallows storage failures in turn.
func (h *JsonApiHandler) recordContactAttempt(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs RecordContactAttemptArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	payloadBytes, _ := json.Marshal(tasks.ContactAttemptPayload{
		ShowingRequestID: reqArgs.ShowingID,
		BuyerID:          authInfo.UserID,
		Method:           reqArgs.Method,
		AgentID:          reqArgs.AgentID,
		AgentName:        reqArgs.AgentName,
	})
	task := asynq.NewTask(tasks.TypeContactAttempt, payloadBytes, asynq.Queue("low"))
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		log.Printf("WARN: failed to enqueue contact attempt for showing %s: %v", reqArgs.ShowingID, err)
	}
	return nil, nil
}

type SendMessageArgs struct {
	ShowingID  string `json:"showing_id"` // empty for support threads
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

func (h *JsonApiHandler) sendMessage(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs SendMessageArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	msg, err := h.messageService.SendMessage(ctx, authInfo.UserID, reqArgs.ShowingID, reqArgs.ReceiverID, reqArgs.Content)
	if err != nil {
		log.Printf("Error sending message on showing %q by %s: %v", reqArgs.ShowingID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to send message")
	}
	return msg, nil
}

func (h *JsonApiHandler) getConversations(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	ctx := c.Request.Context()
	conversations, err := h.messageService.GetConversations(ctx, authInfo.UserID)
	if err != nil {
		log.Printf("Error loading conversations for user %s: %v", authInfo.UserID, err)
		return nil, NewApiError("Failed to load conversations")
	}
	return conversations, nil
}

func (h *JsonApiHandler) markMessagesRead(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var showingID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &showingID); apiErr != nil {
		return nil, apiErr
	}

	// Read receipts are best effort; the service swallows storage failures.
	_ = h.messageService.MarkMessagesAsRead(c.Request.Context(), showingID, authInfo.UserID)
	return nil, nil
}

func (h *JsonApiHandler) getUnreadCount(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), authInfo.UserID)
	if err != nil {
		log.Printf("Error counting unread messages for user %s: %v", authInfo.UserID, err)
		return nil, NewApiError("Failed to count unread messages")
	}
	return count, nil
}

type AddFavoriteArgs struct {
	PropertyAddress  string `json:"property_address"`
	MlsID            string `json:"mls_id"`
	Notes            string `json:"notes"`
	ShowingRequestID string `json:"showing_request_id"`
}

func (h *JsonApiHandler) addFavorite(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs AddFavoriteArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	favorite, err := h.favoriteService.Add(ctx, authInfo.UserID,
		reqArgs.PropertyAddress, reqArgs.MlsID, reqArgs.Notes, reqArgs.ShowingRequestID)
	if err != nil {
		log.Printf("Error adding favorite for buyer %s: %v", authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to save favorite")
	}
	return favorite, nil
}

func (h *JsonApiHandler) removeFavorite(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var favoriteID string
	if apiErr := h.parseRequiredSingleArgFromArray(args, &favoriteID); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.favoriteService.Remove(ctx, authInfo.UserID, favoriteID); err != nil {
		log.Printf("Error removing favorite %s for buyer %s: %v", favoriteID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to remove favorite")
	}
	return nil, nil
}

type UpdateFavoriteNotesArgs struct {
	FavoriteID string `json:"favorite_id"`
	Notes      string `json:"notes"`
}

func (h *JsonApiHandler) updateFavoriteNotes(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	var reqArgs UpdateFavoriteNotesArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	ctx := c.Request.Context()
	if err := h.favoriteService.UpdateNotes(ctx, authInfo.UserID, reqArgs.FavoriteID, reqArgs.Notes); err != nil {
		log.Printf("Error updating favorite %s notes for buyer %s: %v", reqArgs.FavoriteID, authInfo.UserID, err)
		return nil, serviceApiError(err, "Failed to update favorite")
	}
	return nil, nil
}

func (h *JsonApiHandler) listFavorites(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok || authInfo.UserID == "" {
		return nil, NewApiError("Authentication required")
	}

	favorites, err := h.favoriteService.ListForBuyer(c.Request.Context(), authInfo.UserID)
	if err != nil {
		log.Printf("Error listing favorites for buyer %s: %v", authInfo.UserID, err)
		return nil, NewApiError("Failed to list favorites")
	}
	return favorites, nil
}
