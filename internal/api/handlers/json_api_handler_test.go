package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"hometour/portal/internal/api/handlers"
	"hometour/portal/internal/auth"
	"hometour/portal/internal/config"
	"hometour/portal/internal/models"
	"hometour/portal/internal/services"
	"hometour/portal/internal/tasks"
)

// --- Test Setup ---

type testMocks struct {
	userSvc     *MockUserService
	showingSvc  *MockShowingService
	actionSvc   *MockActionService
	favoriteSvc *MockFavoriteService
	messageSvc  *MockMessageService
	propertySvc *MockPropertyService
	storageSvc  *MockS3Storage
	taskClient  *MockAsynqClient
}

func setupTestRouter() (*gin.Engine, *config.Config, *testMocks) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JwtSecret: "testsecret",
		JwtTTL:    time.Hour,
		AppName:   "TestApp",
	}
	m := &testMocks{
		userSvc:     new(MockUserService),
		showingSvc:  new(MockShowingService),
		actionSvc:   new(MockActionService),
		favoriteSvc: new(MockFavoriteService),
		messageSvc:  new(MockMessageService),
		propertySvc: new(MockPropertyService),
		storageSvc:  new(MockS3Storage),
		taskClient:  new(MockAsynqClient),
	}
	handler := handlers.NewJsonApiHandler(cfg, nil, nil, m.taskClient,
		m.userSvc, m.showingSvc, m.actionSvc, m.favoriteSvc, m.messageSvc, m.propertySvc, m.storageSvc)
	r := gin.New()
	r.POST("/v1/api", handler.HandleRequest)
	return r, cfg, m
}

func doApiRequest(router *gin.Engine, method string, args interface{}, token string) *httptest.ResponseRecorder {
	var rawArgs json.RawMessage
	if args != nil {
		argsBytes, _ := json.Marshal([]interface{}{args})
		rawArgs = argsBytes
	}
	reqBody := handlers.JsonApiRequest{Method: method, Arguments: rawArgs}
	jsonBody, _ := json.Marshal(reqBody)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/api", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func decodeApiResponse(t *testing.T, w *httptest.ResponseRecorder) handlers.JsonApiResponse {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	return resp
}

func buyerToken(t *testing.T, cfg *config.Config, userID string) string {
	t.Helper()
	token, err := auth.GenerateJWT(userID, models.RoleBuyer, cfg.JwtSecret, cfg.JwtTTL)
	assert.NoError(t, err)
	return token
}

func agentToken(t *testing.T, cfg *config.Config, userID string) string {
	t.Helper()
	token, err := auth.GenerateJWT(userID, models.RoleAgent, cfg.JwtSecret, cfg.JwtTTL)
	assert.NoError(t, err)
	return token
}

// --- Tests ---

func TestJsonApiHandler_Ping(t *testing.T) {
	router, _, _ := setupTestRouter()
	resp := decodeApiResponse(t, doApiRequest(router, "ping", nil, ""))
	assert.True(t, resp.Success)
	assert.Equal(t, "pong", resp.Data)
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_UnknownMethod(t *testing.T) {
	router, _, _ := setupTestRouter()
	resp := decodeApiResponse(t, doApiRequest(router, "nosuchmethod", nil, ""))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Unknown method")
}

func TestJsonApiHandler_Register_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.userSvc.On("Register", mock.Anything, "Jo Buyer", "jo@example.com", "password123", "", models.RoleBuyer).
		Return(&models.User{ID: "u1", Email: "jo@example.com", Role: models.RoleBuyer}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "register", handlers.RegisterArgs{
		Name: "Jo Buyer", Email: "jo@example.com", Password: "password123", Role: models.RoleBuyer,
	}, ""))

	assert.True(t, resp.Success)
	authData, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "u1", authData["id"])
	claims, err := auth.ValidateJWT(authData["token"].(string), cfg.JwtSecret)
	assert.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleBuyer, claims.Role)
	m.userSvc.AssertExpectations(t)
}

func TestJsonApiHandler_Register_EmailExists(t *testing.T) {
	router, _, m := setupTestRouter()
	m.userSvc.On("Register", mock.Anything, mock.Anything, "jo@example.com", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, services.ErrEmailExists)

	resp := decodeApiResponse(t, doApiRequest(router, "register", handlers.RegisterArgs{
		Name: "Jo", Email: "jo@example.com", Password: "password123", Role: models.RoleBuyer,
	}, ""))

	assert.False(t, resp.Success)
	assert.Equal(t, "email_exists", resp.Error)
}

func TestJsonApiHandler_Login_Success(t *testing.T) {
	router, _, m := setupTestRouter()
	m.userSvc.On("Authenticate", mock.Anything, "jo@example.com", "password123").
		Return(&models.User{ID: "u1", Email: "jo@example.com", Role: models.RoleBuyer}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "login", handlers.LoginArgs{
		Email: "jo@example.com", Password: "password123",
	}, ""))

	assert.True(t, resp.Success)
	authData, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.NotEmpty(t, authData["token"])
	m.userSvc.AssertExpectations(t)
}

func TestJsonApiHandler_Login_BadCredentials(t *testing.T) {
	router, _, m := setupTestRouter()
	m.userSvc.On("Authenticate", mock.Anything, "jo@example.com", "wrong").
		Return(nil, services.ErrInvalidCredentials)

	resp := decodeApiResponse(t, doApiRequest(router, "login", handlers.LoginArgs{
		Email: "jo@example.com", Password: "wrong",
	}, ""))

	// No distinction between wrong password and unknown account.
	assert.True(t, resp.Success)
	assert.Equal(t, false, resp.Data)
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_SubmitShowing_RequiresAuth(t *testing.T) {
	router, _, _ := setupTestRouter()
	resp := decodeApiResponse(t, doApiRequest(router, "submitShowing", handlers.SubmitShowingArgs{}, ""))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Authorization header required")
}

func TestJsonApiHandler_SubmitShowing_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	buyer := &models.User{ID: "buyer1", Role: models.RoleBuyer, Tier: models.TierFree}
	m.userSvc.On("FindByID", mock.Anything, "buyer1").Return(buyer, nil)
	m.showingSvc.On("Submit", mock.Anything, buyer, "12 Oak St", "MLS1", "2026-09-15", "10:00", "", true).
		Return(&models.ShowingRequest{ID: "sr1", UserID: "buyer1", Status: models.StatusPending}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "submitShowing", handlers.SubmitShowingArgs{
		PropertyAddress: "12 Oak St", MlsID: "MLS1",
		PreferredDate: "2026-09-15", PreferredTime: "10:00", ConsentToContact: true,
	}, buyerToken(t, cfg, "buyer1")))

	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "sr1", data["id"])
	m.showingSvc.AssertExpectations(t)
}

func TestJsonApiHandler_SubmitShowing_IneligibleSlot(t *testing.T) {
	router, cfg, m := setupTestRouter()
	buyer := &models.User{ID: "buyer1", Role: models.RoleBuyer, Tier: models.TierFree}
	m.userSvc.On("FindByID", mock.Anything, "buyer1").Return(buyer, nil)
	m.showingSvc.On("Submit", mock.Anything, buyer, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("requested time slot is not available for this account: %w", services.ErrValidation))

	resp := decodeApiResponse(t, doApiRequest(router, "submitShowing", handlers.SubmitShowingArgs{
		PropertyAddress: "12 Oak St", PreferredDate: "2020-01-01", PreferredTime: "10:00",
	}, buyerToken(t, cfg, "buyer1")))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not available")
}

func TestJsonApiHandler_AssignAgent_RequiresAgentRole(t *testing.T) {
	router, cfg, _ := setupTestRouter()
	resp := decodeApiResponse(t, doApiRequest(router, "assignAgent", "sr1", buyerToken(t, cfg, "buyer1")))
	assert.False(t, resp.Success)
	assert.Equal(t, "Agent role required", resp.Error)
}

func TestJsonApiHandler_AssignAgent_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.userSvc.On("FindByID", mock.Anything, "agent1").
		Return(&models.User{ID: "agent1", Name: "Agent One", Role: models.RoleAgent}, nil)
	m.showingSvc.On("AssignAgent", mock.Anything, "sr1", models.AssignedAgent{AgentID: "agent1", Name: "Agent One"}).
		Return(nil)

	resp := decodeApiResponse(t, doApiRequest(router, "assignAgent", "sr1", agentToken(t, cfg, "agent1")))
	assert.True(t, resp.Success)
	m.showingSvc.AssertExpectations(t)
}

func TestJsonApiHandler_AssignAgent_RaceLoss(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.userSvc.On("FindByID", mock.Anything, "agent2").
		Return(&models.User{ID: "agent2", Name: "Agent Two", Role: models.RoleAgent}, nil)
	m.showingSvc.On("AssignAgent", mock.Anything, "sr1", mock.Anything).
		Return(services.ErrAlreadyAssigned)

	resp := decodeApiResponse(t, doApiRequest(router, "assignAgent", "sr1", agentToken(t, cfg, "agent2")))
	assert.False(t, resp.Success)
	assert.Equal(t, "already_assigned", resp.Error)
}

func TestJsonApiHandler_GetShowing_ForeignUserHidden(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{ID: "sr1", UserID: "buyer1"}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowing", "sr1", buyerToken(t, cfg, "intruder")))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error)
}

func TestJsonApiHandler_CompleteShowing_EnqueuesNotice(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("Complete", mock.Anything, "sr1", "agent1").Return(nil)
	m.showingSvc.On("ClaimCompletionNotice", mock.Anything, "sr1").Return(true, nil)
	m.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeTourCompleted {
			return false
		}
		var p tasks.TourCompletedPayload
		return json.Unmarshal(task.Payload(), &p) == nil && p.ShowingRequestID == "sr1"
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "completeShowing", "sr1", agentToken(t, cfg, "agent1")))
	assert.True(t, resp.Success)
	m.showingSvc.AssertExpectations(t)
	m.taskClient.AssertExpectations(t)
	m.showingSvc.AssertNotCalled(t, "ReleaseCompletionNotice", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_CompleteShowing_AlreadyNotified(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("Complete", mock.Anything, "sr1", "agent1").Return(nil)
	m.showingSvc.On("ClaimCompletionNotice", mock.Anything, "sr1").Return(false, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "completeShowing", "sr1", agentToken(t, cfg, "agent1")))
	assert.True(t, resp.Success)
	m.taskClient.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything, mock.Anything)
}

func TestJsonApiHandler_CompleteShowing_EnqueueFailureReleasesClaim(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("Complete", mock.Anything, "sr1", "agent1").Return(nil)
	m.showingSvc.On("ClaimCompletionNotice", mock.Anything, "sr1").Return(true, nil)
	m.taskClient.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("redis down"))
	m.showingSvc.On("ReleaseCompletionNotice", mock.Anything, "sr1").Return(nil)

	// The tour is completed regardless; the claim is handed back to the sweep.
	resp := decodeApiResponse(t, doApiRequest(router, "completeShowing", "sr1", agentToken(t, cfg, "agent1")))
	assert.True(t, resp.Success)
	m.showingSvc.AssertExpectations(t)
}

func TestJsonApiHandler_CompleteShowing_NotInProgress(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("Complete", mock.Anything, "sr1", "agent1").
		Return(fmt.Errorf("cannot complete: %w", services.ErrInvalidTransition))

	resp := decodeApiResponse(t, doApiRequest(router, "completeShowing", "sr1", agentToken(t, cfg, "agent1")))
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid_transition", resp.Error)
	m.showingSvc.AssertNotCalled(t, "ClaimCompletionNotice", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_RemoveAction_NotReversible(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.actionSvc.On("RemoveAction", mock.Anything, "sr1", "buyer1", models.ActionMadeOffer).
		Return(services.ErrNotReversible)

	resp := decodeApiResponse(t, doApiRequest(router, "removeAction", handlers.RemoveActionArgs{
		ShowingID: "sr1", Type: models.ActionMadeOffer,
	}, buyerToken(t, cfg, "buyer1")))

	assert.False(t, resp.Success)
	assert.Equal(t, "not_reversible", resp.Error)
}

func TestJsonApiHandler_RecordAction_Success(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.actionSvc.On("RecordAction", mock.Anything, "sr1", "buyer1", models.ActionFavorited, (*models.ActionDetails)(nil)).
		Return(nil)

	resp := decodeApiResponse(t, doApiRequest(router, "recordAction", handlers.RecordActionArgs{
		ShowingID: "sr1", Type: models.ActionFavorited,
	}, buyerToken(t, cfg, "buyer1")))

	assert.True(t, resp.Success)
	m.actionSvc.AssertExpectations(t)
}

func TestJsonApiHandler_RecordContactAttempt_EnqueueFailureSwallowed(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeContactAttempt
	}), mock.Anything).Return(nil, fmt.Errorf("redis down"))

	resp := decodeApiResponse(t, doApiRequest(router, "recordContactAttempt", handlers.RecordContactAttemptArgs{
		ShowingID: "sr1", Method: "sms",
	}, buyerToken(t, cfg, "buyer1")))

	// Tap-to-contact must never surface infrastructure failures.
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	m.taskClient.AssertExpectations(t)
}

func TestJsonApiHandler_SendMessage_FrozenConversation(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.messageSvc.On("SendMessage", mock.Anything, "buyer1", "sr1", "", "hello?").
		Return(nil, services.ErrMessagingFrozen)

	resp := decodeApiResponse(t, doApiRequest(router, "sendMessage", handlers.SendMessageArgs{
		ShowingID: "sr1", Content: "hello?",
	}, buyerToken(t, cfg, "buyer1")))

	assert.False(t, resp.Success)
	assert.Equal(t, "messaging_frozen", resp.Error)
}

func TestJsonApiHandler_MarkMessagesRead_ErrorSwallowed(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.messageSvc.On("MarkMessagesAsRead", mock.Anything, "sr1", "buyer1").
		Return(fmt.Errorf("storage down"))

	resp := decodeApiResponse(t, doApiRequest(router, "markMessagesRead", "sr1", buyerToken(t, cfg, "buyer1")))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_GetConversations(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.messageSvc.On("GetConversations", mock.Anything, "buyer1").Return([]models.Conversation{
		{Key: "sr2", UnreadCount: 1},
		{Key: "sr1"},
	}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getConversations", nil, buyerToken(t, cfg, "buyer1")))
	assert.True(t, resp.Success)
	threads, ok := resp.Data.([]interface{})
	assert.True(t, ok)
	assert.Len(t, threads, 2)
}

func TestJsonApiHandler_GetAgreementUploadURL(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{ID: "sr1", UserID: "buyer1"}, nil)
	m.storageSvc.On("GenerateAgreementUploadURL", mock.Anything, "sr1", "signed.pdf", "application/pdf").
		Return("https://s3.example/put", "agreements/sr1/abc_signed.pdf", nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getAgreementUploadURL", handlers.GetAgreementUploadURLArgs{
		ShowingID: "sr1", Filename: "signed.pdf", ContentType: "application/pdf",
	}, buyerToken(t, cfg, "buyer1")))

	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "https://s3.example/put", data["upload_url"])
	assert.Equal(t, "agreements/sr1/abc_signed.pdf", data["object_key"])
}

func TestJsonApiHandler_AddFavorite_IdempotentReturn(t *testing.T) {
	router, cfg, m := setupTestRouter()
	existing := &models.FavoriteProperty{ID: "fav1", BuyerID: "buyer1", PropertyAddress: "12 Oak St"}
	m.favoriteSvc.On("Add", mock.Anything, "buyer1", "12 Oak St", "MLS1", "", "").
		Return(existing, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "addFavorite", handlers.AddFavoriteArgs{
		PropertyAddress: "12 Oak St", MlsID: "MLS1",
	}, buyerToken(t, cfg, "buyer1")))

	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "fav1", data["id"])
}

func TestJsonApiHandler_GetShowingActions(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{ID: "sr1", UserID: "buyer1"}, nil)
	m.actionSvc.On("GetActionsForShowing", mock.Anything, "sr1").
		Return(models.ActionPresence{Favorited: true, MadeOffer: true}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowingActions", "sr1", buyerToken(t, cfg, "buyer1")))
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, true, data["favorited"])
	assert.Equal(t, true, data["made_offer"])
	assert.Equal(t, false, data["hired_agent"])
}

func TestJsonApiHandler_GetShowingActions_ForeignBuyerHidden(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{ID: "sr1", UserID: "buyer1"}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowingActions", "sr1", buyerToken(t, cfg, "intruder")))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error)
	m.actionSvc.AssertNotCalled(t, "GetActionsForShowing", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_GetActionCount_ForeignBuyerHidden(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{ID: "sr1", UserID: "buyer1"}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getActionCount", "sr1", buyerToken(t, cfg, "intruder")))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error)
	m.actionSvc.AssertNotCalled(t, "GetActionCount", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_GetShowingInterest(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{
			ID: "sr1", UserID: "buyer1",
			Agent: &models.AssignedAgent{AgentID: "agent1"},
		}, nil)
	m.actionSvc.On("InterestForShowing", mock.Anything, "sr1").
		Return(services.InterestHigh, 9, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowingInterest", "sr1", agentToken(t, cfg, "agent1")))
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, string(services.InterestHigh), data["level"])
	assert.Equal(t, float64(9), data["score"])
}

func TestJsonApiHandler_GetShowingInterest_BuyerHidden(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{
			ID: "sr1", UserID: "buyer1",
			Agent: &models.AssignedAgent{AgentID: "agent1"},
		}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowingInterest", "sr1", buyerToken(t, cfg, "buyer1")))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error)
	m.actionSvc.AssertNotCalled(t, "InterestForShowing", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_GetShowingInterest_OtherAgentHidden(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "sr1").
		Return(&models.ShowingRequest{
			ID: "sr1", UserID: "buyer1",
			Agent: &models.AssignedAgent{AgentID: "agent1"},
		}, nil)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowingInterest", "sr1", agentToken(t, cfg, "agent2")))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error)
	m.actionSvc.AssertNotCalled(t, "InterestForShowing", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_ExpiredToken(t *testing.T) {
	router, cfg, _ := setupTestRouter()
	expired, err := auth.GenerateJWT("buyer1", models.RoleBuyer, cfg.JwtSecret, -time.Minute)
	assert.NoError(t, err)

	resp := decodeApiResponse(t, doApiRequest(router, "listMyShowings", nil, expired))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Invalid or expired token")
}

func TestJsonApiHandler_GetShowing_NotFound(t *testing.T) {
	router, cfg, m := setupTestRouter()
	m.showingSvc.On("FindByID", mock.Anything, "missing").Return(nil, mongo.ErrNoDocuments)

	resp := decodeApiResponse(t, doApiRequest(router, "getShowing", "missing", buyerToken(t, cfg, "buyer1")))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error)
}
