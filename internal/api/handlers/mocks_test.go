package handlers_test

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"hometour/portal/internal/models"
	"hometour/portal/internal/services"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password, phone string, role models.UserRole) (*models.User, error) {
	args := m.Called(ctx, name, email, password, phone, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetTier(ctx context.Context, userID string, tier models.BuyerTier) error {
	args := m.Called(ctx, userID, tier)
	return args.Error(0)
}

// MockShowingService
type MockShowingService struct {
	mock.Mock
}

func (m *MockShowingService) Submit(ctx context.Context, buyer *models.User, propertyAddress, mlsID, preferredDate, preferredTime, message string, consentToContact bool) (*models.ShowingRequest, error) {
	args := m.Called(ctx, buyer, propertyAddress, mlsID, preferredDate, preferredTime, message, consentToContact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShowingRequest), args.Error(1)
}

func (m *MockShowingService) FindByID(ctx context.Context, showingID string) (*models.ShowingRequest, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShowingRequest), args.Error(1)
}

func (m *MockShowingService) ListForBuyer(ctx context.Context, buyerID string) ([]models.ShowingRequest, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

func (m *MockShowingService) ListForAgent(ctx context.Context, agentID string) ([]models.ShowingRequest, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

func (m *MockShowingService) ListAssignable(ctx context.Context) ([]models.ShowingRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

func (m *MockShowingService) AssignAgent(ctx context.Context, showingID string, agent models.AssignedAgent) error {
	args := m.Called(ctx, showingID, agent)
	return args.Error(0)
}

func (m *MockShowingService) AgentConfirm(ctx context.Context, showingID, agentID string) error {
	args := m.Called(ctx, showingID, agentID)
	return args.Error(0)
}

func (m *MockShowingService) SignAgreement(ctx context.Context, showingID, buyerID, signerName, documentKey string) error {
	args := m.Called(ctx, showingID, buyerID, signerName, documentKey)
	return args.Error(0)
}

func (m *MockShowingService) BuyerConfirm(ctx context.Context, showingID, buyerID string) error {
	args := m.Called(ctx, showingID, buyerID)
	return args.Error(0)
}

func (m *MockShowingService) Cancel(ctx context.Context, showingID, userID string) error {
	args := m.Called(ctx, showingID, userID)
	return args.Error(0)
}

func (m *MockShowingService) Reschedule(ctx context.Context, showing *models.ShowingRequest, buyer *models.User, newDate, newTime, reason string) error {
	args := m.Called(ctx, showing, buyer, newDate, newTime, reason)
	return args.Error(0)
}

func (m *MockShowingService) Complete(ctx context.Context, showingID, agentID string) error {
	args := m.Called(ctx, showingID, agentID)
	return args.Error(0)
}

func (m *MockShowingService) FindAgreement(ctx context.Context, showingID string) (*models.TourAgreement, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TourAgreement), args.Error(1)
}

func (m *MockShowingService) ClaimCompletionNotice(ctx context.Context, showingID string) (bool, error) {
	args := m.Called(ctx, showingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockShowingService) ReleaseCompletionNotice(ctx context.Context, showingID string) error {
	args := m.Called(ctx, showingID)
	return args.Error(0)
}

func (m *MockShowingService) ListUnnotifiedCompleted(ctx context.Context, limit int64) ([]models.ShowingRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

func (m *MockShowingService) ListAwaitingConfirmationSince(ctx context.Context, cutoff time.Time) ([]models.ShowingRequest, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

// MockActionService
type MockActionService struct {
	mock.Mock
}

func (m *MockActionService) RecordAction(ctx context.Context, showingID, buyerID string, actionType models.PostShowingActionType, details *models.ActionDetails) error {
	args := m.Called(ctx, showingID, buyerID, actionType, details)
	return args.Error(0)
}

func (m *MockActionService) RemoveAction(ctx context.Context, showingID, buyerID string, actionType models.PostShowingActionType) error {
	args := m.Called(ctx, showingID, buyerID, actionType)
	return args.Error(0)
}

func (m *MockActionService) GetActionsForShowing(ctx context.Context, showingID string) (models.ActionPresence, error) {
	args := m.Called(ctx, showingID)
	return args.Get(0).(models.ActionPresence), args.Error(1)
}

func (m *MockActionService) GetActionCount(ctx context.Context, showingID string) (int, error) {
	args := m.Called(ctx, showingID)
	return args.Int(0), args.Error(1)
}

func (m *MockActionService) RecordContactAttempt(ctx context.Context, showingID, buyerID, method string, details *models.ActionDetails) {
	m.Called(ctx, showingID, buyerID, method, details)
}

func (m *MockActionService) InterestForShowing(ctx context.Context, showingID string) (services.InterestLevel, int, error) {
	args := m.Called(ctx, showingID)
	return args.Get(0).(services.InterestLevel), args.Int(1), args.Error(2)
}

// MockFavoriteService
type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) Add(ctx context.Context, buyerID, propertyAddress, mlsID, notes, showingRequestID string) (*models.FavoriteProperty, error) {
	args := m.Called(ctx, buyerID, propertyAddress, mlsID, notes, showingRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FavoriteProperty), args.Error(1)
}

func (m *MockFavoriteService) Remove(ctx context.Context, buyerID, favoriteID string) error {
	args := m.Called(ctx, buyerID, favoriteID)
	return args.Error(0)
}

func (m *MockFavoriteService) RemoveForShowing(ctx context.Context, buyerID, showingRequestID string) error {
	args := m.Called(ctx, buyerID, showingRequestID)
	return args.Error(0)
}

func (m *MockFavoriteService) UpdateNotes(ctx context.Context, buyerID, favoriteID, notes string) error {
	args := m.Called(ctx, buyerID, favoriteID, notes)
	return args.Error(0)
}

func (m *MockFavoriteService) ListForBuyer(ctx context.Context, buyerID string) ([]models.FavoriteProperty, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FavoriteProperty), args.Error(1)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) SendMessage(ctx context.Context, senderID, showingID, receiverID, content string) (*models.Message, error) {
	args := m.Called(ctx, senderID, showingID, receiverID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) GetConversations(ctx context.Context, viewerID string) ([]models.Conversation, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockMessageService) MarkMessagesAsRead(ctx context.Context, showingID, viewerID string) error {
	args := m.Called(ctx, showingID, viewerID)
	return args.Error(0)
}

func (m *MockMessageService) UnreadCount(ctx context.Context, viewerID string) (int, error) {
	args := m.Called(ctx, viewerID)
	return args.Int(0), args.Error(1)
}

// MockPropertyService
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) Lookup(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error) {
	args := m.Called(ctx, address, mlsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PropertyRecord), args.Error(1)
}

func (m *MockPropertyService) Search(ctx context.Context, query string, limit int64) ([]models.PropertyRecord, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PropertyRecord), args.Error(1)
}

func (m *MockPropertyService) Refresh(ctx context.Context, address, mlsID string) (*models.PropertyRecord, error) {
	args := m.Called(ctx, address, mlsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PropertyRecord), args.Error(1)
}

func (m *MockPropertyService) AddImageKey(ctx context.Context, recordID, imageKey string) error {
	args := m.Called(ctx, recordID, imageKey)
	return args.Error(0)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GenerateAgreementUploadURL(ctx context.Context, showingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, showingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) GenerateDownloadURL(ctx context.Context, objectKey string) (string, error) {
	args := m.Called(ctx, objectKey)
	return args.String(0), args.Error(1)
}

func (m *MockS3Storage) PropertyImageKey(propertyID, sourceURL string) string {
	args := m.Called(propertyID, sourceURL)
	return args.String(0)
}

func (m *MockS3Storage) Client() *s3.Client {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*s3.Client)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
