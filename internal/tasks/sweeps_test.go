package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"hometour/portal/internal/config"
	"hometour/portal/internal/models"
	"hometour/portal/internal/services"
)

// sweepShowingService stubs only the methods the sweeps touch; any other
// call on the embedded interface panics, which is what we want in a test.
type sweepShowingService struct {
	services.IShowingService
	mock.Mock
}

func (m *sweepShowingService) ListUnnotifiedCompleted(ctx context.Context, limit int64) ([]models.ShowingRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

func (m *sweepShowingService) ClaimCompletionNotice(ctx context.Context, showingID string) (bool, error) {
	args := m.Called(ctx, showingID)
	return args.Bool(0), args.Error(1)
}

func (m *sweepShowingService) ReleaseCompletionNotice(ctx context.Context, showingID string) error {
	args := m.Called(ctx, showingID)
	return args.Error(0)
}

func (m *sweepShowingService) ListAwaitingConfirmationSince(ctx context.Context, cutoff time.Time) ([]models.ShowingRequest, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ShowingRequest), args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func newSweepProcessor(showings *sweepShowingService, enq *mockEnqueuer) *TaskProcessor {
	return NewTaskProcessor(
		&config.Config{AppName: "TestApp"},
		nil, nil, showings, nil, nil, nil, enq,
	)
}

func TestRunCompletionSweep_RecoversUnclaimedShowings(t *testing.T) {
	showings := new(sweepShowingService)
	enq := new(mockEnqueuer)

	showings.On("ListUnnotifiedCompleted", mock.Anything, int64(completionSweepBatch)).
		Return([]models.ShowingRequest{{ID: "s1"}, {ID: "s2"}}, nil)
	showings.On("ClaimCompletionNotice", mock.Anything, "s1").Return(true, nil)
	showings.On("ClaimCompletionNotice", mock.Anything, "s2").Return(false, nil)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != TypeTourCompleted {
			return false
		}
		var p TourCompletedPayload
		return json.Unmarshal(task.Payload(), &p) == nil && p.ShowingRequestID == "s1"
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil).Once()

	newSweepProcessor(showings, enq).RunCompletionSweep(context.Background())

	showings.AssertExpectations(t)
	enq.AssertExpectations(t)
	// The showing whose claim lost stays untouched.
	showings.AssertNotCalled(t, "ReleaseCompletionNotice", mock.Anything, "s2")
}

func TestRunCompletionSweep_EnqueueFailureReleasesClaim(t *testing.T) {
	showings := new(sweepShowingService)
	enq := new(mockEnqueuer)

	showings.On("ListUnnotifiedCompleted", mock.Anything, mock.Anything).
		Return([]models.ShowingRequest{{ID: "s1"}}, nil)
	showings.On("ClaimCompletionNotice", mock.Anything, "s1").Return(true, nil)
	enq.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("redis down"))
	showings.On("ReleaseCompletionNotice", mock.Anything, "s1").Return(nil)

	newSweepProcessor(showings, enq).RunCompletionSweep(context.Background())

	showings.AssertExpectations(t)
}

func TestRunCompletionSweep_QueryFailureIsQuiet(t *testing.T) {
	showings := new(sweepShowingService)
	enq := new(mockEnqueuer)

	showings.On("ListUnnotifiedCompleted", mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout"))

	newSweepProcessor(showings, enq).RunCompletionSweep(context.Background())

	enq.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunConfirmationReminderSweep_SkipsBuyersWithoutEmail(t *testing.T) {
	showings := new(sweepShowingService)
	enq := new(mockEnqueuer)

	showings.On("ListAwaitingConfirmationSince", mock.Anything, mock.Anything).
		Return([]models.ShowingRequest{
			{ID: "s1", UserID: "u1", PropertyAddress: "12 Oak St"},
			{ID: "s2", UserID: "u2", PropertyAddress: "9 Elm Ave"},
		}, nil)
	enq.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != TypeEmailDelivery {
			return false
		}
		var p EmailTaskPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return false
		}
		return p.To == "u1@example.com"
	}), mock.Anything).Return(&asynq.TaskInfo{}, nil).Once()

	findBuyerEmail := func(ctx context.Context, userID string) (string, error) {
		if userID == "u1" {
			return "u1@example.com", nil
		}
		return "", errors.New("not found")
	}

	newSweepProcessor(showings, enq).RunConfirmationReminderSweep(context.Background(), findBuyerEmail)

	enq.AssertExpectations(t)
	enq.AssertNumberOfCalls(t, "EnqueueContext", 1)
}
