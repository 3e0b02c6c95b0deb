package notif

import (
	"context"
	"sync"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/mock"

	"revline/internal/dbmysql"
	"revline/internal/queue"
)

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *dbmysql.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *MockNotificationRepository) ByUserID(ctx context.Context, userID string, limit, offset int) ([]dbmysql.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]dbmysql.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkAsRead(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockNotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) CreateOrUpdate(ctx context.Context, userID, deviceToken, platform string) error {
	args := m.Called(ctx, userID, deviceToken, platform)
	return args.Error(0)
}

func (m *MockDeviceRepository) ActiveByUserID(ctx context.Context, userID string) ([]dbmysql.Device, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]dbmysql.Device), args.Error(1)
}

func (m *MockDeviceRepository) UpdateTokenStatus(ctx context.Context, token string, isActive bool) error {
	args := m.Called(ctx, token, isActive)
	return args.Error(0)
}

type MockFCMClient struct {
	mock.Mock
}

func (m *MockFCMClient) SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, message)
	if resp := args.Get(0); resp != nil {
		return resp.(*messaging.BatchResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockQueueClient struct {
	mock.Mock
}

func (m *MockQueueClient) Enqueue(ctx context.Context, t queue.Task, opts ...queue.EnqueueOption) (string, error) {
	args := m.Called(ctx, t, opts)
	return args.String(0), args.Error(1)
}

func (m *MockQueueClient) Close() error {
	return m.Called().Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingObserver captures every event it receives and fails with err when set.
type recordingObserver struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Name() string { return o.name }

func (o *recordingObserver) Update(_ context.Context, event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return o.err
}

func (o *recordingObserver) received() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}
