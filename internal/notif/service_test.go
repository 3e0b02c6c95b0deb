package notif

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

func newTestService() (*NotificationService, *MockDispatcher, *MockNotificationRepository, *MockDeviceRepository) {
	dispatcher := new(MockDispatcher)
	repo := new(MockNotificationRepository)
	devices := new(MockDeviceRepository)
	svc := NewNotificationService(dispatcher, repo, devices)
	svc.now = func() time.Time { return time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC) }
	return svc, dispatcher, repo, devices
}

func TestNotificationService_SendFollowNotification(t *testing.T) {
	svc, dispatcher, _, _ := newTestService()

	dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(e Event) bool {
		p, ok := e.Payload.(FollowPayload)
		return ok && e.Recipient == "u2" && e.ID != "" &&
			p.FollowerID == "u1" && e.Body == "ana started following you"
	})).Return(nil)

	require.NoError(t, svc.SendFollowNotification(context.Background(), "u1", "ana", "u2"))
	dispatcher.AssertExpectations(t)
}

func TestNotificationService_SendValidation(t *testing.T) {
	svc, dispatcher, _, _ := newTestService()

	_, err := svc.Send(context.Background(), "", "t", "b", FollowPayload{})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = svc.Send(context.Background(), "u2", "t", "b", nil)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	err = svc.SendRatingNotification(context.Background(), "u2", RatingPayload{Score: 9})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestNotificationService_SendCommentNotificationTruncatesExcerpt(t *testing.T) {
	svc, dispatcher, _, _ := newTestService()

	dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(e Event) bool {
		p := e.Payload.(CommentPayload)
		return len([]rune(p.Excerpt)) == previewLength+1 && strings.HasSuffix(p.Excerpt, "…")
	})).Return(nil)

	err := svc.SendCommentNotification(context.Background(), "u2", CommentPayload{
		PostID:        "p1",
		CommenterName: "bo",
		Excerpt:       strings.Repeat("x", 200),
	})
	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestNotificationService_SendChatNotification(t *testing.T) {
	svc, dispatcher, _, _ := newTestService()

	dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(e Event) bool { return e.Recipient == "u2" })).
		Return(errors.New("queue down"))
	dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(e Event) bool { return e.Recipient == "u3" })).
		Return(nil)

	svc.SendChatNotification(context.Background(), []string{"u1", "u2", "u3"}, ChatPayload{
		ConversationID: "c1",
		MessageID:      "m1",
		SenderID:       "u1",
		SenderName:     "ana",
	})

	dispatcher.AssertNumberOfCalls(t, "Dispatch", 2)
	for _, call := range dispatcher.Calls {
		e := call.Arguments.Get(1).(Event)
		assert.NotEqual(t, "u1", e.Recipient)
		assert.Equal(t, "sent an attachment", e.Body)
	}
}

func TestNotificationService_ListNotifications(t *testing.T) {
	svc, _, repo, _ := newTestService()

	repo.On("ByUserID", mock.Anything, "u2", 20, 0).Return([]dbmysql.Notification{
		{ID: "n1", Type: "follow", Payload: datatypes.JSON(`{"follower_id":"u1"}`), IsRead: true},
		{ID: "n2", Type: "poke", Payload: datatypes.JSON(`{}`)},
	}, nil)

	got, err := svc.ListNotifications(context.Background(), "u2", 0, -3)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
	assert.True(t, got[0].Read)
	assert.Equal(t, FollowPayload{FollowerID: "u1"}, got[0].Payload)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	svc, _, repo, _ := newTestService()

	assert.ErrorIs(t, svc.MarkAsRead(context.Background(), "", "u2"), common.ErrInvalidArgument)

	repo.On("MarkAsRead", mock.Anything, "n1", "u2").Return(nil)
	assert.NoError(t, svc.MarkAsRead(context.Background(), "n1", "u2"))
}

func TestNotificationService_RegisterDeviceToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		platform string
		wantErr  error
	}{
		{name: "normalizes platform", token: " tok ", platform: "IOS"},
		{name: "empty token", token: "  ", platform: "ios", wantErr: common.ErrInvalidArgument},
		{name: "unknown platform", token: "tok", platform: "symbian", wantErr: common.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, devices := newTestService()
			devices.On("CreateOrUpdate", mock.Anything, "u1", "tok", "ios").Return(nil)

			err := svc.RegisterDeviceToken(context.Background(), "u1", tt.token, tt.platform)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				devices.AssertNotCalled(t, "CreateOrUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			assert.NoError(t, err)
			devices.AssertExpectations(t)
		})
	}
}
