package notif

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"gorm.io/datatypes"

	"revline/internal/config"
	"revline/internal/dbmysql"
)

type NotificationStore interface {
	Create(ctx context.Context, notification *dbmysql.Notification) error
	ByUserID(ctx context.Context, userID string, limit, offset int) ([]dbmysql.Notification, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// DeviceStore is the subset of the device repository the push path needs.
type DeviceStore interface {
	CreateOrUpdate(ctx context.Context, userID, deviceToken, platform string) error
	ActiveByUserID(ctx context.Context, userID string) ([]dbmysql.Device, error)
	UpdateTokenStatus(ctx context.Context, token string, isActive bool) error
}

// PushClient is satisfied by *messaging.Client.
type PushClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type DatabaseNotificationObserver struct {
	repo NotificationStore
}

func NewDatabaseNotificationObserver(repo NotificationStore) *DatabaseNotificationObserver {
	return &DatabaseNotificationObserver{
		repo: repo,
	}
}

func (d *DatabaseNotificationObserver) Name() string {
	return "database_observer"
}

func (d *DatabaseNotificationObserver) Update(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	notification := &dbmysql.Notification{
		ID:        event.ID,
		UserID:    event.Recipient,
		Type:      string(event.Type()),
		Body:      event.Body,
		Payload:   datatypes.JSON(payload),
		CreatedAt: event.CreatedAt,
	}

	if err := d.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	return nil
}

type FCMNotificationObserver struct {
	fcmClient  PushClient
	deviceRepo DeviceStore
}

func NewFCMNotificationObserver(fcmClient PushClient, deviceRepo DeviceStore) *FCMNotificationObserver {
	return &FCMNotificationObserver{
		fcmClient:  fcmClient,
		deviceRepo: deviceRepo,
	}
}

func (f *FCMNotificationObserver) Name() string {
	return "fcm_observer"
}

func (f *FCMNotificationObserver) Update(ctx context.Context, event Event) error {
	devices, err := f.deviceRepo.ActiveByUserID(ctx, event.Recipient)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}

	if len(devices) == 0 {
		log.Debug().Str("user_id", event.Recipient).Msg("no active devices")
		return nil
	}

	tokens := make([]string, len(devices))
	for i, device := range devices {
		tokens[i] = device.DeviceToken
	}

	fcmMessage := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: event.Title,
			Body:  event.Body,
		},
		Data:   pushData(event),
		Tokens: tokens,
	}

	response, err := f.fcmClient.SendEachForMulticast(ctx, fcmMessage)
	if err != nil {
		return fmt.Errorf("failed to send FCM: %w", err)
	}

	f.handleFailedTokens(ctx, response, tokens)

	log.Debug().
		Str("notification_id", event.ID).
		Int("success", response.SuccessCount).
		Int("failure", response.FailureCount).
		Msg("fcm notification sent")

	return nil
}

func (f *FCMNotificationObserver) handleFailedTokens(
	ctx context.Context,
	response *messaging.BatchResponse,
	tokens []string,
) {
	for i, result := range response.Responses {
		if result.Success || i >= len(tokens) {
			continue
		}
		if !messaging.IsRegistrationTokenNotRegistered(result.Error) &&
			!messaging.IsInvalidArgument(result.Error) {
			continue
		}

		if err := f.deviceRepo.UpdateTokenStatus(ctx, tokens[i], false); err != nil {
			log.Warn().Err(err).Msg("failed to update token status")
			continue
		}
		log.Info().Str("device_token", tokens[i]).Msg("marked invalid token as inactive")
	}
}

// NewFCMClient builds the Firebase messaging client, or returns nil when push is disabled.
func NewFCMClient(ctx context.Context, cfg config.FirebaseConfig) (*messaging.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFilePath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFilePath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return client, nil
}
