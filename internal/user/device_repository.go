package user

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

type DeviceRepository interface {
	CreateOrUpdate(ctx context.Context, userID, deviceToken, platform string) error
	ActiveByUserID(ctx context.Context, userID string) ([]dbmysql.Device, error)
	UpdateTokenStatus(ctx context.Context, token string, isActive bool) error
	DeleteToken(ctx context.Context, token string) error
}

type DeviceRepo struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &DeviceRepo{db: db}
}

// CreateOrUpdate registers a push token, moving it to userID if another account held it.
func (r *DeviceRepo) CreateOrUpdate(
	ctx context.Context,
	userID, deviceToken, platform string,
) error {
	now := time.Now().UTC()
	device := &dbmysql.Device{
		DeviceToken:  deviceToken,
		UserID:       userID,
		Platform:     platform,
		Active:       true,
		RegisteredAt: now,
		LastActive:   now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "active", "last_active"}),
	}).Create(device).Error
	if err != nil {
		return common.Backend("failed to create/update device", err)
	}

	return nil
}

func (r *DeviceRepo) ActiveByUserID(
	ctx context.Context,
	userID string,
) ([]dbmysql.Device, error) {
	var devices []dbmysql.Device

	cutoffTime := time.Now().AddDate(0, 0, -30)

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND last_active > ?", userID, true, cutoffTime).
		Order("last_active DESC").
		Find(&devices).Error
	if err != nil {
		return nil, common.Backend("failed to get active devices", err)
	}

	return devices, nil
}

func (r *DeviceRepo) UpdateTokenStatus(
	ctx context.Context,
	token string,
	isActive bool,
) error {
	updates := map[string]interface{}{
		"active": isActive,
	}
	if isActive {
		updates["last_active"] = time.Now().UTC()
	}

	result := r.db.WithContext(ctx).
		Model(&dbmysql.Device{}).
		Where("device_token = ?", token).
		Updates(updates)

	if result.Error != nil {
		return common.Backend("failed to update token status", result.Error)
	}

	return nil
}

func (r *DeviceRepo) DeleteToken(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).Delete(&dbmysql.Device{}, "device_token = ?", token)

	if result.Error != nil {
		return common.Backend("failed to delete device token", result.Error)
	}

	return nil
}
