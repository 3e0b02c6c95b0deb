package user

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

// ProfileRepository reads the public profile fields other users may see.
type ProfileRepository interface {
	ByID(ctx context.Context, userID string) (*dbmysql.UserProfile, error)
	ByIDs(ctx context.Context, userIDs []string) (map[string]dbmysql.UserProfile, error)
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByID(ctx context.Context, userID string) (*dbmysql.UserProfile, error) {
	var profile dbmysql.UserProfile
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NotFound("user", userID)
	}
	if err != nil {
		return nil, common.Backend("failed to get profile", err)
	}
	return &profile, nil
}

func (r *profileRepository) ByIDs(ctx context.Context, userIDs []string) (map[string]dbmysql.UserProfile, error) {
	profiles := make(map[string]dbmysql.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	var rows []dbmysql.UserProfile
	if err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, common.Backend("failed to get profiles", err)
	}
	for _, p := range rows {
		profiles[p.ID] = p
	}
	return profiles, nil
}
