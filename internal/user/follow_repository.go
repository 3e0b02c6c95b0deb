package user

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"revline/internal/common"
	"revline/internal/dbmysql"
)

type FollowRepository interface {
	// Create reports whether a new edge was written.
	Create(ctx context.Context, followerID, followeeID string) (bool, error)
	Delete(ctx context.Context, followerID, followeeID string) error
	Followers(ctx context.Context, userID string) ([]string, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, followerID, followeeID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&dbmysql.UserFollow{FollowerID: followerID, FolloweeID: followeeID})
	if result.Error != nil {
		return false, common.Backend("failed to follow user", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followeeID string) error {
	err := r.db.WithContext(ctx).
		Delete(&dbmysql.UserFollow{}, "follower_id = ? AND followee_id = ?", followerID, followeeID).Error
	if err != nil {
		return common.Backend("failed to unfollow user", err)
	}
	return nil
}

func (r *followRepository) Followers(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&dbmysql.UserFollow{}).
		Where("followee_id = ?", userID).
		Order("created_at DESC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, common.Backend("failed to list followers", err)
	}
	return ids, nil
}
