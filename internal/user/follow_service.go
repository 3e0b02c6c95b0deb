package user

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"revline/internal/common"
)

// FollowNotifier delivers the follow notification. Implemented by notif.NotificationService.
type FollowNotifier interface {
	SendFollowNotification(ctx context.Context, followerID, followerName, followeeID string) error
}

type FollowService interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	Followers(ctx context.Context, userID string) ([]string, error)
}

type followService struct {
	follows  FollowRepository
	profiles ProfileRepository
	notifier FollowNotifier
}

func NewFollowService(follows FollowRepository, profiles ProfileRepository, notifier FollowNotifier) FollowService {
	return &followService{follows: follows, profiles: profiles, notifier: notifier}
}

func (s *followService) Follow(ctx context.Context, followerID, followeeID string) error {
	if strings.TrimSpace(followeeID) == "" {
		return common.Invalid("followee id is required")
	}
	if followerID == followeeID {
		return common.Invalid("cannot follow yourself")
	}

	if _, err := s.profiles.ByID(ctx, followeeID); err != nil {
		return err
	}

	created, err := s.follows.Create(ctx, followerID, followeeID)
	if err != nil {
		log.Error().Err(err).Str("follower_id", followerID).Str("followee_id", followeeID).Msg("follow failed")
		return err
	}
	if !created || s.notifier == nil {
		return nil
	}

	followerName := followerID
	if profile, err := s.profiles.ByID(ctx, followerID); err == nil && profile.DisplayName != "" {
		followerName = profile.DisplayName
	}

	// Notification delivery is a side effect of the follow and never fails it.
	if err := s.notifier.SendFollowNotification(ctx, followerID, followerName, followeeID); err != nil {
		log.Warn().Err(err).Str("followee_id", followeeID).Msg("follow notification dispatch failed")
	}
	return nil
}

func (s *followService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if strings.TrimSpace(followeeID) == "" {
		return common.Invalid("followee id is required")
	}
	return s.follows.Delete(ctx, followerID, followeeID)
}

func (s *followService) Followers(ctx context.Context, userID string) ([]string, error) {
	return s.follows.Followers(ctx, userID)
}
