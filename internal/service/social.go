package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// ListLimit bounds the replies and direct message lists.
const ListLimit = 50

// SocialService covers the read side of the social graph and profiles:
// followers, follows, friends, replies and direct message boxes.
type SocialService struct {
	store    repository.Store
	validate *validator.Validate
	logger   logrus.FieldLogger
}

func NewSocialService(store repository.Store, logger logrus.FieldLogger) *SocialService {
	return &SocialService{store: store, validate: newValidator(), logger: logger}
}

// Profile returns the user with the given nickname.
func (s *SocialService) Profile(ctx context.Context, nickname string) (*model.User, error) {
	u, err := s.store.GetUserByNickname(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("service/social: profile %q: %w", nickname, err)
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of upd to the user's profile.
func (s *SocialService) UpdateProfile(ctx context.Context, userID string, upd model.ProfileUpdate) (*model.User, error) {
	if err := validateStruct(s.validate, upd); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/social: loading user %s: %w", userID, err)
	}

	if upd.Email != nil {
		user.Email = *upd.Email
	}
	if upd.FormattedName != nil {
		user.FormattedName = *upd.FormattedName
	}
	if upd.PhotoURL != nil {
		user.PhotoURL = *upd.PhotoURL
	}
	if upd.Location != nil {
		user.Location = *upd.Location
	}
	if upd.Description != nil {
		user.Description = *upd.Description
	}
	if user.PhotoURL == "" && user.Email != "" {
		user.PhotoURL = gravatarURL(user.Email)
	}

	if err := s.store.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("service/social: saving profile %s: %w", userID, err)
	}

	s.logger.WithField("userID", userID).Info("profile updated")
	return user, nil
}

// Unfollow removes current's follow edge to nickname. Removing an edge that
// does not exist is not an error.
func (s *SocialService) Unfollow(ctx context.Context, current *model.User, nickname string) (*model.User, error) {
	target, err := s.store.GetUserByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.TargetNotFound(nickname)
		}
		return nil, fmt.Errorf("service/social: resolving %q: %w", nickname, err)
	}

	if err := s.store.DeleteFollow(ctx, current.ID, target.ID); err != nil {
		return nil, fmt.Errorf("service/social: unfollowing %q: %w", nickname, err)
	}

	s.logger.WithFields(logrus.Fields{"followerID": current.ID, "unfollowed": nickname}).Info("follow removed")
	return target, nil
}

// Followers lists who follows the user, by nickname.
func (s *SocialService) Followers(ctx context.Context, user *model.User) ([]model.User, error) {
	users, err := s.store.ListFollowers(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/social: followers of %s: %w", user.ID, err)
	}
	return users, nil
}

// Follows lists whom the user follows, by nickname.
func (s *SocialService) Follows(ctx context.Context, user *model.User) ([]model.User, error) {
	users, err := s.store.ListFollowed(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/social: follows of %s: %w", user.ID, err)
	}
	return users, nil
}

// Friends are the users who follow user and are followed back.
func (s *SocialService) Friends(ctx context.Context, user *model.User) ([]model.User, error) {
	followers, err := s.Followers(ctx, user)
	if err != nil {
		return nil, err
	}
	follows, err := s.Follows(ctx, user)
	if err != nil {
		return nil, err
	}

	followed := make(map[string]bool, len(follows))
	for _, u := range follows {
		followed[u.ID] = true
	}

	friends := make([]model.User, 0)
	for _, u := range followers {
		if followed[u.ID] {
			friends = append(friends, u)
		}
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Nickname < friends[j].Nickname })
	return friends, nil
}

// IsFollowing reports whether follower follows followed.
func (s *SocialService) IsFollowing(ctx context.Context, follower, followed *model.User) (bool, error) {
	ok, err := s.store.IsFollowing(ctx, follower.ID, followed.ID)
	if err != nil {
		return false, fmt.Errorf("service/social: checking follow: %w", err)
	}
	return ok, nil
}

// Replies are the statuses that mention the user, newest first.
func (s *SocialService) Replies(ctx context.Context, user *model.User) ([]model.Status, error) {
	statuses, err := s.store.ListMentioning(ctx, user.ID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("service/social: replies to %s: %w", user.ID, err)
	}
	return statuses, nil
}

// Messages lists the user's received or sent direct messages, newest first.
func (s *SocialService) Messages(ctx context.Context, user *model.User, dir repository.Direction) ([]model.Status, error) {
	statuses, err := s.store.ListDirect(ctx, user.ID, dir, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("service/social: messages of %s: %w", user.ID, err)
	}
	return statuses, nil
}

// MessageCount is the number of direct messages sent plus received.
func (s *SocialService) MessageCount(ctx context.Context, user *model.User) (int, error) {
	n, err := s.store.CountDirect(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("service/social: counting messages of %s: %w", user.ID, err)
	}
	return n, nil
}
