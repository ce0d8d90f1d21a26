package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

const (
	// PerSourceLimit caps how many statuses are read from each author.
	PerSourceLimit = 10
	// TimelineSize is the length of an assembled timeline.
	TimelineSize = 11
	// PublicTimelineSize is the length of the everyone timeline.
	PublicTimelineSize = 20
)

type TimelineService struct {
	statuses repository.StatusRepository
	follows  repository.FollowRepository
	logger   logrus.FieldLogger
}

func NewTimelineService(statuses repository.StatusRepository, follows repository.FollowRepository, logger logrus.FieldLogger) *TimelineService {
	return &TimelineService{statuses: statuses, follows: follows, logger: logger}
}

// Assemble builds the timeline shown on subject's page to viewer (nil for
// anonymous visitors), newest first, at most TimelineSize entries.
//
// Only public statuses are included. On a user's own page the statuses of
// everyone they follow are merged in. Each author contributes at most
// PerSourceLimit statuses before the merge, so the result is the top
// entries of those per-author pages rather than a global top-N.
func (s *TimelineService) Assemble(ctx context.Context, viewer, subject *model.User) ([]model.Status, error) {
	if subject == nil {
		return nil, apperror.ValidationFailed("subject", "timeline subject is required")
	}

	opts := repository.ListStatusOptions{ExcludeDirect: true, Limit: PerSourceLimit}

	merged, err := s.statuses.ListOwnStatuses(ctx, subject.ID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/timeline: listing statuses of %s: %w", subject.ID, err)
	}

	if viewer != nil && viewer.ID == subject.ID {
		followed, err := s.follows.ListFollowed(ctx, viewer.ID)
		if err != nil {
			return nil, fmt.Errorf("service/timeline: listing followed of %s: %w", viewer.ID, err)
		}
		for _, u := range followed {
			if u.ID == viewer.ID {
				continue
			}
			theirs, err := s.statuses.ListOwnStatuses(ctx, u.ID, opts)
			if err != nil {
				return nil, fmt.Errorf("service/timeline: listing statuses of %s: %w", u.ID, err)
			}
			merged = append(merged, theirs...)
		}
	}

	sortNewestFirst(merged)
	if len(merged) > TimelineSize {
		merged = merged[:TimelineSize]
	}

	s.logger.WithFields(logrus.Fields{
		"subjectID": subject.ID,
		"entries":   len(merged),
	}).Debug("timeline assembled")
	return merged, nil
}

// Public returns the newest public statuses of all users.
func (s *TimelineService) Public(ctx context.Context) ([]model.Status, error) {
	statuses, err := s.statuses.ListPublic(ctx, PublicTimelineSize)
	if err != nil {
		return nil, fmt.Errorf("service/timeline: listing public statuses: %w", err)
	}
	return statuses, nil
}

// sortNewestFirst orders by CreatedAt descending; equal timestamps fall back
// to ID descending so the order is stable across calls.
func sortNewestFirst(statuses []model.Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i], statuses[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
