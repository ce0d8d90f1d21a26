// Package service holds the business logic between HTTP handlers and the
// store:
//
//	Handler (HTTP) → StatusService   → annotate.Annotator → Shortener
//	                                 ↘ repository.Store (one transaction per submission)
//	               → TimelineService → repository.StatusRepository / FollowRepository
//	               → SocialService, AuthService
//
// Services never see HTTP types, and handlers never see SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/annotate"
	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/metrics"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// Outcome reports what a submission turned into. Status is nil for a
// follow command; Target is the resolved recipient or followed user.
type Outcome struct {
	Kind   Kind          `json:"kind"`
	Status *model.Status `json:"status,omitempty"`
	Target *model.User   `json:"target,omitempty"`
}

type bodyInput struct {
	Text string `json:"text" validate:"required,max=140"`
}

// StatusService classifies submitted text and records its effects.
type StatusService struct {
	store     repository.Store
	annotator *annotate.Annotator
	validate  *validator.Validate
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewStatusService(store repository.Store, annotator *annotate.Annotator, logger logrus.FieldLogger) *StatusService {
	return &StatusService{
		store:     store,
		annotator: annotator,
		validate:  newValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

// ClassifyAndPersist interprets raw text submitted by current and applies it.
//
//   - Post: annotate, then persist the status and its mention edges together.
//   - DirectMessage: resolve the recipient (ErrRecipientNotFound), then as Post.
//   - Follow: resolve the target (ErrTargetNotFound) and record the edge.
//     No status is stored.
//
// Either everything the submission implies is written or nothing is.
func (s *StatusService) ClassifyAndPersist(ctx context.Context, current *model.User, raw string) (*Outcome, error) {
	if current == nil {
		return nil, apperror.Unauthorized("sign in to post")
	}

	cmd := Classify(raw)
	log := s.logger.WithFields(logrus.Fields{"userID": current.ID, "kind": cmd.Kind.String()})

	switch cmd.Kind {
	case KindFollow:
		target, err := s.Follow(ctx, current, cmd.Handle)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: KindFollow, Target: target}, nil

	case KindDirectMessage:
		recipient, err := s.findUser(ctx, cmd.Handle)
		if err != nil {
			return nil, err
		}
		if recipient == nil {
			return nil, apperror.RecipientNotFound(cmd.Handle)
		}
		status, err := s.persist(ctx, current, recipient, cmd.Body)
		if err != nil {
			log.WithError(err).Warn("direct message rejected")
			return nil, err
		}
		return &Outcome{Kind: KindDirectMessage, Status: status, Target: recipient}, nil

	default:
		status, err := s.persist(ctx, current, nil, cmd.Body)
		if err != nil {
			log.WithError(err).Warn("status rejected")
			return nil, err
		}
		return &Outcome{Kind: KindPost, Status: status}, nil
	}
}

// SendDirectMessage sends text to the user named recipientHandle. It is the
// structured equivalent of submitting "D <handle> <text>".
func (s *StatusService) SendDirectMessage(ctx context.Context, current *model.User, recipientHandle, text string) (*Outcome, error) {
	if current == nil {
		return nil, apperror.Unauthorized("sign in to send messages")
	}
	recipient, err := s.findUser(ctx, recipientHandle)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperror.RecipientNotFound(recipientHandle)
	}
	status, err := s.persist(ctx, current, recipient, text)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: KindDirectMessage, Status: status, Target: recipient}, nil
}

// Follow makes current follow the user named handle. Following someone
// twice is not an error; following yourself is.
func (s *StatusService) Follow(ctx context.Context, current *model.User, handle string) (*model.User, error) {
	target, err := s.findUser(ctx, handle)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperror.TargetNotFound(handle)
	}
	if target.ID == current.ID {
		return nil, apperror.ValidationFailed("text", "you cannot follow yourself")
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.CreateFollow(ctx, current.ID, target.ID)
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"followerID": current.ID,
			"followedID": target.ID,
		}).Error("recording follow failed")
		return nil, fmt.Errorf("service/status: following %s: %w", handle, err)
	}

	metrics.RecordStatus(KindFollow.String())
	s.logger.WithFields(logrus.Fields{"followerID": current.ID, "followed": target.Nickname}).Info("follow recorded")
	return target, nil
}

// persist runs the write pipeline: validate, annotate, then in one
// transaction store the status and one mention edge per mentioned user.
func (s *StatusService) persist(ctx context.Context, owner, recipient *model.User, body string) (*model.Status, error) {
	if err := validateStruct(s.validate, bodyInput{Text: body}); err != nil {
		return nil, err
	}

	annotated, err := s.annotator.Annotate(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("service/status: annotating: %w", err)
	}

	status := &model.Status{
		OwnerID:   owner.ID,
		Text:      annotated.Text,
		CreatedAt: s.now(),
	}
	kind := KindPost
	if recipient != nil {
		status.RecipientID = recipient.ID
		kind = KindDirectMessage
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateStatus(ctx, status); err != nil {
			return err
		}
		for _, u := range annotated.Mentions {
			if err := tx.CreateMention(ctx, u.ID, status.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		status.ID = ""
		if !errors.Is(err, apperror.ErrValidation) {
			s.logger.WithError(err).WithField("ownerID", owner.ID).Error("persisting status failed")
		}
		return nil, fmt.Errorf("service/status: persisting status: %w", err)
	}

	status.Owner = owner
	metrics.RecordStatus(kind.String())
	s.logger.WithFields(logrus.Fields{
		"statusID": status.ID,
		"ownerID":  owner.ID,
		"kind":     kind.String(),
		"mentions": len(annotated.Mentions),
	}).Info("status created")
	return status, nil
}

// findUser returns (nil, nil) when no user has the handle. A leading '@'
// is ignored.
func (s *StatusService) findUser(ctx context.Context, handle string) (*model.User, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, nil
	}
	u, err := s.store.GetUserByNickname(ctx, handle)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/status: resolving %q: %w", handle, err)
	}
	return u, nil
}
