package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/service"
)

// UserHandler serves profile pages and the follow graph.
type UserHandler struct {
	base
	users     UserLoader
	statuses  *service.StatusService
	timelines *service.TimelineService
	social    *service.SocialService
}

func NewUserHandler(
	users UserLoader,
	statuses *service.StatusService,
	timelines *service.TimelineService,
	social *service.SocialService,
	logger logrus.FieldLogger,
) *UserHandler {
	return &UserHandler{
		base:      base{logger: logger},
		users:     users,
		statuses:  statuses,
		timelines: timelines,
		social:    social,
	}
}

type profileView struct {
	User           *userView `json:"user"`
	FollowersCount int       `json:"followersCount"`
	FollowsCount   int       `json:"followsCount"`
	// Following is set only for signed-in viewers other than the user.
	Following *bool `json:"following,omitempty"`
}

// subject loads the user named in the {nickname} path parameter.
func (h *UserHandler) subject(r *http.Request) (*model.User, error) {
	return h.social.Profile(r.Context(), chi.URLParam(r, "nickname"))
}

// HTTP: GET /api/users/{nickname}
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	viewer, err := optionalUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	followers, err := h.social.Followers(r.Context(), subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	follows, err := h.social.Follows(r.Context(), subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := profileView{
		User:           newUserView(subject),
		FollowersCount: len(followers),
		FollowsCount:   len(follows),
	}
	if viewer != nil && viewer.ID != subject.ID {
		following, err := h.social.IsFollowing(r.Context(), viewer, subject)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		view.Following = &following
	}

	h.writeJSON(w, http.StatusOK, view)
}

// HandleTimeline shows the subject's page. The owner sees it merged with
// the people they follow; everyone else sees only the owner's statuses.
//
// HTTP: GET /api/users/{nickname}/timeline
func (h *UserHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subject(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	viewer, err := optionalUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	statuses, err := h.timelines.Assemble(r.Context(), viewer, subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusViews(statuses))
}

// listing serves one of the follow-graph lists for the path's user.
func (h *UserHandler) listing(list func(context.Context, *model.User) ([]model.User, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := h.subject(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		users, err := list(r.Context(), subject)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, newUserViews(users))
	}
}

// HTTP: GET /api/users/{nickname}/followers
func (h *UserHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	h.listing(h.social.Followers)(w, r)
}

// HTTP: GET /api/users/{nickname}/follows
func (h *UserHandler) HandleFollows(w http.ResponseWriter, r *http.Request) {
	h.listing(h.social.Follows)(w, r)
}

// HandleFriends lists users who follow the path's user and are followed
// back.
//
// HTTP: GET /api/users/{nickname}/friends
func (h *UserHandler) HandleFriends(w http.ResponseWriter, r *http.Request) {
	h.listing(h.social.Friends)(w, r)
}

// HTTP: POST /api/follows/{nickname}
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	target, err := h.statuses.Follow(r.Context(), user, chi.URLParam(r, "nickname"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"following": true, "target": newUserView(target)})
}

// HTTP: DELETE /api/follows/{nickname}
func (h *UserHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.social.Unfollow(r.Context(), user, chi.URLParam(r, "nickname")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateMe saves the editable profile fields. The nickname is not
// editable; a "nickname" key in the body is ignored.
//
// HTTP: PUT /api/me
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var upd model.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.social.UpdateProfile(r.Context(), user.ID, upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}
