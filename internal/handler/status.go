package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/service"
)

// StatusHandler serves status submission and the timelines that do not
// belong to a particular profile page.
type StatusHandler struct {
	base
	users     UserLoader
	statuses  *service.StatusService
	timelines *service.TimelineService
	social    *service.SocialService
}

func NewStatusHandler(
	users UserLoader,
	statuses *service.StatusService,
	timelines *service.TimelineService,
	social *service.SocialService,
	logger logrus.FieldLogger,
) *StatusHandler {
	return &StatusHandler{
		base:      base{logger: logger},
		users:     users,
		statuses:  statuses,
		timelines: timelines,
		social:    social,
	}
}

type createStatusRequest struct {
	Text string `json:"text"`
}

type outcomeView struct {
	Kind   service.Kind `json:"kind"`
	Status *statusView  `json:"status,omitempty"`
	Target *userView    `json:"target,omitempty"`
}

func newOutcomeView(o *service.Outcome) outcomeView {
	return outcomeView{
		Kind:   o.Kind,
		Status: newStatusView(o.Status),
		Target: newUserView(o.Target),
	}
}

// HandleCreate classifies the submitted text as a post, a direct message
// ("D nick ...") or a follow command ("follow nick") and applies it.
// Posts and messages answer 201; a follow answers 200 since no status is
// created.
//
// HTTP: POST /api/statuses   {"text": "..."}
func (h *StatusHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req createStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.statuses.ClassifyAndPersist(r.Context(), user, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if out.Kind == service.KindFollow {
		status = http.StatusOK
	}
	h.writeJSON(w, status, newOutcomeView(out))
}

// HandleHomeTimeline is the signed-in user's own page: their statuses merged
// with everyone they follow.
//
// HTTP: GET /api/timeline
func (h *StatusHandler) HandleHomeTimeline(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	statuses, err := h.timelines.Assemble(r.Context(), user, user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusViews(statuses))
}

// HTTP: GET /api/public
func (h *StatusHandler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.timelines.Public(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusViews(statuses))
}

// HandleReplies lists statuses mentioning the signed-in user.
//
// HTTP: GET /api/replies
func (h *StatusHandler) HandleReplies(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	statuses, err := h.social.Replies(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusViews(statuses))
}
