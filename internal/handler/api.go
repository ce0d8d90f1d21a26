package handler

import (
	"mime"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/service"
)

// APIHandler serves the basic-auth /api/v1 endpoints used by scripts and
// third-party clients. Its status JSON uses snake_case keys.
type APIHandler struct {
	base
	users     UserLoader
	statuses  *service.StatusService
	timelines *service.TimelineService
}

func NewAPIHandler(
	users UserLoader,
	statuses *service.StatusService,
	timelines *service.TimelineService,
	logger logrus.FieldLogger,
) *APIHandler {
	return &APIHandler{
		base:      base{logger: logger},
		users:     users,
		statuses:  statuses,
		timelines: timelines,
	}
}

type apiUser struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

type apiStatus struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Owner     *apiUser  `json:"owner,omitempty"`
}

func newAPIStatus(s *model.Status) apiStatus {
	out := apiStatus{ID: s.ID, Text: s.Text, CreatedAt: s.CreatedAt}
	if s.Owner != nil {
		out.Owner = &apiUser{
			ID:       s.Owner.ID,
			Nickname: s.Owner.Nickname,
			Name:     s.Owner.FormattedName,
			PhotoURL: s.Owner.PhotoURL,
		}
	}
	return out
}

func newAPIStatuses(statuses []model.Status) []apiStatus {
	out := make([]apiStatus, len(statuses))
	for i := range statuses {
		out[i] = newAPIStatus(&statuses[i])
	}
	return out
}

// HTTP: GET /api/v1/statuses/user_timeline
func (h *APIHandler) HandleUserTimeline(w http.ResponseWriter, r *http.Request) {
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
	h.writeJSON(w, http.StatusOK, newAPIStatuses(statuses))
}

// HTTP: GET /api/v1/statuses/public_timeline
func (h *APIHandler) HandlePublicTimeline(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.timelines.Public(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newAPIStatuses(statuses))
}

// HandleUpdate accepts the text either as a JSON body {"text": ...} or as a
// form field named "status" or "text". It goes through the same
// classification as the web form, so "D nick ..." and "follow nick" work.
//
// HTTP: POST /api/v1/statuses/update
func (h *APIHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	text, err := h.readText(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.statuses.ClassifyAndPersist(r.Context(), user, text)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if out.Status == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{
			"kind":   out.Kind.String(),
			"target": out.Target.Nickname,
		})
		return
	}
	h.writeJSON(w, http.StatusCreated, newAPIStatus(out.Status))
}

func (h *APIHandler) readText(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req createStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return "", err
		}
		return req.Text, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if text := r.FormValue("status"); text != "" {
		return text, nil
	}
	return r.FormValue("text"), nil
}
