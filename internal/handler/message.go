package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/repository"
	"github.com/sakif/chirper/internal/service"
)

// MessageHandler serves the signed-in user's direct messages.
type MessageHandler struct {
	base
	users    UserLoader
	statuses *service.StatusService
	social   *service.SocialService
}

func NewMessageHandler(
	users UserLoader,
	statuses *service.StatusService,
	social *service.SocialService,
	logger logrus.FieldLogger,
) *MessageHandler {
	return &MessageHandler{
		base:     base{logger: logger},
		users:    users,
		statuses: statuses,
		social:   social,
	}
}

var boxes = map[string]repository.Direction{
	"":         repository.Received,
	"received": repository.Received,
	"sent":     repository.Sent,
}

// HTTP: GET /api/messages?box=received|sent
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dir, ok := boxes[r.URL.Query().Get("box")]
	if !ok {
		h.writeError(w, apperror.ValidationFailed("box", "box must be received or sent"))
		return
	}

	messages, err := h.social.Messages(r.Context(), user, dir)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newStatusViews(messages))
}

// HandleCount returns the number of messages sent plus received.
//
// HTTP: GET /api/messages/count
func (h *MessageHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	n, err := h.social.MessageCount(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// HandleSend is the form-style equivalent of posting "D recipient text".
//
// HTTP: POST /api/messages   {"recipient": "alice", "text": "..."}
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.statuses.SendDirectMessage(r.Context(), user, req.Recipient, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newOutcomeView(out))
}
