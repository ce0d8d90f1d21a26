package handler

import (
	"math"
	"time"

	"github.com/sakif/chirper/internal/model"
)

// now is swapped in tests to make "ago" deterministic.
var now = time.Now

// userView is the public face of a user: no email, no credentials.
type userView struct {
	ID            string `json:"id"`
	Nickname      string `json:"nickname"`
	FormattedName string `json:"formattedName"`
	PhotoURL      string `json:"photoUrl"`
	Location      string `json:"location"`
	Description   string `json:"description"`
}

func newUserView(u *model.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:            u.ID,
		Nickname:      u.Nickname,
		FormattedName: u.FormattedName,
		PhotoURL:      u.PhotoURL,
		Location:      u.Location,
		Description:   u.Description,
	}
}

func newUserViews(users []model.User) []userView {
	out := make([]userView, len(users))
	for i := range users {
		out[i] = *newUserView(&users[i])
	}
	return out
}

type statusView struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
	Ago         string    `json:"ago"`
	Direct      bool      `json:"direct"`
	RecipientID string    `json:"recipientId,omitempty"`
	Owner       *userView `json:"owner,omitempty"`
}

func newStatusView(s *model.Status) *statusView {
	if s == nil {
		return nil
	}
	return &statusView{
		ID:          s.ID,
		Text:        s.Text,
		CreatedAt:   s.CreatedAt,
		Ago:         timeAgo(s.CreatedAt, now()),
		Direct:      s.IsDirect(),
		RecipientID: s.RecipientID,
		Owner:       newUserView(s.Owner),
	}
}

func newStatusViews(statuses []model.Status) []statusView {
	out := make([]statusView, len(statuses))
	for i := range statuses {
		out[i] = *newStatusView(&statuses[i])
	}
	return out
}

// timeAgo describes t relative to ref in coarse words. Anything older than
// eight hours is shown as a timestamp instead.
func timeAgo(t, ref time.Time) string {
	minutes := int(math.Round(math.Abs(ref.Sub(t).Minutes())))

	switch {
	case minutes == 0:
		return "less than a minute ago"
	case minutes < 5:
		return "less than 5 minutes ago"
	case minutes < 15:
		return "less than 15 minutes ago"
	case minutes < 30:
		return "less than 30 minutes ago"
	case minutes < 60:
		return "more than 30 minutes ago"
	case minutes < 120:
		return "more than 1 hour ago"
	case minutes < 240:
		return "more than 2 hours ago"
	case minutes < 480:
		return "more than 4 hours ago"
	default:
		return t.UTC().Format("03:04 PM 02-Jan-2006")
	}
}
