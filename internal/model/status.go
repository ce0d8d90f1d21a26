package model

import "time"

// MaxStatusLength is the limit on a status body, counted in code points
// before URL and mention markup is added.
const MaxStatusLength = 140

// Status is a posted message. A non-empty RecipientID makes it a direct
// message, which never appears on public timelines.
type Status struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	RecipientID string    `json:"recipientId,omitempty"`
	Text        string    `json:"text"` // annotated text, may contain <a> markup
	CreatedAt   time.Time `json:"createdAt"`

	// Owner is populated by list queries that join users.
	Owner *User `json:"owner,omitempty"`
}

// IsDirect reports whether the status is a direct message.
func (s *Status) IsDirect() bool {
	return s.RecipientID != ""
}

// Follow is a directed edge: FollowerID receives FollowedID's posts.
type Follow struct {
	FollowerID string    `json:"followerId"`
	FollowedID string    `json:"followedId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Mention links a status to a user whose @handle appeared in it.
type Mention struct {
	UserID   string `json:"userId"`
	StatusID string `json:"statusId"`
}
