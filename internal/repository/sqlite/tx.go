package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// MaxStoredTextLength bounds the annotated text column. Link markup can make
// a 140 code point body several times longer.
const MaxStoredTextLength = 2048

var _ repository.Tx = (*writer)(nil)

// writer performs the writes of one WithTx call. It only ever touches the
// transaction, never the pool, so a single-connection pool cannot deadlock.
type writer struct {
	q querier
}

// CreateStatus inserts the status and assigns its ID. CreatedAt is kept when
// the caller set it and defaults to now otherwise.
func (w *writer) CreateStatus(ctx context.Context, status *model.Status) error {
	if status.OwnerID == "" {
		return apperror.ValidationFailed("owner_id", "status owner is required")
	}
	if strings.TrimSpace(status.Text) == "" {
		return apperror.ValidationFailed("text", "status text is required")
	}
	if utf8.RuneCountInString(status.Text) > MaxStoredTextLength {
		return apperror.ValidationFailed("text",
			fmt.Sprintf("status text must be at most %d characters", MaxStoredTextLength))
	}

	if status.CreatedAt.IsZero() {
		status.CreatedAt = time.Now()
	}
	status.CreatedAt = status.CreatedAt.UTC()
	status.ID = xid.NewWithTime(status.CreatedAt).String()

	_, err := w.q.ExecContext(ctx,
		`INSERT INTO statuses (id, owner_id, recipient_id, text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		status.ID,
		status.OwnerID,
		nullable(status.RecipientID),
		status.Text,
		toUnix(status.CreatedAt),
	)
	if err != nil {
		status.ID = ""
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("owner_id", "status owner or recipient does not exist")
		}
		return storageErr("creating status", err)
	}
	return nil
}

// CreateMention links statusID to userID. Re-linking the same pair is a no-op.
func (w *writer) CreateMention(ctx context.Context, userID, statusID string) error {
	_, err := w.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO mentions (user_id, status_id) VALUES (?, ?)`,
		userID, statusID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("user_id",
				fmt.Sprintf("mention references unknown user %s or status %s", userID, statusID))
		}
		return storageErr(fmt.Sprintf("creating mention %s on %s", userID, statusID), err)
	}
	return nil
}

// CreateFollow is idempotent: an existing edge is left untouched.
func (w *writer) CreateFollow(ctx context.Context, followerID, followedID string) error {
	_, err := w.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`,
		followerID, followedID, toUnix(time.Now().UTC()),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("followed_id", "follow references an unknown user")
		}
		return storageErr(fmt.Sprintf("creating follow %s -> %s", followerID, followedID), err)
	}
	return nil
}
