package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

var _ repository.StatusRepository = (*DB)(nil)

// statusSelect joins the owner so list results carry Status.Owner.
const statusSelect = `
	SELECT s.id, s.owner_id, COALESCE(s.recipient_id, ''), s.text, s.created_at,
	       u.id, u.nickname, u.email, u.identifier, u.provider, u.formatted_name,
	       u.photo_url, u.location, u.description, u.api_password, u.created_at, u.updated_at
	FROM statuses s
	JOIN users u ON u.id = s.owner_id`

// newestFirst breaks created_at ties by id; xids sort by creation time.
const newestFirst = ` ORDER BY s.created_at DESC, s.id DESC`

func scanStatus(row scanner) (*model.Status, error) {
	var (
		s                             model.Status
		u                             model.User
		createdAt, uCreated, uUpdated int64
	)
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.RecipientID,
		&s.Text,
		&createdAt,
		&u.ID,
		&u.Nickname,
		&u.Email,
		&u.Identifier,
		&u.Provider,
		&u.FormattedName,
		&u.PhotoURL,
		&u.Location,
		&u.Description,
		&u.APIPassword,
		&uCreated,
		&uUpdated,
	)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = fromUnix(createdAt)
	u.CreatedAt = fromUnix(uCreated)
	u.UpdatedAt = fromUnix(uUpdated)
	s.Owner = &u
	return &s, nil
}

func (db *DB) queryStatuses(ctx context.Context, op, query string, args ...any) ([]model.Status, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	statuses := []model.Status{}
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, storageErr(op+": scanning row", err)
		}
		statuses = append(statuses, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op+": iterating rows", err)
	}
	return statuses, nil
}

// GetStatus returns a single status with its owner.
func (db *DB) GetStatus(ctx context.Context, id string) (*model.Status, error) {
	row := db.conn.QueryRowContext(ctx, statusSelect+` WHERE s.id = ?`, id)
	s, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("status", id)
		}
		return nil, storageErr(fmt.Sprintf("getting status %s", id), err)
	}
	return s, nil
}

// ListOwnStatuses returns statuses authored by userID, newest first.
// A non-positive Limit means no limit.
func (db *DB) ListOwnStatuses(ctx context.Context, userID string, opts repository.ListStatusOptions) ([]model.Status, error) {
	query := statusSelect + ` WHERE s.owner_id = ?`
	if opts.ExcludeDirect {
		query += ` AND s.recipient_id IS NULL`
	}
	query += newestFirst + ` LIMIT ?`

	return db.queryStatuses(ctx, fmt.Sprintf("listing statuses of %s", userID),
		query, userID, sqlLimit(opts.Limit))
}

// ListPublic returns the most recent non-direct statuses of all users.
func (db *DB) ListPublic(ctx context.Context, limit int) ([]model.Status, error) {
	return db.queryStatuses(ctx, "listing public statuses",
		statusSelect+` WHERE s.recipient_id IS NULL`+newestFirst+` LIMIT ?`, sqlLimit(limit))
}

// ListMentioning returns the statuses whose text mentioned userID.
func (db *DB) ListMentioning(ctx context.Context, userID string, limit int) ([]model.Status, error) {
	return db.queryStatuses(ctx, fmt.Sprintf("listing mentions of %s", userID),
		statusSelect+` JOIN mentions m ON m.status_id = s.id WHERE m.user_id = ?`+newestFirst+` LIMIT ?`,
		userID, sqlLimit(limit))
}

// ListDirect returns direct messages received by or sent from userID.
func (db *DB) ListDirect(ctx context.Context, userID string, dir repository.Direction, limit int) ([]model.Status, error) {
	where := ` WHERE s.recipient_id = ?`
	if dir == repository.Sent {
		where = ` WHERE s.owner_id = ? AND s.recipient_id IS NOT NULL`
	}
	return db.queryStatuses(ctx, fmt.Sprintf("listing direct messages of %s", userID),
		statusSelect+where+newestFirst+` LIMIT ?`, userID, sqlLimit(limit))
}

// CountDirect counts direct messages sent plus received by userID.
func (db *DB) CountDirect(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM statuses
		 WHERE recipient_id IS NOT NULL AND (owner_id = ? OR recipient_id = ?)`,
		userID, userID,
	).Scan(&n)
	if err != nil {
		return 0, storageErr(fmt.Sprintf("counting direct messages of %s", userID), err)
	}
	return n, nil
}

// ListMentions returns the users mentioned by a status, in nickname order.
func (db *DB) ListMentions(ctx context.Context, statusID string) ([]model.User, error) {
	return db.queryUsers(ctx, fmt.Sprintf("listing mentions on %s", statusID),
		`SELECT `+prefixed("u", userColumns)+`
		 FROM mentions m JOIN users u ON u.id = m.user_id
		 WHERE m.status_id = ? ORDER BY u.nickname`, statusID)
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
