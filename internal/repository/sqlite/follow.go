package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// ListFollowed returns the users userID follows, ordered by nickname.
func (db *DB) ListFollowed(ctx context.Context, userID string) ([]model.User, error) {
	return db.queryUsers(ctx, fmt.Sprintf("listing users followed by %s", userID),
		`SELECT `+prefixed("u", userColumns)+`
		 FROM follows f JOIN users u ON u.id = f.followed_id
		 WHERE f.follower_id = ? ORDER BY u.nickname`, userID)
}

// ListFollowers returns the users following userID, ordered by nickname.
func (db *DB) ListFollowers(ctx context.Context, userID string) ([]model.User, error) {
	return db.queryUsers(ctx, fmt.Sprintf("listing followers of %s", userID),
		`SELECT `+prefixed("u", userColumns)+`
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.followed_id = ? ORDER BY u.nickname`, userID)
}

func (db *DB) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	).Scan(&n)
	if err != nil {
		return false, storageErr("checking follow edge", err)
	}
	return n > 0, nil
}

// DeleteFollow removes the edge. Removing a missing edge is not an error.
func (db *DB) DeleteFollow(ctx context.Context, followerID, followedID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	)
	if err != nil {
		return storageErr(fmt.Sprintf("deleting follow %s -> %s", followerID, followedID), err)
	}
	return nil
}

func (db *DB) queryUsers(ctx context.Context, op, query string, args ...any) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr(op+": scanning row", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op+": iterating rows", err)
	}
	return users, nil
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
