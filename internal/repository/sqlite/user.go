package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, nickname, email, identifier, provider, formatted_name,
	photo_url, location, description, api_password, created_at, updated_at`

func scanUser(row scanner) (*model.User, error) {
	var (
		u                    model.User
		createdAt, updatedAt int64
	)
	err := row.Scan(
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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}

// CreateUser inserts a new user and fills in ID and timestamps.
// A taken nickname or identifier is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if strings.TrimSpace(user.Nickname) == "" {
		return apperror.ValidationFailed("nickname", "nickname is required")
	}
	if user.Identifier == "" {
		return apperror.ValidationFailed("identifier", "identifier is required")
	}

	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Nickname,
		user.Email,
		user.Identifier,
		user.Provider,
		user.FormattedName,
		user.PhotoURL,
		user.Location,
		user.Description,
		user.APIPassword,
		toUnix(user.CreatedAt),
		toUnix(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			field := uniqueField(err)
			if field == "identifier" {
				return apperror.Conflict("user identifier", user.Identifier)
			}
			return apperror.Conflict("nickname", user.Nickname)
		}
		return storageErr(fmt.Sprintf("inserting user %q", user.Nickname), err)
	}

	return nil
}

func (db *DB) getUserBy(ctx context.Context, column, value string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, storageErr(fmt.Sprintf("getting user by %s %q", column, value), err)
	}
	return u, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserBy(ctx, "id", id)
}

// GetUserByNickname is an exact, case-sensitive handle match.
func (db *DB) GetUserByNickname(ctx context.Context, nickname string) (*model.User, error) {
	return db.getUserBy(ctx, "nickname", nickname)
}

// GetUserByIdentifier finds the user linked to an external identity.
func (db *DB) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	return db.getUserBy(ctx, "identifier", identifier)
}

// GetUserByEmail returns the oldest account using the address. Email is not
// unique: two provider identities may share one.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY created_at LIMIT 1`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, storageErr("getting user by email", err)
	}
	return u, nil
}

// UpdateProfile writes the editable profile fields. Nickname and identifier
// are never updated here.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, formatted_name = ?, photo_url = ?, location = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.FormattedName,
		user.PhotoURL,
		user.Location,
		user.Description,
		toUnix(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return storageErr(fmt.Sprintf("updating user %s", user.ID), err)
	}
	return expectOneRow(res, user.ID)
}

// SetAPIPassword stores a bcrypt hash for basic-auth API access.
func (db *DB) SetAPIPassword(ctx context.Context, userID, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET api_password = ?, updated_at = ? WHERE id = ?`,
		hash, toUnix(time.Now().UTC()), userID,
	)
	if err != nil {
		return storageErr(fmt.Sprintf("setting api password for %s", userID), err)
	}
	return expectOneRow(res, userID)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
