// Package repository declares the persistence interfaces the services depend
// on. internal/repository/sqlite is the production implementation; tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/chirper/internal/model"
)

// ListStatusOptions narrows ListOwnStatuses. Results are always newest first.
type ListStatusOptions struct {
	ExcludeDirect bool
	Limit         int
}

// Direction selects one side of a user's direct messages.
type Direction int

const (
	Received Direction = iota
	Sent
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*model.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	SetAPIPassword(ctx context.Context, userID, hash string) error
}

type StatusRepository interface {
	GetStatus(ctx context.Context, id string) (*model.Status, error)
	ListOwnStatuses(ctx context.Context, userID string, opts ListStatusOptions) ([]model.Status, error)
	ListPublic(ctx context.Context, limit int) ([]model.Status, error)
	ListMentioning(ctx context.Context, userID string, limit int) ([]model.Status, error)
	ListDirect(ctx context.Context, userID string, dir Direction, limit int) ([]model.Status, error)
	CountDirect(ctx context.Context, userID string) (int, error)
	ListMentions(ctx context.Context, statusID string) ([]model.User, error)
}

type FollowRepository interface {
	ListFollowed(ctx context.Context, userID string) ([]model.User, error)
	ListFollowers(ctx context.Context, userID string) ([]model.User, error)
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followedID string) error
}

// Tx is the write side used inside one transaction. CreateStatus assigns
// the status ID; CreateFollow is a no-op when the edge already exists.
type Tx interface {
	CreateStatus(ctx context.Context, status *model.Status) error
	CreateMention(ctx context.Context, userID, statusID string) error
	CreateFollow(ctx context.Context, followerID, followedID string) error
}

// Store bundles the read repositories with transactional writes. WithTx
// commits when fn returns nil and rolls back otherwise.
type Store interface {
	UserRepository
	StatusRepository
	FollowRepository
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
