package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/repository"
)

func TestCreateFollow_Idempotent(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	follow(t, db, alice, bob)
	follow(t, db, alice, bob)

	if n := countRows(t, db, "follows"); n != 1 {
		t.Errorf("follows rows = %d, want 1", n)
	}
}

func TestCreateFollow_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")

	err := db.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateFollow(context.Background(), alice.ID, "ghost")
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreateFollow() error = %v, want ErrValidation", err)
	}
}

func TestFollowGraph(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	ctx := context.Background()

	follow(t, db, alice, bob)
	follow(t, db, alice, carol)
	follow(t, db, bob, alice)

	followed, err := db.ListFollowed(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListFollowed() error = %v", err)
	}
	if len(followed) != 2 || followed[0].Nickname != "bob" || followed[1].Nickname != "carol" {
		t.Errorf("ListFollowed() = %+v, want [bob carol]", followed)
	}

	followers, err := db.ListFollowers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListFollowers() error = %v", err)
	}
	if len(followers) != 1 || followers[0].Nickname != "bob" {
		t.Errorf("ListFollowers() = %+v, want [bob]", followers)
	}

	ok, err := db.IsFollowing(ctx, alice.ID, carol.ID)
	if err != nil || !ok {
		t.Errorf("IsFollowing(alice, carol) = %v, %v; want true", ok, err)
	}

	if err := db.DeleteFollow(ctx, alice.ID, carol.ID); err != nil {
		t.Fatalf("DeleteFollow() error = %v", err)
	}
	if err := db.DeleteFollow(ctx, alice.ID, carol.ID); err != nil {
		t.Fatalf("DeleteFollow() twice error = %v", err)
	}

	ok, _ = db.IsFollowing(ctx, alice.ID, carol.ID)
	if ok {
		t.Error("IsFollowing(alice, carol) = true after DeleteFollow")
	}
}
