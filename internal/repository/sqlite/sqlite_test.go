package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, nickname string) *model.User {
	t.Helper()
	user := &model.User{
		Nickname:   nickname,
		Email:      nickname + "@example.com",
		Identifier: "github:" + nickname,
		Provider:   "github",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %q: %v", nickname, err)
	}
	return user
}

// createTestStatus persists a status in its own transaction.
func createTestStatus(t *testing.T, db *DB, owner, recipient *model.User, text string, at time.Time) *model.Status {
	t.Helper()
	status := &model.Status{OwnerID: owner.ID, Text: text, CreatedAt: at}
	if recipient != nil {
		status.RecipientID = recipient.ID
	}
	err := db.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateStatus(context.Background(), status)
	})
	if err != nil {
		t.Fatalf("failed to create test status %q: %v", text, err)
	}
	return status
}

func follow(t *testing.T, db *DB, follower, followed *model.User) {
	t.Helper()
	err := db.WithTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateFollow(context.Background(), follower.ID, followed.ID)
	})
	if err != nil {
		t.Fatalf("failed to follow %s -> %s: %v", follower.Nickname, followed.Nickname, err)
	}
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.conn.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
	if err := db.addColumnIfNotExists("users", "api_password", "TEXT"); err != nil {
		t.Fatalf("addColumnIfNotExists() on existing column error = %v", err)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
