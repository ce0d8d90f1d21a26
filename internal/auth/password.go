package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// API passwords are only used by the basic-auth /api/v1 endpoints. Browser
// sessions never carry a password; they come from GitHub OAuth.
//
// Stored hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>

const (
	defaultCost = 12

	// MinAPIPasswordLength and MaxAPIPasswordLength bound what Hash accepts.
	// bcrypt ignores everything past 72 bytes, so longer input is rejected
	// rather than silently truncated.
	MinAPIPasswordLength = 8
	MaxAPIPasswordLength = 72
)

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService hashes and verifies API passwords with bcrypt.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with bcrypt cost 12.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest lets tests in other packages use a cheap cost
// (bcrypt.MinCost is 4). Never use it in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return newPasswordServiceWithCost(cost)
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) < MinAPIPasswordLength {
		return "", fmt.Errorf("auth: password must be at least %d bytes", MinAPIPasswordLength)
	}
	if len(plaintext) > MaxAPIPasswordLength {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxAPIPasswordLength)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A mismatch, and an empty
// hash (no API password set), both return ErrInvalidPassword. The
// comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrInvalidPassword
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
