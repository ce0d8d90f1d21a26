package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/auth"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository"
)

// AuthService owns the account lifecycle: first login creates the user,
// later logins find it again, and API credentials are checked here.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT), PasswordService (bcrypt)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    logrus.FieldLogger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		validate:  newValidator(),
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Token   string
	Created bool
}

// LoginOrRegisterGitHub resolves the GitHub profile to a local user,
// creating it on first login, and issues a session token.
//
// A new user's nickname is the GitHub login when it is a valid handle and
// still free; otherwise a stable handle derived from the identifier. An
// existing user's profile is left as they last saved it.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	identifier := gh.Identifier()
	created := false

	user, err := s.users.GetUserByIdentifier(ctx, identifier)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.register(ctx, gh)
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, fmt.Errorf("service/auth: finding user %s: %w", identifier, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"userID":   user.ID,
		"nickname": user.Nickname,
		"created":  created,
	}).Info("user authenticated via GitHub")

	return &AuthResult{User: user, Token: token, Created: created}, nil
}

func (s *AuthService) register(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	identifier := gh.Identifier()

	user := &model.User{
		Nickname:      gh.Login,
		Email:         gh.Email,
		Identifier:    identifier,
		Provider:      "github",
		FormattedName: gh.Name,
		PhotoURL:      gh.AvatarURL,
		Location:      gh.Location,
		Description:   gh.Bio,
	}
	if user.PhotoURL == "" && user.Email != "" {
		user.PhotoURL = gravatarURL(user.Email)
	}
	if !usableNickname(user.Nickname) {
		user.Nickname = fallbackNickname(identifier)
	}

	err := s.users.CreateUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) && user.Nickname != fallbackNickname(identifier) {
		s.logger.WithFields(logrus.Fields{
			"login":      gh.Login,
			"identifier": identifier,
		}).Info("nickname taken, using derived nickname")
		user.Nickname = fallbackNickname(identifier)
		err = s.users.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", identifier, err)
	}
	return user, nil
}

// GetUserByID returns the user the session belongs to.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("no user in session")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken returns the user ID encoded in a session token.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

type apiPasswordInput struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SetAPIPassword stores a bcrypt hash of password for basic-auth access.
func (s *AuthService) SetAPIPassword(ctx context.Context, userID, password string) error {
	if err := validateStruct(s.validate, apiPasswordInput{Password: password}); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}

	if err := s.users.SetAPIPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: setting api password for %s: %w", userID, err)
	}

	s.logger.WithField("userID", userID).Info("api password set")
	return nil
}

// AuthenticateAPI checks basic-auth credentials. Unknown email, missing API
// password and wrong password all produce the same ErrUnauthorized.
func (s *AuthService) AuthenticateAPI(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, apperror.Unauthorized("email and api password required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: finding user by email: %w", err)
	}

	if err := s.passwords.Verify(user.APIPassword, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.WithError(err).WithField("userID", user.ID).Warn("api password check failed")
		}
		return nil, apperror.Unauthorized("invalid credentials")
	}

	return user, nil
}
