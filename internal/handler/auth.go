package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/auth"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/service"
)

const stateCookie = "oauth_state"

// OAuthProvider is the identity provider side of the login flow.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// UserLoader resolves the session's user ID to a user.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// currentUser returns the signed-in user or ErrUnauthorized.
func currentUser(r *http.Request, users UserLoader) (*model.User, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("sign in required")
	}
	u, err := users.GetUserByID(r.Context(), id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized("session user no longer exists")
	}
	return u, err
}

// optionalUser returns nil for anonymous requests. A session pointing at a
// user that no longer exists is treated as anonymous.
func optionalUser(r *http.Request, users UserLoader) (*model.User, error) {
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		return nil, nil
	}
	u, err := currentUser(r, users)
	if errors.Is(err, apperror.ErrUnauthorized) {
		return nil, nil
	}
	return u, err
}

// AuthHandler runs the GitHub login flow and the session endpoints.
type AuthHandler struct {
	base
	provider      OAuthProvider
	auth          *service.AuthService
	tokenTTLSecs  int
	secureCookies bool
	redirectURL   string
}

func NewAuthHandler(
	provider OAuthProvider,
	authService *service.AuthService,
	tokens *auth.TokenService,
	secureCookies bool,
	redirectURL string,
	logger logrus.FieldLogger,
) *AuthHandler {
	if redirectURL == "" {
		redirectURL = "/"
	}
	return &AuthHandler{
		base:          base{logger: logger},
		provider:      provider,
		auth:          authService,
		tokenTTLSecs:  int(tokens.TTL().Seconds()),
		secureCookies: secureCookies,
		redirectURL:   redirectURL,
	}
}

// HandleGitHubLogin redirects to GitHub with a fresh state value that is
// also stored in a ten-minute cookie for the callback to compare.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback checks the state, exchanges the code, finds or
// creates the user and sets the session cookie.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.WithField("got", q.Get("state")).Warn("auth callback: state mismatch")
		h.writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.WithField("error", errParam).Info("auth callback: user denied authorization")
		http.Redirect(w, r, h.redirectURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).Error("auth callback: GitHub exchange failed")
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "auth_failed", Message: "authentication failed"})
		return
	}

	res, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   h.tokenTTLSecs,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.redirectURL, http.StatusSeeOther)
}

// HandleLogout deletes the session cookie. The token itself stays valid
// until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user's full record, email included.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.auth)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

type apiPasswordRequest struct {
	Password string `json:"password"`
}

// HandleSetAPIPassword sets the password used with the account email for
// basic auth on /api/v1.
//
// HTTP: PUT /api/me/api-password   {"password": "..."}
func (h *AuthHandler) HandleSetAPIPassword(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.auth)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req apiPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.auth.SetAPIPassword(r.Context(), user.ID, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
