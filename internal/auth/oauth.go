package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubUser is the part of the GitHub /user response used to create or
// refresh a local account.
type GitHubUser struct {
	ID        int64
	Login     string
	Email     string
	AvatarURL string
	Name      string
	Location  string
	Bio       string
}

// Identifier is the provider reference stored on the local user.
func (u *GitHubUser) Identifier() string {
	return "github:" + strconv.FormatInt(u.ID, 10)
}

// GitHubProvider runs the OAuth 2.0 authorization code flow against GitHub.
// The code-for-token exchange happens server to server with the client
// secret; the access token never reaches the browser.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider configures the flow. callbackURL must match the
// "Authorization callback URL" registered for the OAuth app exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return newGitHubProvider(clientID, clientSecret, callbackURL, github.Endpoint, defaultGitHubAPI)
}

func newGitHubProvider(clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint, apiBase string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		apiBase: apiBase,
	}
}

// AuthURL is where the browser is sent to approve access. state is echoed
// back to the callback and compared with the oauth_state cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the user's GitHub profile. When the
// profile hides the email, the primary verified address from /user/emails
// is used instead.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, oauthToken)

	body, err := p.get(ctx, client, "/user")
	if err != nil {
		return nil, err
	}

	profile := gjson.ParseBytes(body)
	ghUser := &GitHubUser{
		ID:        profile.Get("id").Int(),
		Login:     profile.Get("login").String(),
		Email:     profile.Get("email").String(),
		AvatarURL: profile.Get("avatar_url").String(),
		Name:      profile.Get("name").String(),
		Location:  profile.Get("location").String(),
		Bio:       profile.Get("bio").String(),
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	if ghUser.Email == "" {
		// Best effort: a missing email only disables API login.
		if emails, err := p.get(ctx, client, "/user/emails"); err == nil {
			ghUser.Email = gjson.GetBytes(emails, `#(primary==true)#|#(verified==true).email`).String()
		}
	}

	return ghUser, nil
}

func (p *GitHubProvider) get(ctx context.Context, client *http.Client, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub %s returned status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: reading GitHub %s response: %w", path, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("auth: GitHub %s returned invalid JSON", path)
	}
	return body, nil
}
