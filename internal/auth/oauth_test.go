package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the token endpoint and the two API calls Exchange makes.
func fakeGitHub(t *testing.T, userJSON, emailsJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(userJSON))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if emailsJSON == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(emailsJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *GitHubProvider {
	return newGitHubProvider("client-id", "client-secret", "http://localhost/callback",
		oauth2.Endpoint{
			AuthURL:  srv.URL + "/login/oauth/authorize",
			TokenURL: srv.URL + "/login/oauth/access_token",
		},
		srv.URL,
	)
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost/callback")

	u, err := url.Parse(p.AuthURL("state-123"))

	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeGitHub(t,
		`{"id":583231,"login":"octocat","email":"octo@example.com","avatar_url":"https://avatars.example/u/583231",
		  "name":"The Octocat","location":"San Francisco","bio":null,"plan":{"name":"free"}}`,
		"")

	u, err := testProvider(srv).Exchange(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, &GitHubUser{
		ID:        583231,
		Login:     "octocat",
		Email:     "octo@example.com",
		AvatarURL: "https://avatars.example/u/583231",
		Name:      "The Octocat",
		Location:  "San Francisco",
	}, u)
	assert.Equal(t, "github:583231", u.Identifier())
}

func TestGitHubProvider_Exchange_HiddenEmail(t *testing.T) {
	srv := fakeGitHub(t,
		`{"id":7,"login":"hidden","email":null}`,
		`[{"email":"old@example.com","primary":false,"verified":true},
		  {"email":"main@example.com","primary":true,"verified":true}]`)

	u, err := testProvider(srv).Exchange(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, "main@example.com", u.Email)
}

func TestGitHubProvider_Exchange_Failures(t *testing.T) {
	t.Run("bad code", func(t *testing.T) {
		srv := fakeGitHub(t, `{"id":1,"login":"x"}`, "")
		_, err := testProvider(srv).Exchange(context.Background(), "bad-code")
		assert.Error(t, err)
	})

	t.Run("zero id", func(t *testing.T) {
		srv := fakeGitHub(t, `{"login":"ghost"}`, "")
		_, err := testProvider(srv).Exchange(context.Background(), "good-code")
		assert.ErrorContains(t, err, "ID = 0")
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := fakeGitHub(t, `{"id":`, "")
		_, err := testProvider(srv).Exchange(context.Background(), "good-code")
		assert.ErrorContains(t, err, "invalid JSON")
	})
}
