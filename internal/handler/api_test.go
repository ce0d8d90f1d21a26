package handler_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiStatusJSON struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Owner     *struct {
		Nickname string `json:"nickname"`
		Name     string `json:"name"`
	} `json:"owner"`
}

func TestAPIHandler_Timelines(t *testing.T) {
	app := newTestApp(t)
	alice := app.createUser("alice")
	bob := app.createUser("bob")
	app.post(alice, "follow bob")
	app.post(bob, "bob says hi")
	app.post(alice, "alice says hi")

	t.Run("user timeline", func(t *testing.T) {
		rr := serve(app.api.HandleUserTimeline,
			request(http.MethodGet, "/api/v1/statuses/user_timeline", nil, alice, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		got := decode[[]apiStatusJSON](t, rr)
		require.Len(t, got, 2)
		assert.Equal(t, "alice says hi", got[0].Text)
		assert.Equal(t, "alice", got[0].Owner.Nickname)
		assert.Equal(t, "Alice", got[0].Owner.Name)
		assert.False(t, got[0].CreatedAt.IsZero())
		assert.Equal(t, "bob says hi", got[1].Text)
	})

	t.Run("public timeline", func(t *testing.T) {
		rr := serve(app.api.HandlePublicTimeline,
			request(http.MethodGet, "/api/v1/statuses/public_timeline", nil, nil, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]apiStatusJSON](t, rr), 2)
	})

	t.Run("snake_case keys", func(t *testing.T) {
		rr := serve(app.api.HandlePublicTimeline,
			request(http.MethodGet, "/api/v1/statuses/public_timeline", nil, nil, nil))

		assert.Contains(t, rr.Body.String(), `"created_at"`)
		assert.NotContains(t, rr.Body.String(), `"createdAt"`)
	})
}

func TestAPIHandler_HandleUpdate(t *testing.T) {
	t.Run("form field status", func(t *testing.T) {
		app := newTestApp(t)
		alice := app.createUser("alice")

		form := url.Values{"status": {"posted from curl"}}
		req := request(http.MethodPost, "/api/v1/statuses/update", form.Encode(), alice, nil)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rr := serve(app.api.HandleUpdate, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "posted from curl", decode[apiStatusJSON](t, rr).Text)
	})

	t.Run("json body", func(t *testing.T) {
		app := newTestApp(t)
		alice := app.createUser("alice")

		rr := serve(app.api.HandleUpdate,
			request(http.MethodPost, "/api/v1/statuses/update", map[string]string{"text": "json post"}, alice, nil))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "json post", decode[apiStatusJSON](t, rr).Text)
	})

	t.Run("follow command", func(t *testing.T) {
		app := newTestApp(t)
		alice := app.createUser("alice")
		app.createUser("bob")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/statuses/update", strings.NewReader("text=follow+bob"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req = req.WithContext(request(http.MethodGet, "/", nil, alice, nil).Context())

		rr := serve(app.api.HandleUpdate, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.JSONEq(t, `{"kind":"follow","target":"bob"}`, rr.Body.String())
	})

	t.Run("missing text is 400", func(t *testing.T) {
		app := newTestApp(t)
		alice := app.createUser("alice")

		req := request(http.MethodPost, "/api/v1/statuses/update", "", alice, nil)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rr := serve(app.api.HandleUpdate, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
