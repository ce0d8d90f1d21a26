package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/sakif/chirper/internal/annotate"
	"github.com/sakif/chirper/internal/auth"
	"github.com/sakif/chirper/internal/handler"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/repository/sqlite"
	"github.com/sakif/chirper/internal/service"
	"github.com/sakif/chirper/internal/shortener"
)

// testApp wires the real services over an in-memory database. Handlers are
// called directly, the way the router would call them.
type testApp struct {
	t      *testing.T
	db     *sqlite.DB
	tokens *auth.TokenService

	authSvc   *service.AuthService
	statusSvc *service.StatusService

	statuses *handler.StatusHandler
	users    *handler.UserHandler
	messages *handler.MessageHandler
	api      *handler.APIHandler
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := quietLogger()
	tokens, err := auth.NewTokenService("handler-tests-secret-0123456789", time.Hour)
	require.NoError(t, err)

	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(4), logger)
	statusSvc := service.NewStatusService(db, annotate.New(db, shortener.Nop{}, logger), logger)
	timelines := service.NewTimelineService(db, db, logger)
	social := service.NewSocialService(db, logger)

	return &testApp{
		t:         t,
		db:        db,
		tokens:    tokens,
		authSvc:   authSvc,
		statusSvc: statusSvc,
		statuses:  handler.NewStatusHandler(authSvc, statusSvc, timelines, social, logger),
		users:     handler.NewUserHandler(authSvc, statusSvc, timelines, social, logger),
		messages:  handler.NewMessageHandler(authSvc, statusSvc, social, logger),
		api:       handler.NewAPIHandler(authSvc, statusSvc, timelines, logger),
	}
}

func (a *testApp) createUser(nickname string) *model.User {
	a.t.Helper()
	u := &model.User{
		Nickname:      nickname,
		Email:         nickname + "@example.com",
		Identifier:    "github:" + nickname,
		Provider:      "github",
		FormattedName: strings.ToUpper(nickname[:1]) + nickname[1:],
	}
	require.NoError(a.t, a.db.CreateUser(context.Background(), u))
	return u
}

// post submits text as user through the status service.
func (a *testApp) post(user *model.User, text string) *service.Outcome {
	a.t.Helper()
	out, err := a.statusSvc.ClassifyAndPersist(context.Background(), user, text)
	require.NoError(a.t, err)
	return out
}

// request builds a request. A non-nil user is signed in; params become chi
// URL parameters.
func request(method, target string, body any, user *model.User, params map[string]string) *http.Request {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, _ := json.Marshal(b)
		rdr = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx := req.Context()
	if user != nil {
		ctx = auth.WithUserID(ctx, user.ID)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

// Response shapes as a client sees them.

type userJSON struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

type statusJSON struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Ago         string    `json:"ago"`
	Direct      bool      `json:"direct"`
	RecipientID string    `json:"recipientId"`
	Owner       *userJSON `json:"owner"`
}

type outcomeJSON struct {
	Kind   string      `json:"kind"`
	Status *statusJSON `json:"status"`
	Target *userJSON   `json:"target"`
}

type errorJSON struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func texts(statuses []statusJSON) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.Text
	}
	return out
}
