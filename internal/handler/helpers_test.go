package handler_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/handler"
	"github.com/sakif/tasktracker/internal/lockout"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository/sqlite"
	"github.com/sakif/tasktracker/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

// googleStub answers the token and userinfo endpoints. Codes other than
// "good-code" are rejected with invalid_grant.
func googleStub(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"google-access","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"email":"`+email+`","given_name":"Jane","family_name":"Doe","name":"Jane Doe"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	db     *sqlite.DB
	tokens *auth.TokenService
	auth   *service.AuthService
	router chi.Router
	logs   *bytes.Buffer
}

type envOptions struct {
	googleURL  string // empty: provider not configured
	lockoutMax int    // 0: no lockout
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret, "HS256")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	gcfg := auth.GoogleConfig{Timeout: 2 * time.Second}
	if opts.googleURL != "" {
		gcfg.ClientID = "client-id"
		gcfg.ClientSecret = "client-secret"
		gcfg.RedirectURL = "http://localhost/auth/google/callback"
		gcfg.AuthURL = opts.googleURL + "/auth"
		gcfg.TokenURL = opts.googleURL + "/token"
		gcfg.UserInfoURL = opts.googleURL + "/userinfo"
	}

	var guard *lockout.Guard
	if opts.lockoutMax > 0 {
		guard = lockout.NewGuard(lockout.NewMemoryStore(), opts.lockoutMax, time.Minute)
	}

	authSvc := service.NewAuthService(db.Users(), tokens, passwords, logger, service.AuthOptions{
		TokenTTL: 20 * time.Minute,
		Lockout:  guard,
	})

	ah := handler.NewAuthHandler(authSvc, auth.NewGoogleProvider(gcfg), handler.CookieConfig{LandingPath: "/todos/"}, logger)
	uh := handler.NewUserHandler(service.NewUserService(db.Users(), passwords, logger), logger)
	th := handler.NewTodoHandler(service.NewTodoService(db.Todos(), logger), logger)
	adm := handler.NewAdminHandler(service.NewAdminService(db.Todos(), db.Users(), logger), logger)
	hh := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Get("/healthy", hh.HandleHealthy)
	r.Post("/auth/", ah.HandleRegister)
	r.Post("/auth/token", ah.HandleToken)
	r.Get("/auth/google/login", ah.HandleGoogleLogin)
	r.Get("/auth/google/callback", ah.HandleGoogleCallback)
	r.Post("/auth/logout", ah.HandleLogout)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, nil))
		r.Get("/users/", uh.HandleMe)
		r.Put("/users/password", uh.HandleChangePassword)
		r.Put("/users/phonenumber/{phone}", uh.HandleChangePhoneNumber)
		r.Put("/users/address", uh.HandleChangeAddress)
		r.Get("/todos/", th.HandleList)
		r.Post("/todos/todo", th.HandleCreate)
		r.Get("/todos/todo/{id}", th.HandleGet)
		r.Put("/todos/todo/{id}", th.HandleUpdate)
		r.Delete("/todos/todo/{id}", th.HandleDelete)
		r.Get("/admin/todo", adm.HandleListTodos)
		r.Delete("/admin/todo/{id}", adm.HandleDeleteTodo)
		r.Get("/admin/users", adm.HandleListUsers)
		r.Get("/admin/stats", adm.HandleStats)
	})

	return &testEnv{db: db, tokens: tokens, auth: authSvc, router: r, logs: logs}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) jsonRequest(method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func (e *testEnv) login(username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// registerAndLogin creates a password account and returns its token.
func (e *testEnv) registerAndLogin(t *testing.T, username, role string) string {
	t.Helper()
	u := &model.User{
		Username: username,
		Email:    username + "@local.test",
		Role:     role,
		IsActive: true,
	}
	hash, err := auth.NewPasswordServiceForTest(4).Hash("password1")
	require.NoError(t, err)
	u.PasswordHash = hash
	require.NoError(t, e.db.Users().Create(t.Context(), u))

	token, err := e.tokens.Issue(u.Username, u.ID, u.Role, time.Minute)
	require.NoError(t, err)
	return token
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
