package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/service"
)

const (
	stateCookie = "oauth_state"
	stateMaxAge = 10 * time.Minute
)

// CookieConfig controls the session cookie set after Google sign-in.
type CookieConfig struct {
	// Secure adds the Secure attribute. Enable it behind HTTPS.
	Secure bool
	// LandingPath is where the browser goes once signed in.
	LandingPath string
}

// AuthHandler serves registration, password login, the Google sign-in
// redirect/callback pair and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → POST /auth/
//   - HandleToken          → POST /auth/token (form: username, password)
//   - HandleGoogleLogin    → GET  /auth/google/login
//   - HandleGoogleCallback → GET  /auth/google/callback
//   - HandleLogout         → POST /auth/logout
type AuthHandler struct {
	auth    *service.AuthService
	google  *auth.GoogleProvider
	cookies CookieConfig
	logger  *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	google *auth.GoogleProvider,
	cookies CookieConfig,
	logger *slog.Logger,
) *AuthHandler {
	if cookies.LandingPath == "" {
		cookies.LandingPath = "/todos/"
	}
	return &AuthHandler{
		auth:    authService,
		google:  google,
		cookies: cookies,
		logger:  logger,
	}
}

// TokenResponse is the body of a successful POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleRegister creates a password account.
//
// A taken username or email answers 400, not 409: existing clients of this
// endpoint treat any 4xx other than 400 as a server fault.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			var appErr *apperror.AppError
			errors.As(err, &appErr)
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "conflict", Message: appErr.Message})
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, user)
}

// HandleToken is the password login. The form encoding matches OAuth 2.0
// password-grant clients.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("body", "invalid form body"))
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, r, h.logger, apperror.Unauthorized(service.LoginFailedMessage))
		return
	}

	res, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, r, http.StatusOK, TokenResponse{AccessToken: res.Token, TokenType: "bearer"})
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and into
// the consent URL. The callback only proceeds when the two match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	consentURL, err := h.google.AuthURL(state)
	if err != nil {
		h.logger.Error("google login: provider not configured")
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Google sign-in is not configured",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, consentURL, http.StatusFound)
}

// HandleGoogleCallback completes the sign-in.
//
// FLOW:
//  1. state query must equal the state cookie
//  2. an error query (e.g. access_denied) ends the flow
//  3. exchange the code for a profile
//  4. find or create the account, issue a token
//  5. set the access_token cookie and redirect to the landing page
//
// Failures in 1-4 answer 400 and never set the session cookie. The cookie
// is readable by page scripts, which send it back as a bearer token.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sc, err := r.Cookie(stateCookie)
	if err != nil || sc.Value == "" || q.Get("state") != sc.Value {
		h.logger.Warn("google callback: state mismatch")
		h.callbackFailed(w, r, "invalid OAuth state")
		return
	}
	h.clearCookie(w, stateCookie, true)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization refused", slog.String("error", errParam))
		h.callbackFailed(w, r, "authorization was not granted")
		return
	}

	profile, err := h.google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Warn("google callback: exchange failed", slog.String("error", err.Error()))
		h.callbackFailed(w, r, callbackMessage(err))
		return
	}

	res, err := h.auth.CompleteExternalLogin(r.Context(), profile)
	if err != nil {
		h.logger.Error("google callback: completing login", slog.String("error", err.Error()))
		h.callbackFailed(w, r, callbackMessage(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.auth.TokenTTL().Seconds()),
		HttpOnly: false,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.cookies.LandingPath, http.StatusFound)
}

// HandleLogout deletes the session cookie. Tokens are stateless, so one
// already copied elsewhere stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, auth.AccessTokenCookie, false)
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) callbackFailed(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: "authentication_failed", Message: msg})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// callbackMessage keeps provider responses out of the client-facing text.
func callbackMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCode):
		return "missing authorization code"
	case errors.Is(err, auth.ErrNoEmailProvided):
		return "Google account has no email address"
	case errors.Is(err, auth.ErrProviderNotConfigured):
		return "Google sign-in is not configured"
	case errors.Is(err, auth.ErrTokenExchangeFailed):
		return "authorization code was rejected"
	case errors.Is(err, auth.ErrProviderError):
		return "could not reach Google"
	default:
		return "authentication failed"
	}
}
