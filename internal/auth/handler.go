package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spendlog/service/internal/response"
)

const stateCookie = "oauth_state"

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc          *Service
	secureCookie bool
}

// NewHandler creates a new auth Handler. secureCookie marks the state cookie
// Secure and should be set when served over HTTPS.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/google/login", h.Login)
	r.Get("/google/callback", h.Callback)
}

// Login godoc
//
//	@Summary		Start Google sign-in
//	@Description	Redirects to Google with a state value that is also stored in a short-lived cookie.
//	@Tags			auth
//	@Success		302
//	@Router			/auth/google/login [get]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state, redirect := h.svc.Begin()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Callback godoc
//
//	@Summary		Finish Google sign-in
//	@Description	Verifies the state, exchanges the code, creates or links the user and returns a session token.
//	@Tags			auth
//	@Produce		json
//	@Param			state	query		string	true	"State from the login redirect"
//	@Param			code	query		string	true	"Authorization code"
//	@Success		200		{object}	response.Envelope{data=Session}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/auth/google/callback [get]
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cookie, err := r.Cookie(stateCookie)
	if err != nil || q.Get("state") == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(q.Get("state"))) != 1 {
		response.BadRequest(w, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.secureCookie})

	if reason := q.Get("error"); reason != "" {
		response.Unauthorized(w, "sign-in was cancelled: "+reason)
		return
	}

	session, err := h.svc.Complete(r.Context(), q.Get("code"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.OK(w, session)
}
