package handlers

import (
	"net/http"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/auth"
)

// handleLogin exchanges the staff password for a session cookie
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.Log, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.Log.Warn("Rejected staff login", "remote", clientAddr(r))
		respondError(w, h.Log, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, token)
	respondSuccess(w, "Logged in")
}

// handleLogout clears the session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}

	auth.ClearSessionCookie(w)
	respondSuccess(w, "Logged out")
}
