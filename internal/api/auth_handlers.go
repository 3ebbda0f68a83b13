package api

import (
	"net/http"

	"github.com/fidde/codesnip/pkg/models"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// register creates an account.
// POST /api/v1/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	user, token, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.setSessionCookie(w, token)
	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// login signs a user in.
// POST /api/v1/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	user, token, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.setSessionCookie(w, token)
	respondJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// logout ends the current session.
// POST /api/v1/auth/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.respondErr(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me returns the signed-in user.
// GET /api/v1/auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if s.cfg.SessionTTL > 0 {
		c.MaxAge = int(s.cfg.SessionTTL.Seconds())
	}
	http.SetCookie(w, c)
}
