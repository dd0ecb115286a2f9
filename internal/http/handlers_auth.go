package httpx

import (
	"net/http"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/service/auth"
)

type sessionResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
}

func newSessionResponse(user *domain.User, session auth.Session) sessionResponse {
	return sessionResponse{
		User:      user,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	user, session, err := r.auth.Register(req.Context(), auth.RegisterInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(user, session))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	user, session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(user, session))
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	user, err := r.auth.Me(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	if err := r.auth.ChangePassword(req.Context(), principal(req), payload.CurrentPassword, payload.NewPassword); err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
