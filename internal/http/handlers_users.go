package httpx

import (
	"net/http"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/user"
)

func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	opts, err := listOptions(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	q := req.URL.Query()
	verr := &domain.ValidationError{}
	filter := repository.UserFilter{
		Role:     domain.GlobalRole(q.Get("role")),
		IsActive: queryBool(q.Get("isActive"), "isActive", verr),
		Search:   q.Get("search"),
	}
	if err := verr.Err(); err != nil {
		r.writeError(w, req, err)
		return
	}
	page, err := r.users.List(req.Context(), principal(req), filter, opts)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (r *Router) handleSearchUsers(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	verr := &domain.ValidationError{}
	limit := queryInt(q.Get("limit"), "limit", verr)
	if err := verr.Err(); err != nil {
		r.writeError(w, req, err)
		return
	}
	users, err := r.users.Search(req.Context(), principal(req), q.Get("q"), q.Get("projectId"), limit)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (r *Router) handleInviteUser(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email     string            `json:"email"`
		FirstName string            `json:"firstName"`
		LastName  string            `json:"lastName"`
		Role      domain.GlobalRole `json:"role"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	invitation, err := r.users.Invite(req.Context(), principal(req), user.InviteInput{
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Role:      payload.Role,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, invitation)
}

func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	profile, err := r.users.Get(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (r *Router) handleUpdateUser(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		FirstName *string            `json:"firstName"`
		LastName  *string            `json:"lastName"`
		Role      *domain.GlobalRole `json:"role"`
		IsActive  *bool              `json:"isActive"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	updated, err := r.users.Update(req.Context(), principal(req), pathVar(req, "id"), user.UpdateInput{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Role:      payload.Role,
		IsActive:  payload.IsActive,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleDeactivateUser(w http.ResponseWriter, req *http.Request) {
	if err := r.users.Deactivate(req.Context(), principal(req), pathVar(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleUserProjects(w http.ResponseWriter, req *http.Request) {
	opts, err := listOptions(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	page, err := r.projects.ListForUser(req.Context(), principal(req), pathVar(req, "id"), opts)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
