package httpx

import (
	"net/http"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/project"
)

type projectPayload struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *domain.ProjectStatus `json:"status"`
	Priority    *domain.Priority      `json:"priority"`
	StartDate   *flexTime             `json:"startDate"`
	EndDate     *flexTime             `json:"endDate"`
	Budget      *float64              `json:"budget"`
	Progress    *int                  `json:"progress"`
}

func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	opts, err := listOptions(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	q := req.URL.Query()
	filter := repository.ProjectFilter{
		Status:   domain.ProjectStatus(q.Get("status")),
		Priority: domain.Priority(q.Get("priority")),
		Search:   q.Get("search"),
	}
	page, err := r.projects.List(req.Context(), principal(req), filter, opts)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	var payload projectPayload
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	input := project.CreateInput{
		StartDate: payload.StartDate.ptr(),
		EndDate:   payload.EndDate.ptr(),
		Budget:    payload.Budget,
	}
	if payload.Name != nil {
		input.Name = *payload.Name
	}
	if payload.Description != nil {
		input.Description = *payload.Description
	}
	if payload.Status != nil {
		input.Status = *payload.Status
	}
	if payload.Priority != nil {
		input.Priority = *payload.Priority
	}
	created, err := r.projects.Create(req.Context(), principal(req), input)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleGetProject(w http.ResponseWriter, req *http.Request) {
	detail, err := r.projects.Get(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	var payload projectPayload
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	updated, err := r.projects.Update(req.Context(), principal(req), pathVar(req, "id"), project.UpdateInput{
		Name:        payload.Name,
		Description: payload.Description,
		Status:      payload.Status,
		Priority:    payload.Priority,
		StartDate:   payload.StartDate.ptr(),
		EndDate:     payload.EndDate.ptr(),
		Budget:      payload.Budget,
		Progress:    payload.Progress,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleDeleteProject(w http.ResponseWriter, req *http.Request) {
	if err := r.projects.Delete(req.Context(), principal(req), pathVar(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleProjectProgress(w http.ResponseWriter, req *http.Request) {
	progress, err := r.analytics.ProjectProgressFor(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (r *Router) handleListMembers(w http.ResponseWriter, req *http.Request) {
	members, err := r.members.ListMembers(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (r *Router) handleAddMember(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		UserID string             `json:"userId"`
		Role   domain.ProjectRole `json:"role"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	member, err := r.members.AddMember(req.Context(), principal(req), pathVar(req, "id"), payload.UserID, payload.Role)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (r *Router) handleChangeMemberRole(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Role domain.ProjectRole `json:"role"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	member, err := r.members.ChangeMemberRole(req.Context(), principal(req), pathVar(req, "id"), pathVar(req, "userId"), payload.Role)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (r *Router) handleRemoveMember(w http.ResponseWriter, req *http.Request) {
	unassigned, err := r.members.RemoveMember(req.Context(), principal(req), pathVar(req, "id"), pathVar(req, "userId"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	if unassigned == nil {
		unassigned = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"unassignedTaskIds": unassigned})
}
