package httpx

import (
	"net/http"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/service/template"
)

func (r *Router) handleListTemplates(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.templates.List())
}

func (r *Router) handleGetTemplate(w http.ResponseWriter, req *http.Request) {
	tmpl, err := r.templates.Get(pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (r *Router) handleCreateFromTemplate(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Priority    domain.Priority `json:"priority"`
		StartDate   *flexTime       `json:"startDate"`
		EndDate     *flexTime       `json:"endDate"`
		Budget      *float64        `json:"budget"`
		MemberIDs   []string        `json:"memberIds"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	result, err := r.templates.CreateProject(req.Context(), principal(req), pathVar(req, "id"), template.CreateInput{
		Name:        payload.Name,
		Description: payload.Description,
		Priority:    payload.Priority,
		StartDate:   payload.StartDate.ptr(),
		EndDate:     payload.EndDate.ptr(),
		Budget:      payload.Budget,
		MemberIDs:   payload.MemberIDs,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (r *Router) handleCaptureTemplate(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		ProjectID   string `json:"projectId"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	snap, err := r.templates.FromProject(req.Context(), principal(req), template.SnapshotInput{
		ProjectID:   payload.ProjectID,
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"template": snap})
}
