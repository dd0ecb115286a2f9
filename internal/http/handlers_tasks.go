package httpx

import (
	"net/http"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/task"
)

type taskPayload struct {
	ProjectID      string             `json:"projectId"`
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Status         *domain.TaskStatus `json:"status"`
	Priority       *domain.Priority   `json:"priority"`
	AssigneeID     nullableString     `json:"assigneeId"`
	DueDate        *flexTime          `json:"dueDate"`
	EstimatedHours *int               `json:"estimatedHours"`
	ActualHours    *int               `json:"actualHours"`
	Tags           []string           `json:"tags"`
}

func (r *Router) handleListTasks(w http.ResponseWriter, req *http.Request) {
	opts, err := listOptions(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	q := req.URL.Query()
	filter := repository.TaskFilter{
		Status:     domain.TaskStatus(q.Get("status")),
		Priority:   domain.Priority(q.Get("priority")),
		ProjectID:  q.Get("projectId"),
		AssigneeID: q.Get("assigneeId"),
		Search:     q.Get("search"),
	}
	page, err := r.tasks.List(req.Context(), principal(req), filter, opts)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (r *Router) handleCreateTask(w http.ResponseWriter, req *http.Request) {
	var payload taskPayload
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	input := task.CreateInput{
		ProjectID:      payload.ProjectID,
		DueDate:        payload.DueDate.ptr(),
		EstimatedHours: payload.EstimatedHours,
		Tags:           payload.Tags,
	}
	if payload.Title != nil {
		input.Title = *payload.Title
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
	if assignee := payload.AssigneeID.ptr(); assignee != nil && *assignee != "" {
		input.AssigneeID = assignee
	}
	created, err := r.tasks.Create(req.Context(), principal(req), input)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleGetTask(w http.ResponseWriter, req *http.Request) {
	detail, err := r.tasks.Get(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (r *Router) handleUpdateTask(w http.ResponseWriter, req *http.Request) {
	var payload taskPayload
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	updated, err := r.tasks.Update(req.Context(), principal(req), pathVar(req, "id"), task.UpdateInput{
		Title:          payload.Title,
		Description:    payload.Description,
		Status:         payload.Status,
		Priority:       payload.Priority,
		AssigneeID:     payload.AssigneeID.ptr(),
		DueDate:        payload.DueDate.ptr(),
		EstimatedHours: payload.EstimatedHours,
		ActualHours:    payload.ActualHours,
		Tags:           payload.Tags,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleDeleteTask(w http.ResponseWriter, req *http.Request) {
	if err := r.tasks.Delete(req.Context(), principal(req), pathVar(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleListComments(w http.ResponseWriter, req *http.Request) {
	comments, err := r.tasks.ListComments(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (r *Router) handleAddComment(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Content string             `json:"content"`
		Type    domain.CommentType `json:"type"`
	}
	if err := decodeJSON(req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	comment, err := r.tasks.AddComment(req.Context(), principal(req), pathVar(req, "id"), task.CommentInput{
		Content: payload.Content,
		Type:    payload.Type,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
