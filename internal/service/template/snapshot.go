package template

import (
	"context"
	"strings"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
)

// Snapshot is a template captured from an existing project. It is returned to
// the caller and never stored, so it cannot be listed or stamped by ID.
type Snapshot struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Tasks           []TaskTemplate `json:"tasks"`
	EstimatedHours  int            `json:"estimatedHours"`
	SourceProjectID string         `json:"sourceProjectId"`
	CreatedBy       string         `json:"createdBy"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// SnapshotInput names the captured template and its source project.
type SnapshotInput struct {
	ProjectID   string
	Name        string
	Description string
}

// FromProject captures the tasks of a project as a template structure, in
// creation order. Admin only.
func (s Service) FromProject(ctx context.Context, p domain.Principal, input SnapshotInput) (Snapshot, error) {
	if p.UserID == "" {
		return Snapshot{}, domain.ErrUnauthenticated
	}
	if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
		return Snapshot{}, err
	}
	verr := &domain.ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		verr.Add("name", "template name is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		verr.Add("description", "template description is required")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		verr.Add("projectId", "is required")
	}
	if err := verr.Err(); err != nil {
		return Snapshot{}, err
	}

	project, err := s.store.GetProjectByID(ctx, input.ProjectID)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, _, err := s.store.ListTasks(ctx, repository.Unrestricted(), repository.TaskFilter{ProjectID: project.ID},
		repository.ListOptions{SortBy: "createdAt", SortOrder: repository.SortAsc})
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Name:            name,
		Description:     description,
		Tasks:           make([]TaskTemplate, 0, len(tasks)),
		SourceProjectID: project.ID,
		CreatedBy:       p.UserID,
		CreatedAt:       s.now().UTC(),
	}
	for _, t := range tasks {
		entry := TaskTemplate{
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
			Tags:        append([]string{}, t.Tags...),
		}
		if t.EstimatedHours != nil {
			entry.EstimatedHours = *t.EstimatedHours
		}
		snap.Tasks = append(snap.Tasks, entry)
		snap.EstimatedHours += entry.EstimatedHours
	}
	s.log.Info("template captured from project", "project_id", project.ID, "tasks", len(snap.Tasks), "actor", p.UserID)
	return snap, nil
}
