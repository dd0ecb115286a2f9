package httpx

import (
	"net/http"

	"github.com/splax/taskhub/internal/domain"
)

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	dashboard, err := r.analytics.Dashboard(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (r *Router) handleTeamAnalytics(w http.ResponseWriter, req *http.Request) {
	report, err := r.analytics.TeamAnalytics(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (r *Router) handleOverview(w http.ResponseWriter, req *http.Request) {
	verr := &domain.ValidationError{}
	days := queryInt(req.URL.Query().Get("days"), "days", verr)
	if err := verr.Err(); err != nil {
		r.writeError(w, req, err)
		return
	}
	overview, err := r.analytics.Overview(req.Context(), principal(req), days)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (r *Router) handleActivity(w http.ResponseWriter, req *http.Request) {
	tasks, err := r.analytics.RecentActivity(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (r *Router) handleProjectAnalytics(w http.ResponseWriter, req *http.Request) {
	report, err := r.analytics.ProjectAnalytics(req.Context(), principal(req), pathVar(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
