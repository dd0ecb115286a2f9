package httpx

import (
	"net/http"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

func (r *Router) handleListNotifications(w http.ResponseWriter, req *http.Request) {
	opts, err := listOptions(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	q := req.URL.Query()
	verr := &domain.ValidationError{}
	filter := repository.NotificationFilter{
		IsRead: queryBool(q.Get("isRead"), "isRead", verr),
		Type:   domain.NotificationType(q.Get("type")),
	}
	if err := verr.Err(); err != nil {
		r.writeError(w, req, err)
		return
	}
	page, err := r.notifications.List(req.Context(), principal(req), filter, opts)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (r *Router) handleUnreadCount(w http.ResponseWriter, req *http.Request) {
	count, err := r.notifications.UnreadCount(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (r *Router) handleMarkAllRead(w http.ResponseWriter, req *http.Request) {
	updated, err := r.notifications.MarkAllRead(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (r *Router) handleDeleteRead(w http.ResponseWriter, req *http.Request) {
	deleted, err := r.notifications.DeleteRead(req.Context(), principal(req))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (r *Router) handleMarkRead(w http.ResponseWriter, req *http.Request) {
	if err := r.notifications.MarkRead(req.Context(), principal(req), pathVar(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleDeleteNotification(w http.ResponseWriter, req *http.Request) {
	if err := r.notifications.Delete(req.Context(), principal(req), pathVar(req, "id")); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
