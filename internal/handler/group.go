package handler

import (
	"net/http"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

// Pagination describes the page a list response holds.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// GroupList is the body of GET /events/{eventId}/groups.
type GroupList struct {
	Data       []domain.Group `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// GetGroupStop handles GET /groups/{groupId}/stop.
func (s *Server) GetGroupStop(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathUUID(w, r, "groupId")
	if !ok {
		return
	}

	stop, err := s.groups.CurrentStop(r.Context(), groupID)
	if err != nil {
		s.respondError(w, r, err, "group or stop not found")
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// RerouteGroup handles POST /groups/{groupId}/route.
// Routing runs in the background, so success is 202 Accepted.
func (s *Server) RerouteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathUUID(w, r, "groupId")
	if !ok {
		return
	}

	g, err := s.groups.Reroute(r.Context(), groupID)
	if err != nil {
		s.respondError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusAccepted, g)
}

// ListEventGroups handles GET /events/{eventId}/groups.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListEventGroups(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventId")
	if !ok {
		return
	}

	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	params := domain.NewPaginationParams(page, limit)

	groups, total, err := s.groups.ListByEvent(r.Context(), eventID, params)
	if err != nil {
		s.respondError(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, GroupList{
		Data:       groups,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}
