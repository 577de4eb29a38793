package handler

import (
	"net/http"

	"github.com/google/uuid"
)

// CreateStopRequest is the body of POST /stops.
type CreateStopRequest struct {
	EventID uuid.UUID `json:"event_id"`
	BarID   uuid.UUID `json:"bar_id"`
}

// CreateStop handles POST /stops.
func (s *Server) CreateStop(w http.ResponseWriter, r *http.Request) {
	var body CreateStopRequest
	if !decodeBody(w, r, &body) {
		return
	}

	created, err := s.stops.Create(r.Context(), body.EventID, body.BarID)
	if err != nil {
		s.respondError(w, r, err, "event or bar not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetStop handles GET /stops/{stopId}.
func (s *Server) GetStop(w http.ResponseWriter, r *http.Request) {
	stopID, ok := pathUUID(w, r, "stopId")
	if !ok {
		return
	}

	detail, err := s.stops.GetByID(r.Context(), stopID)
	if err != nil {
		s.respondError(w, r, err, "stop not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeleteStop handles DELETE /stops/{stopId}.
func (s *Server) DeleteStop(w http.ResponseWriter, r *http.Request) {
	stopID, ok := pathUUID(w, r, "stopId")
	if !ok {
		return
	}

	if err := s.stops.Delete(r.Context(), stopID); err != nil {
		s.respondError(w, r, err, "stop not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EnqueueGroup handles POST /stops/{stopId}/groups/{groupId}/enqueue.
func (s *Server) EnqueueGroup(w http.ResponseWriter, r *http.Request) {
	stopID, groupID, ok := stopAndGroup(w, r)
	if !ok {
		return
	}

	stop, err := s.stops.Enqueue(r.Context(), stopID, groupID)
	if err != nil {
		s.respondError(w, r, err, "stop or group not found")
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// ServeGroup handles POST /stops/{stopId}/serve.
// Responds 204 with no body when nobody was waiting.
func (s *Server) ServeGroup(w http.ResponseWriter, r *http.Request) {
	stopID, ok := pathUUID(w, r, "stopId")
	if !ok {
		return
	}

	stop, served, err := s.stops.Serve(r.Context(), stopID)
	if err != nil {
		s.respondError(w, r, err, "stop not found")
		return
	}
	if !served {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// VacateGroup handles POST /stops/{stopId}/groups/{groupId}/vacate.
func (s *Server) VacateGroup(w http.ResponseWriter, r *http.Request) {
	stopID, groupID, ok := stopAndGroup(w, r)
	if !ok {
		return
	}

	stop, err := s.stops.Vacate(r.Context(), stopID, groupID)
	if err != nil {
		s.respondError(w, r, err, "stop or group not found")
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

func stopAndGroup(w http.ResponseWriter, r *http.Request) (stopID, groupID uuid.UUID, ok bool) {
	if stopID, ok = pathUUID(w, r, "stopId"); !ok {
		return
	}
	groupID, ok = pathUUID(w, r, "groupId")
	return
}
