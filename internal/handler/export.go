package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"event_id", "event_name", "group_id", "group_number", "group_name",
	"status", "stop_id", "bar_name", "visited_bars", "stops_remaining",
	"last_status_update",
}

// ExportRow is one element of the JSON export.
type ExportRow struct {
	EventID          uuid.UUID          `json:"event_id"`
	EventName        string             `json:"event_name"`
	GroupID          uuid.UUID          `json:"group_id"`
	GroupNumber      int                `json:"group_number"`
	GroupName        string             `json:"group_name"`
	Status           domain.GroupStatus `json:"status"`
	StopID           *uuid.UUID         `json:"stop_id,omitempty"`
	BarName          *string            `json:"bar_name,omitempty"`
	VisitedBars      []string           `json:"visited_bars"`
	StopsRemaining   int                `json:"stops_remaining"`
	LastStatusUpdate time.Time          `json:"last_status_update"`
}

// GetEventExport handles GET /events/{eventId}/export.
// It returns every group's progress through the event as a flat table.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) GetEventExport(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventId")
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		writeErrorBody(w, http.StatusUnprocessableEntity, "validation_error", "format must be json or csv")
		return
	}

	rows, err := s.export.Export(r.Context(), eventID)
	if err != nil {
		s.respondError(w, r, err, "event not found")
		return
	}

	if format == "csv" {
		writeCSV(w, eventID, rows)
		return
	}
	out := make([]ExportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, exportRowToResponse(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeCSV encodes rows as a CSV attachment.
// Visited bars within a row are pipe-separated ("|") to keep each group on a single CSV line.
func writeCSV(w http.ResponseWriter, eventID uuid.UUID, rows []domain.ExportRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	// bytes.Buffer writes never fail.
	_ = cw.Write(csvHeaders)
	for _, row := range rows {
		_ = cw.Write(exportRowToCSVRecord(row))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="event-`+eventID.String()+`.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// exportRowToResponse maps a domain.ExportRow to its JSON shape.
// An empty bar name becomes a nil pointer (omitted in JSON).
func exportRowToResponse(r domain.ExportRow) ExportRow {
	row := ExportRow{
		EventID:          r.EventID,
		EventName:        r.EventName,
		GroupID:          r.GroupID,
		GroupNumber:      r.GroupNumber,
		GroupName:        r.GroupName,
		Status:           r.Status,
		StopID:           r.StopID,
		VisitedBars:      r.VisitedBars,
		StopsRemaining:   r.StopsRemaining,
		LastStatusUpdate: r.LastStatusUpdate,
	}
	if r.BarName != "" {
		row.BarName = &r.BarName
	}
	return row
}

// exportRowToCSVRecord encodes a domain.ExportRow as a flat string slice.
// A nil stop is encoded as an empty string.
func exportRowToCSVRecord(r domain.ExportRow) []string {
	stopID := ""
	if r.StopID != nil {
		stopID = r.StopID.String()
	}
	return []string{
		r.EventID.String(),
		r.EventName,
		r.GroupID.String(),
		strconv.Itoa(r.GroupNumber),
		r.GroupName,
		string(r.Status),
		stopID,
		r.BarName,
		strings.Join(r.VisitedBars, "|"),
		strconv.Itoa(r.StopsRemaining),
		r.LastStatusUpdate.UTC().Format(time.RFC3339),
	}
}
