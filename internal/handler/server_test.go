package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/handler"
	"github.com/pkordes/barcrawl/backend/internal/middleware"
)

const testSecret = "handler-test-secret"

// mockStopQueueServicer is a test double for handler.StopQueueServicer.
// Set only the method fields your test needs.
type mockStopQueueServicer struct {
	create  func(ctx context.Context, eventID, barID uuid.UUID) (domain.Stop, error)
	getByID func(ctx context.Context, stopID uuid.UUID) (domain.StopDetail, error)
	delete  func(ctx context.Context, stopID uuid.UUID) error
	enqueue func(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error)
	serve   func(ctx context.Context, stopID uuid.UUID) (domain.Stop, bool, error)
	vacate  func(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error)
}

func (m *mockStopQueueServicer) Create(ctx context.Context, eventID, barID uuid.UUID) (domain.Stop, error) {
	return m.create(ctx, eventID, barID)
}
func (m *mockStopQueueServicer) GetByID(ctx context.Context, stopID uuid.UUID) (domain.StopDetail, error) {
	return m.getByID(ctx, stopID)
}
func (m *mockStopQueueServicer) Delete(ctx context.Context, stopID uuid.UUID) error {
	return m.delete(ctx, stopID)
}
func (m *mockStopQueueServicer) Enqueue(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error) {
	return m.enqueue(ctx, stopID, groupID)
}
func (m *mockStopQueueServicer) Serve(ctx context.Context, stopID uuid.UUID) (domain.Stop, bool, error) {
	return m.serve(ctx, stopID)
}
func (m *mockStopQueueServicer) Vacate(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error) {
	return m.vacate(ctx, stopID, groupID)
}

// compile-time check: mockStopQueueServicer must satisfy handler.StopQueueServicer.
var _ handler.StopQueueServicer = (*mockStopQueueServicer)(nil)

// mockGroupServicer is a test double for handler.GroupServicer.
type mockGroupServicer struct {
	currentStop func(ctx context.Context, groupID uuid.UUID) (domain.Stop, error)
	listByEvent func(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error)
	reroute     func(ctx context.Context, groupID uuid.UUID) (domain.Group, error)
}

func (m *mockGroupServicer) CurrentStop(ctx context.Context, groupID uuid.UUID) (domain.Stop, error) {
	return m.currentStop(ctx, groupID)
}
func (m *mockGroupServicer) ListByEvent(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error) {
	return m.listByEvent(ctx, eventID, p)
}
func (m *mockGroupServicer) Reroute(ctx context.Context, groupID uuid.UUID) (domain.Group, error) {
	return m.reroute(ctx, groupID)
}

var _ handler.GroupServicer = (*mockGroupServicer)(nil)

// mockExportServicer is a test double for handler.ExportServicer.
type mockExportServicer struct {
	export func(ctx context.Context, eventID uuid.UUID) ([]domain.ExportRow, error)
}

func (m *mockExportServicer) Export(ctx context.Context, eventID uuid.UUID) ([]domain.ExportRow, error) {
	return m.export(ctx, eventID)
}

var _ handler.ExportServicer = (*mockExportServicer)(nil)

// ---- helpers ---------------------------------------------------------------

func newRouter(stops handler.StopQueueServicer, groups handler.GroupServicer) http.Handler {
	return newRouterWithExport(stops, groups, nil)
}

func newRouterWithExport(stops handler.StopQueueServicer, groups handler.GroupServicer, export handler.ExportServicer) http.Handler {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return handler.NewRouter(handler.NewServer(stops, groups, export, log), handler.RouterConfig{
		JWTSecret:    testSecret,
		CORSOrigins:  []string{"http://localhost:5173"},
		MaxBodyBytes: 1 << 10,
	})
}

func bearer(t *testing.T, role middleware.Role) string {
	t.Helper()
	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

// do sends a request through h as role. An empty role sends no token.
func do(t *testing.T, h http.Handler, method, path string, body io.Reader, role middleware.Role) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", bearer(t, role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// jsonBody encodes v as a JSON request body.
func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func stopFixture() domain.Stop {
	return domain.Stop{
		ID:              uuid.New(),
		EventID:         uuid.New(),
		BarID:           uuid.New(),
		Position:        1,
		Bar:             &domain.Bar{Name: "Anchor", Coordinates: domain.Coordinates{Latitude: 51.5, Longitude: -0.1}},
		CurrentGroups:   []uuid.UUID{uuid.New()},
		WaitingGroups:   []uuid.UUID{},
		InTransitGroups: []uuid.UUID{},
	}
}
