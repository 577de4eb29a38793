package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/handler"
	"github.com/pkordes/barcrawl/backend/internal/middleware"
)

func TestGetGroupStop_200(t *testing.T) {
	fixture := stopFixture()
	groups := &mockGroupServicer{
		currentStop: func(context.Context, uuid.UUID) (domain.Stop, error) { return fixture, nil },
	}

	rec := do(t, newRouter(nil, groups), http.MethodGet, fmt.Sprintf("/groups/%s/stop", uuid.New()), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Stop
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, fixture.ID, got.ID)
	require.NotNil(t, got.Bar)
	assert.Equal(t, "Anchor", got.Bar.Name)
}

func TestGetGroupStop_404_InLimbo(t *testing.T) {
	groups := &mockGroupServicer{
		currentStop: func(context.Context, uuid.UUID) (domain.Stop, error) { return domain.Stop{}, domain.ErrNotFound },
	}

	rec := do(t, newRouter(nil, groups), http.MethodGet, fmt.Sprintf("/groups/%s/stop", uuid.New()), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRerouteGroup_202(t *testing.T) {
	id := uuid.New()
	groups := &mockGroupServicer{
		reroute: func(_ context.Context, groupID uuid.UUID) (domain.Group, error) {
			return domain.Group{ID: groupID, Status: domain.GroupAtBar}, nil
		},
	}

	rec := do(t, newRouter(nil, groups), http.MethodPost, fmt.Sprintf("/groups/%s/route", id), nil, middleware.RoleCoordinator)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var got domain.Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, id, got.ID)
}

func TestRerouteGroup_CoordinatorOnly(t *testing.T) {
	rec := do(t, newRouter(nil, &mockGroupServicer{}), http.MethodPost,
		fmt.Sprintf("/groups/%s/route", uuid.New()), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRerouteGroup_409(t *testing.T) {
	groups := &mockGroupServicer{
		reroute: func(context.Context, uuid.UUID) (domain.Group, error) {
			return domain.Group{}, fmt.Errorf("%w: group g is transit, not leaving a bar", domain.ErrDomainViolation)
		},
	}

	rec := do(t, newRouter(nil, groups), http.MethodPost, fmt.Sprintf("/groups/%s/route", uuid.New()), nil, middleware.RoleCoordinator)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestListEventGroups_200(t *testing.T) {
	eventID := uuid.New()
	groups := &mockGroupServicer{
		listByEvent: func(_ context.Context, id uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error) {
			assert.Equal(t, eventID, id)
			assert.Equal(t, domain.PaginationParams{Page: 1, Limit: 20}, p)
			return []domain.Group{
				{ID: uuid.New(), EventID: id, Number: 1, Status: domain.GroupLimbo, StopsVisited: []uuid.UUID{}},
				{ID: uuid.New(), EventID: id, Number: 2, Status: domain.GroupTransit, StopsVisited: []uuid.UUID{}},
			}, 2, nil
		},
	}

	rec := do(t, newRouter(nil, groups), http.MethodGet, fmt.Sprintf("/events/%s/groups", eventID), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusOK, rec.Code)
	var got handler.GroupList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Data, 2)
	assert.Equal(t, domain.GroupTransit, got.Data[1].Status)
	assert.Equal(t, handler.Pagination{Page: 1, Limit: 20, Total: 2}, got.Pagination)
}

func TestListEventGroups_PageAndLimit(t *testing.T) {
	var gotParams domain.PaginationParams
	groups := &mockGroupServicer{
		listByEvent: func(_ context.Context, _ uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error) {
			gotParams = p
			return []domain.Group{}, 250, nil
		},
	}

	rec := do(t, newRouter(nil, groups), http.MethodGet,
		fmt.Sprintf("/events/%s/groups?page=3&limit=500", uuid.New()), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 3, Limit: 100}, gotParams, "limit is capped at 100")
}

func TestListEventGroups_422_BadPage(t *testing.T) {
	rec := do(t, newRouter(nil, &mockGroupServicer{}), http.MethodGet,
		fmt.Sprintf("/events/%s/groups?page=first", uuid.New()), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid format for parameter page", decodeError(t, rec).Message)
}

func TestListEventGroups_404(t *testing.T) {
	groups := &mockGroupServicer{
		listByEvent: func(context.Context, uuid.UUID, domain.PaginationParams) ([]domain.Group, int64, error) {
			return nil, 0, domain.ErrNotFound
		},
	}

	rec := do(t, newRouter(nil, groups), http.MethodGet, fmt.Sprintf("/events/%s/groups", uuid.New()), nil, middleware.RoleParticipant)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "event not found", decodeError(t, rec).Message)
}
