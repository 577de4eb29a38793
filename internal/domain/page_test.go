package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNewPaginationParams(t *testing.T) {
	tests := []struct {
		name        string
		page, limit *int
		want        domain.PaginationParams
		offset      int
	}{
		{"defaults", nil, nil, domain.PaginationParams{Page: 1, Limit: 20}, 0},
		{"explicit", intPtr(3), intPtr(10), domain.PaginationParams{Page: 3, Limit: 10}, 20},
		{"limit capped", intPtr(2), intPtr(500), domain.PaginationParams{Page: 2, Limit: 100}, 100},
		{"non-positive ignored", intPtr(0), intPtr(-4), domain.PaginationParams{Page: 1, Limit: 20}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.NewPaginationParams(tc.page, tc.limit)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.offset, got.Offset())
		})
	}
}
