package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pkordes/barcrawl/backend/internal/domain"
)

func TestStop_QueueOf(t *testing.T) {
	cur, wait, transit := uuid.New(), uuid.New(), uuid.New()
	st := domain.Stop{
		CurrentGroups:   []uuid.UUID{cur},
		WaitingGroups:   []uuid.UUID{wait},
		InTransitGroups: []uuid.UUID{transit},
	}

	assert.Equal(t, domain.QueueCurrent, st.QueueOf(cur))
	assert.Equal(t, domain.QueueWaiting, st.QueueOf(wait))
	assert.Equal(t, domain.QueueInTransit, st.QueueOf(transit))
	assert.Equal(t, domain.QueueNone, st.QueueOf(uuid.New()))
}

func TestStop_Remove(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	st := domain.Stop{
		CurrentGroups:   []uuid.UUID{a},
		WaitingGroups:   []uuid.UUID{b, c, a},
		InTransitGroups: []uuid.UUID{},
	}

	assert.True(t, st.Remove(a))
	assert.Empty(t, st.CurrentGroups)
	assert.Equal(t, []uuid.UUID{b, c}, st.WaitingGroups, "order of the rest is preserved")

	assert.False(t, st.Remove(uuid.New()))
	assert.Equal(t, []uuid.UUID{b, c}, st.WaitingGroups)
}
