package store

import (
	"testing"
	"time"

	"github.com/phrazzld/detailer-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, ForCustomer("U1").Validate())
	assert.NoError(t, ForProvider("P1").Validate())
	assert.ErrorIs(t, Filter{}.Validate(), ErrInvalidFilter)
	assert.ErrorIs(t, Filter{CustomerID: "U1", ProviderID: "P1"}.Validate(), ErrInvalidFilter)
}

func TestFilter_Matches(t *testing.T) {
	req := &domain.Request{CustomerID: "U1", ProviderID: "P1"}

	assert.True(t, ForCustomer("U1").Matches(req))
	assert.False(t, ForCustomer("U2").Matches(req))
	assert.False(t, ForCustomer("P1").Matches(req))
	assert.True(t, ForProvider("P1").Matches(req))
	assert.False(t, ForProvider("U1").Matches(req))
	assert.False(t, Filter{}.Matches(req))

	assert.Equal(t, domain.RoleCustomer, ForCustomer("U1").Role())
	assert.Equal(t, domain.RoleProvider, ForProvider("P1").Role())
	assert.Equal(t, "provider=P1", ForProvider("P1").String())
}

func TestSortRequests(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reqs := []*domain.Request{
		{ID: "a", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(time.Hour)},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
		{ID: "d", CreatedAt: base.Add(-time.Hour)},
	}

	SortRequests(reqs)

	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids)
}
