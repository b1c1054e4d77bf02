package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct{ closed bool }

func (a *fakeAgent) Close() error {
	a.closed = true
	return nil
}

func TestPark_AcceptsUntilCapacity(t *testing.T) {
	r := New()
	for i := 0; i < MaxParked; i++ {
		ok := r.Park(idFor(i), "two-sum", &fakeAgent{})
		require.True(t, ok)
	}
	assert.False(t, r.Park("overflow", "two-sum", &fakeAgent{}))
	assert.Equal(t, MaxParked, r.Count())
}

func TestPark_RejectsDuplicateSessionID(t *testing.T) {
	r := New()
	require.True(t, r.Park("s1", "two-sum", &fakeAgent{}))
	assert.False(t, r.Park("s1", "two-sum", &fakeAgent{}))
}

func TestReclaim_ReturnsAndRemoves(t *testing.T) {
	r := New()
	a := &fakeAgent{}
	require.True(t, r.Park("s1", "two-sum", a))

	got := r.Reclaim("s1")
	require.NotNil(t, got)
	assert.Same(t, a, got)
	assert.Equal(t, 0, r.Count())

	assert.Nil(t, r.Reclaim("s1"))
}

func TestReclaim_UnknownSessionReturnsNil(t *testing.T) {
	r := New()
	assert.Nil(t, r.Reclaim("never-parked"))
}

func TestExpiry_ClosesAndEvictsStaleEntries(t *testing.T) {
	r := New()
	a := &fakeAgent{}
	require.True(t, r.Park("s1", "two-sum", a))
	r.entries["s1"].parkedAt = time.Now().Add(-ParkTTL - time.Second)

	assert.Nil(t, r.Reclaim("s1"))
	assert.True(t, a.closed)
}

func TestExpiry_FreesCapacityForNewParks(t *testing.T) {
	r := New()
	for i := 0; i < MaxParked; i++ {
		require.True(t, r.Park(idFor(i), "two-sum", &fakeAgent{}))
	}
	r.entries[idFor(0)].parkedAt = time.Now().Add(-ParkTTL - time.Second)

	assert.True(t, r.Park("new-session", "two-sum", &fakeAgent{}))
	assert.Equal(t, MaxParked, r.Count())
}

func idFor(i int) string {
	return string(rune('a' + i))
}
