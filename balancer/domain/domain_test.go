package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpoint(t *testing.T) {
	ep, err := NewEndpoint(" http://localhost:7001/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7001", ep.String())
	assert.True(t, ep.Healthy(), "endpoints start healthy")

	for _, bad := range []string{"localhost:7001", "ftp://x", "http://", "::"} {
		_, err := NewEndpoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestEndpoint_ReleaseNeverGoesNegative(t *testing.T) {
	ep, err := NewEndpoint("http://a")
	require.NoError(t, err)

	ep.Release()
	assert.Equal(t, int64(0), ep.Active())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep.Acquire()
			ep.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), ep.Active())
}

func TestEndpoint_FailureSuccessAndBreaker(t *testing.T) {
	ep, err := NewEndpoint("http://a")
	require.NoError(t, err)
	now := time.Unix(1000, 0)

	assert.Equal(t, int64(1), ep.RecordFailure())
	assert.Equal(t, int64(2), ep.RecordFailure())
	assert.False(t, ep.Healthy())

	ep.OpenBreaker(now.Add(15 * time.Second))
	assert.True(t, ep.BreakerOpen(now))
	assert.False(t, ep.BreakerOpen(now.Add(15*time.Second)))

	ep.RecordSuccess(12 * time.Millisecond)
	assert.True(t, ep.Healthy())
	assert.False(t, ep.BreakerOpen(now))
	assert.Equal(t, Status{Health: 1, Failures: 0, LatencyMS: 12, Connections: 0}, ep.Snapshot())
}

func TestRegistry_OrderAndHealthy(t *testing.T) {
	reg, err := NewRegistry([]string{"http://a", "", "http://b", "http://c"})
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())

	reg.Endpoints()[1].SetHealthy(false)
	healthy := reg.Healthy()
	require.Len(t, healthy, 2)
	assert.Equal(t, "http://a", healthy[0].String())
	assert.Equal(t, "http://c", healthy[1].String())
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]string{"http://a", "http://a/"})
	assert.Error(t, err)
}

func TestRegistry_RebuildKeepsEndpointState(t *testing.T) {
	reg, err := NewRegistry([]string{"http://a", "http://b"})
	require.NoError(t, err)
	a := reg.Lookup("http://a")
	a.Acquire()
	a.SetHealthy(false)

	next, err := reg.Rebuild([]string{"http://b", "http://a", "http://c"})
	require.NoError(t, err)
	require.Equal(t, 3, next.Len())
	assert.Same(t, a, next.Lookup("http://a"))
	assert.Equal(t, int64(1), next.Lookup("http://a").Active())
	assert.True(t, next.Lookup("http://c").Healthy())

	status := next.Status()
	assert.Equal(t, 0, status["http://a"].Health)
	assert.Equal(t, int64(1), status["http://a"].Connections)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyRoundRobin, p)

	p, err = ParsePolicy(" Least_Connections ")
	require.NoError(t, err)
	assert.Equal(t, PolicyLeastConnections, p)

	_, err = ParsePolicy("random")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
