package services

import (
	"sync"
	"testing"
	"time"

	"kb-research-report/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrphanStore struct {
	mutex   sync.Mutex
	cutoffs []time.Time
}

func (s *fakeOrphanStore) FailOrphanedReports(cutoff time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	return 1, nil
}

func TestSweepUsesOrphanWindow(t *testing.T) {
	store := &fakeOrphanStore{}
	sweep := NewSweepService(store, config.PipelineConfig{
		SweepInterval: time.Minute,
		OrphanWindow:  time.Hour,
	})

	before := time.Now()
	sweep.Sweep()
	after := time.Now()

	store.mutex.Lock()
	defer store.mutex.Unlock()
	require.Len(t, store.cutoffs, 1)

	cutoff := store.cutoffs[0]
	// The cutoff is one window in the past: a record created 2 hours ago is
	// older than it (swept), one created 10 minutes ago is newer (kept).
	assert.True(t, cutoff.After(before.Add(-time.Hour).Add(-time.Second)))
	assert.True(t, cutoff.Before(after.Add(-time.Hour).Add(time.Second)))
	assert.True(t, before.Add(-2*time.Hour).Before(cutoff), "2h-old pending record falls before the cutoff")
	assert.True(t, before.Add(-10*time.Minute).After(cutoff), "10m-old pending record falls after the cutoff")
}

func TestSweepStartStop(t *testing.T) {
	store := &fakeOrphanStore{}
	sweep := NewSweepService(store, config.PipelineConfig{
		SweepInterval: time.Hour,
		OrphanWindow:  time.Hour,
	})

	require.NoError(t, sweep.Start())
	// Start runs one immediate pass
	assert.Eventually(t, func() bool {
		store.mutex.Lock()
		defer store.mutex.Unlock()
		return len(store.cutoffs) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	sweep.Stop()
}
