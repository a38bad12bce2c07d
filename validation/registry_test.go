package validation

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	slot, err := reg.Register("a")
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	require.True(t, reg.Resolve("a", Outcome{Valid: true, SubjectID: "u"}))
	require.Equal(t, Outcome{Valid: true, SubjectID: "u"}, <-slot)
	require.Zero(t, reg.Len())

	// Duplicates and late arrivals are no-ops.
	require.False(t, reg.Resolve("a", Outcome{}))
	require.False(t, reg.Expire("a"))
	require.False(t, reg.Resolve("unknown", Outcome{Valid: true}))
}

func TestRegistryExpire(t *testing.T) {
	reg := NewRegistry()
	slot, _ := reg.Register("a")

	require.True(t, reg.Expire("a"))
	require.False(t, reg.Resolve("a", Outcome{Valid: true}))
	got := <-slot
	require.False(t, got.Valid)
	require.Equal(t, StatusTimedOut, got.Status)
	require.Zero(t, reg.Len())
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("a")
	require.NoError(t, err)
	_, err = reg.Register("a")
	require.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestRegistryResolveExpireRace(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 500; i++ {
		slot, err := reg.Register("race")
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if reg.Resolve("race", Outcome{Valid: true}) {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if reg.Expire("race") {
				wins.Add(1)
			}
		}()
		wg.Wait()

		require.EqualValues(t, 1, wins.Load())
		<-slot
		select {
		case extra := <-slot:
			t.Fatalf("slot filled twice: %+v", extra)
		default:
		}
	}
	require.Zero(t, reg.Len())
}
