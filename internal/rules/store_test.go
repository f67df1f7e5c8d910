package rules

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rttune/rttune/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func matchedNames(s *Store, threadName string) []string {
	var names []string
	s.ForEachMatching(threadName, func(r *Rule) { names = append(names, r.name) })
	return names
}

func TestAddDeleteRoundTrip(t *testing.T) {
	s := NewStore(quietLogger())
	require.NoError(t, s.Add("base", "fifo", "50", "*", "worker"))

	before := matchedNames(s, "netWorker-1")
	require.NoError(t, s.Add("extra", "*", "+5", "*", "net"))
	s.Delete("extra")

	require.Equal(t, before, matchedNames(s, "netWorker-1"))
	require.Equal(t, 1, s.Len())
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	s := NewStore(quietLogger())
	s.Delete("missing")
	require.Equal(t, 0, s.Len())
}

func TestAddReplacesSameName(t *testing.T) {
	s := NewStore(quietLogger())
	require.NoError(t, s.Add("a", "fifo", "10", "*", "one"))
	require.NoError(t, s.Add("b", "*", "*", "0-1", "two"))
	require.NoError(t, s.Add("a", "rr", "20", "*", "three"))

	list := s.List()
	require.Len(t, list, 2)
	// The replacement moved to the end of the order.
	require.Equal(t, "b", list[0].Name)
	require.Equal(t, "a", list[1].Name)
	require.Equal(t, "three", list[1].Pattern)
	require.Equal(t, types.PolicyRR, *list[1].Policy)
	require.Equal(t, 20, list[1].Priority.Value)
}

func TestAddBadPatternFails(t *testing.T) {
	s := NewStore(quietLogger())
	err := s.Add("broken", "*", "*", "*", "worker[")
	require.Error(t, err)
	require.Equal(t, 0, s.Len())
}

func TestAddInvalidSpecsDegradeToUnset(t *testing.T) {
	s := NewStore(quietLogger())
	require.NoError(t, s.Add("lax", "bogus", "abc", "x-y", "worker"))

	list := s.List()
	require.Len(t, list, 1)
	require.Nil(t, list[0].Policy)
	require.Nil(t, list[0].Priority)
	require.Empty(t, list[0].CPUs)
}

func TestForEachMatchingOrderAndFilter(t *testing.T) {
	s := NewStore(quietLogger())
	require.NoError(t, s.Add("first", "*", "*", "*", "work"))
	require.NoError(t, s.Add("other", "*", "*", "*", "^db"))
	require.NoError(t, s.Add("second", "*", "*", "*", "er-[0-9]+$"))

	require.Equal(t, []string{"first", "second"}, matchedNames(s, "netWorker-12"))
	require.Equal(t, []string{"other"}, matchedNames(s, "dbScan"))
	require.Empty(t, matchedNames(s, "idle"))
}

func TestMatchIsUnanchoredSubstring(t *testing.T) {
	s := NewStore(quietLogger())
	require.NoError(t, s.Add("sub", "*", "*", "*", "ork"))
	require.Equal(t, []string{"sub"}, matchedNames(s, "netWorker"))
}

func TestListSnapshotsPreserveOrder(t *testing.T) {
	s := NewStore(quietLogger())
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(fmt.Sprintf("r%d", i), "*", "*", "*", "x"))
	}
	list := s.List()
	for i, r := range list {
		require.Equal(t, fmt.Sprintf("r%d", i), r.Name)
	}
}

func TestConcurrentMutationAndMatching(t *testing.T) {
	s := NewStore(quietLogger())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("r%d", i%5)
			require.NoError(t, s.Add(name, "fifo", "+1", "0", "worker"))
			s.Delete(name)
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				// Every visible rule must have a usable compiled pattern.
				s.ForEachMatching("worker-thread", func(r *Rule) {
					require.NotNil(t, r.re)
				})
			}
		}()
	}
	wg.Wait()
}
