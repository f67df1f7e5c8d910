package memlock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockIsIdempotent(t *testing.T) {
	l := New()
	if err := l.Lock(); err != nil {
		// Locking needs CAP_IPC_LOCK or a generous RLIMIT_MEMLOCK,
		// neither of which a test runner is guaranteed to have.
		t.Skipf("cannot lock memory in this environment: %v", err)
	}
	require.True(t, l.Locked())
	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
	require.False(t, l.Locked())
	require.NoError(t, l.Unlock())
}

func TestUnlockWithoutLockIsNoop(t *testing.T) {
	l := New()
	require.False(t, l.Locked())
	require.NoError(t, l.Unlock())
}
