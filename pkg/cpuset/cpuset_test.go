package cpuset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"0", "0"},
		{"0,2-3", "0,2-3"},
		{"2-3,0", "0,2-3"},
		{"0,1,2,3", "0-3"},
		{"5-5", "5"},
		{"0,2,4-6,63-65", "0,2,4-6,63-65"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := Parse(tt.spec)
			require.NoError(t, err)
			require.Equal(t, tt.want, s.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, spec := range []string{"", ",", "a", "1-", "-3", "3-1", "1,,2", "1,-"} {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec)
			require.Error(t, err)
		})
	}
}

func TestSetOperations(t *testing.T) {
	s, err := Parse("0,2-3")
	require.NoError(t, err)
	require.True(t, s.Contains(0))
	require.False(t, s.Contains(1))
	require.True(t, s.Contains(3))
	require.False(t, s.Contains(200))
	require.Equal(t, []int{0, 2, 3}, s.List())
	require.Equal(t, 3, s.Count())
	require.False(t, s.IsEmpty())
	require.True(t, Set{}.IsEmpty())
	require.Equal(t, "", Set{}.String())
}

func TestAddAcrossWords(t *testing.T) {
	var s Set
	s.Add(1)
	s.Add(64)
	s.Add(65)
	require.Equal(t, "1,64-65", s.String())
	s.Add(-1) // ignored
	require.Equal(t, 3, s.Count())
}
