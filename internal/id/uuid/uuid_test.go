package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsVersion7(t *testing.T) {
	t.Parallel()

	raw, err := NewUUIDGenerator().NewID()
	require.NoError(t, err)
	parsed, err := uuid.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
}

func TestMustSuffixUnique(t *testing.T) {
	t.Parallel()

	g := NewUUIDGenerator()
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		s := g.MustSuffix()
		require.Len(t, s, 12)
		_, dup := seen[s]
		require.False(t, dup, "duplicate suffix %s", s)
		seen[s] = struct{}{}
	}
}
