package id

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for range count {
		id, err := Generate("chap")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{"chap", "ep", "evt"} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, prefix+"-"))
			assert.Len(t, id, len(prefix)+1+21)
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.NotEmpty(t, MustGenerate("ep"))
	})
}

func TestNewSessionID_IsTimeOrderedUUID(t *testing.T) {
	ids := make([]string, 0, 50)
	for range 50 {
		sid, err := NewSessionID()
		require.NoError(t, err)

		parsed, err := uuid.Parse(sid)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())

		ids = append(ids, sid)
	}

	assert.True(t, sort.StringsAreSorted(ids), "v7 ids should sort in generation order")
}
