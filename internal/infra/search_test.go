//go:build !nosearch

package infra

import (
	"testing"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/config"
)

func TestRegistry_SearchAccessor(t *testing.T) {
	// New only builds the client; nothing dials until a request is made.
	client := meilisearch.New("http://127.0.0.1:7700")
	h := &searchHandle{client: client}

	r := &Registry{handles: map[config.Capability]Handle{config.CapabilitySearch: h}}
	got, ok := r.Search()
	require.True(t, ok)
	assert.Equal(t, client, got)

	empty := &Registry{handles: map[config.Capability]Handle{}}
	_, ok = empty.Search()
	assert.False(t, ok)

	wrong := &Registry{handles: map[config.Capability]Handle{config.CapabilitySearch: opaqueHandle{}}}
	_, ok = wrong.Search()
	assert.False(t, ok)
}
