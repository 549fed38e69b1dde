//go:build !nobroker

package infra

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis/internal/config"
)

func TestRegistry_BrokerAccessor(t *testing.T) {
	conn := &nats.Conn{}
	h := &brokerHandle{conn: conn}

	r := &Registry{handles: map[config.Capability]Handle{config.CapabilityBroker: h}}
	got, ok := r.Broker()
	require.True(t, ok)
	assert.Same(t, conn, got)

	empty := &Registry{handles: map[config.Capability]Handle{}}
	_, ok = empty.Broker()
	assert.False(t, ok)

	wrong := &Registry{handles: map[config.Capability]Handle{config.CapabilityBroker: opaqueHandle{}}}
	_, ok = wrong.Broker()
	assert.False(t, ok)
}
