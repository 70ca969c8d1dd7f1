package client

import (
	"errors"
	"testing"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerLinkDestroyOnce(t *testing.T) {
	f := &fakeFactory{}
	m := NewPeerLinkManager(f, nil, nil)

	l, err := m.Create("A", core.PeerInitiator, nil)
	require.NoError(t, err)
	l.Destroy()
	l.Destroy()
	assert.Equal(t, 1, f.Peers()[0].Destroys())

	require.NoError(t, l.Signal("late"))
	assert.Empty(t, f.Peers()[0].Signals())
}

func TestPeerLinkManagerReplaces(t *testing.T) {
	f := &fakeFactory{}
	m := NewPeerLinkManager(f, nil, nil)

	first, err := m.Create("A", core.PeerResponder, nil)
	require.NoError(t, err)
	second, err := m.Create("A", core.PeerInitiator, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Len())
	assert.True(t, first.Destroyed())
	assert.False(t, m.Current(first))
	assert.True(t, m.Current(second))

	assert.True(t, m.Remove("A"))
	assert.False(t, m.Remove("A"))
	assert.Equal(t, 1, f.Peers()[1].Destroys())
}

func TestPeerLinkCallbacksStopAfterDestroy(t *testing.T) {
	f := &fakeFactory{}
	var signals, failures int
	m := NewPeerLinkManager(f,
		func(*PeerLink, any) { signals++ },
		func(*PeerLink, error) { failures++ },
	)

	_, err := m.Create("A", core.PeerInitiator, nil)
	require.NoError(t, err)
	p := f.Peers()[0]
	p.emit("offer")
	assert.Equal(t, 1, signals)

	m.DestroyAll()
	p.emit("offer")
	p.fail(errors.New("ice failed"))
	assert.Equal(t, 1, signals)
	assert.Zero(t, failures)
	assert.Zero(t, m.Len())
}

func TestPeerLinkFactoryError(t *testing.T) {
	m := NewPeerLinkManager(&fakeFactory{err: errors.New("boom")}, nil, nil)
	_, err := m.Create("A", core.PeerInitiator, nil)
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}
