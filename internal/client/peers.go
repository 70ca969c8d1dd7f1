package client

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// PeerLink is the local end of the media link to one remote participant.
type PeerLink struct {
	Remote domain.UserID
	Role   core.PeerRole

	conn      core.PeerConnection
	once      sync.Once
	destroyed atomic.Bool
}

// Signal feeds a remote payload into the link. It is a no-op once destroyed.
func (l *PeerLink) Signal(payload any) error {
	if l.destroyed.Load() {
		return nil
	}
	return l.conn.Signal(payload)
}

func (l *PeerLink) Destroy() {
	l.once.Do(func() {
		l.destroyed.Store(true)
		if err := l.conn.Destroy(); err != nil {
			log.Debug().Err(err).Str("module", "client.peers").Str("remote", string(l.Remote)).Msg("destroy link")
		}
	})
}

func (l *PeerLink) Destroyed() bool { return l.destroyed.Load() }

// PeerLinkManager keeps at most one link per remote user. It is owned by the
// session event loop and is not safe for concurrent use; the callbacks it
// installs on connections may fire from any goroutine.
type PeerLinkManager struct {
	factory   core.PeerFactory
	links     map[domain.UserID]*PeerLink
	onSignal  func(l *PeerLink, payload any)
	onFailure func(l *PeerLink, err error)
}

func NewPeerLinkManager(f core.PeerFactory, onSignal func(*PeerLink, any), onFailure func(*PeerLink, error)) *PeerLinkManager {
	return &PeerLinkManager{
		factory:   f,
		links:     make(map[domain.UserID]*PeerLink),
		onSignal:  onSignal,
		onFailure: onFailure,
	}
}

// Create opens a link to remote, destroying any link it replaces.
func (m *PeerLinkManager) Create(remote domain.UserID, role core.PeerRole, media *core.LocalMedia) (*PeerLink, error) {
	m.Remove(remote)

	conn, err := m.factory.NewPeer(role, media)
	if err != nil {
		return nil, err
	}
	l := &PeerLink{Remote: remote, Role: role, conn: conn}
	conn.OnSignal(func(payload any) {
		if m.onSignal != nil && !l.Destroyed() {
			m.onSignal(l, payload)
		}
	})
	conn.OnFailure(func(err error) {
		if m.onFailure != nil && !l.Destroyed() {
			m.onFailure(l, err)
		}
	})
	m.links[remote] = l
	log.Debug().Str("module", "client.peers").Str("remote", string(remote)).Str("role", role.String()).Msg("link created")
	return l, nil
}

func (m *PeerLinkManager) Get(remote domain.UserID) (*PeerLink, bool) {
	l, ok := m.links[remote]
	return l, ok
}

// Current reports whether l is still the tracked link for its remote.
func (m *PeerLinkManager) Current(l *PeerLink) bool {
	cur, ok := m.links[l.Remote]
	return ok && cur == l && !l.Destroyed()
}

func (m *PeerLinkManager) Remove(remote domain.UserID) bool {
	l, ok := m.links[remote]
	if !ok {
		return false
	}
	delete(m.links, remote)
	l.Destroy()
	return true
}

func (m *PeerLinkManager) Len() int { return len(m.links) }

func (m *PeerLinkManager) DestroyAll() {
	for id, l := range m.links {
		delete(m.links, id)
		l.Destroy()
	}
}
