// Package session keeps one ledger store per signed-in user.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/auth"
	"github.com/hray3182/SpendWise/internal/docstore"
	"github.com/hray3182/SpendWise/internal/ledger"
)

var ErrNotSignedIn = errors.New("not signed in")

type Manager struct {
	remote docstore.RemoteDocumentStore
	opts   []ledger.Option

	mu     sync.Mutex
	stores map[int64]*ledger.Store
	stop   func()
}

// NewManager opens a store on every sign-in from provider and closes it on
// sign-out. Logging out leaves the remote document in place.
func NewManager(remote docstore.RemoteDocumentStore, provider *auth.Provider, opts ...ledger.Option) *Manager {
	m := &Manager{
		remote: remote,
		opts:   opts,
		stores: make(map[int64]*ledger.Store),
	}
	m.stop = provider.Watch(m.handle)
	return m
}

func (m *Manager) handle(e auth.Event) {
	ctx := context.Background()
	userID := e.User.UserID

	if e.SignedIn {
		m.mu.Lock()
		if _, ok := m.stores[userID]; ok {
			m.mu.Unlock()
			return
		}
		store := ledger.New(m.remote, m.opts...)
		m.stores[userID] = store
		m.mu.Unlock()

		store.Subscribe(ctx, auth.DocumentKey(userID))
		log.Debug().Int64("user_id", userID).Str("state", store.State().String()).Msg("session opened")
		return
	}

	m.mu.Lock()
	store, ok := m.stores[userID]
	delete(m.stores, userID)
	m.mu.Unlock()
	if !ok {
		return
	}
	store.Subscribe(ctx, "")
	store.Close()
	log.Debug().Int64("user_id", userID).Msg("session closed")
}

// Get returns the live store of a signed-in user.
func (m *Manager) Get(userID int64) (*ledger.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[userID]
	if !ok {
		return nil, ErrNotSignedIn
	}
	return store, nil
}

// Open returns the user's live store, or a temporary one bound to the user's
// document when nobody is signed in. release must be called when done; for a
// temporary store it waits for pending writes and closes it.
func (m *Manager) Open(ctx context.Context, userID int64) (store *ledger.Store, release func()) {
	if live, err := m.Get(userID); err == nil {
		return live, func() {}
	}
	store = ledger.New(m.remote, m.opts...)
	store.Subscribe(ctx, auth.DocumentKey(userID))
	return store, store.Close
}

// Close stops watching identity events and closes every open store.
func (m *Manager) Close() {
	m.stop()

	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[int64]*ledger.Store)
	m.mu.Unlock()

	for _, store := range stores {
		store.Close()
	}
}
