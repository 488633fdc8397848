// Package auth tracks which users are signed in and notifies watchers of
// sign-in and sign-out.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/models"
)

// UserStore persists known users.
type UserStore interface {
	GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error)
}

type Event struct {
	User     models.User
	SignedIn bool
}

// DocumentKey is the remote document key for a user.
func DocumentKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

type Provider struct {
	users UserStore

	mu       sync.Mutex
	current  map[int64]models.User
	watchers map[int]func(Event)
	nextID   int
}

func NewProvider(users UserStore) *Provider {
	return &Provider{
		users:    users,
		current:  make(map[int64]models.User),
		watchers: make(map[int]func(Event)),
	}
}

// SignIn records the user and emits a sign-in event. Signing in again while
// already signed in only refreshes the display name.
func (p *Provider) SignIn(ctx context.Context, userID int64, displayName string) (models.User, error) {
	u, err := p.users.GetOrCreate(ctx, userID, displayName)
	if err != nil {
		return models.User{}, fmt.Errorf("sign in: %w", err)
	}

	p.mu.Lock()
	_, already := p.current[userID]
	p.current[userID] = *u
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	if already {
		return *u, nil
	}
	log.Info().Int64("user_id", userID).Msg("user signed in")
	for _, fn := range watchers {
		fn(Event{User: *u, SignedIn: true})
	}
	return *u, nil
}

// SignOut emits a sign-out event. It reports false when the user was not signed in.
func (p *Provider) SignOut(userID int64) bool {
	p.mu.Lock()
	u, ok := p.current[userID]
	delete(p.current, userID)
	watchers := p.snapshotWatchers()
	p.mu.Unlock()

	if !ok {
		return false
	}
	log.Info().Int64("user_id", userID).Msg("user signed out")
	for _, fn := range watchers {
		fn(Event{User: u, SignedIn: false})
	}
	return true
}

// Current returns the signed-in user, or nil.
func (p *Provider) Current(userID int64) *models.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.current[userID]
	if !ok {
		return nil
	}
	return &u
}

// Watch registers fn for identity events. Events are delivered synchronously
// on the goroutine that caused them.
func (p *Provider) Watch(fn func(Event)) (stop func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.watchers, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) snapshotWatchers() []func(Event) {
	out := make([]func(Event), 0, len(p.watchers))
	for _, fn := range p.watchers {
		out = append(out, fn)
	}
	return out
}
