package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hray3182/SpendWise/internal/models"
)

var ErrInjected = errors.New("injected failure")

type memorySub struct {
	onChange ChangeFunc
	onError  ErrorFunc
}

// Memory is an in-process RemoteDocumentStore. Changes are delivered
// synchronously on the writer's goroutine, serialised across writers, so a
// callback must not write to the same Memory before returning.
type Memory struct {
	mu         sync.Mutex
	docs       map[string]models.AppData
	subs       map[string]map[int]*memorySub
	nextID     int
	writes     int
	failReads  bool
	failWrites bool

	// held while delivering so every subscriber sees changes in write order
	deliver sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]models.AppData),
		subs: make(map[string]map[int]*memorySub),
	}
}

// Seed stores data under key without notifying subscribers.
func (m *Memory) Seed(key string, data models.AppData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data = data.Clone()
	data.Normalize()
	m.docs[key] = data
}

// Get returns a copy of the stored document.
func (m *Memory) Get(key string) (models.AppData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[key]
	if !ok {
		return models.AppData{}, false
	}
	return d.Clone(), true
}

// Writes returns the number of successful WriteMerge calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Subscribers returns the number of live subscriptions for key.
func (m *Memory) Subscribers(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[key])
}

func (m *Memory) SetFailReads(fail bool) {
	m.mu.Lock()
	m.failReads = fail
	m.mu.Unlock()
}

func (m *Memory) SetFailWrites(fail bool) {
	m.mu.Lock()
	m.failWrites = fail
	m.mu.Unlock()
}

// Break fails every live subscription on key with err.
func (m *Memory) Break(key string, err error) {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	subs := m.subs[key]
	delete(m.subs, key)
	m.mu.Unlock()

	for _, s := range subs {
		s.onError(err)
	}
}

func (m *Memory) ReadOnce(ctx context.Context, key string) (*models.AppData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, fmt.Errorf("read %s: %w", key, ErrInjected)
	}
	d, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	c := d.Clone()
	return &c, nil
}

func (m *Memory) Subscribe(ctx context.Context, key string, onChange ChangeFunc, onError ErrorFunc) (Unsubscribe, error) {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.failReads {
		m.mu.Unlock()
		onError(fmt.Errorf("subscribe %s: %w", key, ErrInjected))
		return func() {}, nil
	}
	id := m.nextID
	m.nextID++
	sub := &memorySub{onChange: onChange, onError: onError}
	if m.subs[key] == nil {
		m.subs[key] = make(map[int]*memorySub)
	}
	m.subs[key][id] = sub
	d, ok := m.docs[key]
	if ok {
		d = d.Clone()
	}
	m.mu.Unlock()

	notify(sub, d, ok)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[key], id)
			m.mu.Unlock()
		})
	}, nil
}

func (m *Memory) WriteMerge(ctx context.Context, key string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.failWrites {
		m.mu.Unlock()
		return fmt.Errorf("write %s: %w", key, ErrInjected)
	}
	base := m.docs[key]
	merged := patch.Apply(base)
	m.docs[key] = merged
	m.writes++
	subs := m.snapshotSubs(key)
	m.mu.Unlock()

	for _, s := range subs {
		notify(s, merged.Clone(), true)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.failWrites {
		m.mu.Unlock()
		return fmt.Errorf("delete %s: %w", key, ErrInjected)
	}
	delete(m.docs, key)
	subs := m.snapshotSubs(key)
	m.mu.Unlock()

	for _, s := range subs {
		notify(s, models.AppData{}, false)
	}
	return nil
}

func (m *Memory) snapshotSubs(key string) []*memorySub {
	out := make([]*memorySub, 0, len(m.subs[key]))
	for _, s := range m.subs[key] {
		out = append(out, s)
	}
	return out
}

func notify(s *memorySub, d models.AppData, exists bool) {
	if !exists {
		s.onChange(nil, false)
		return
	}
	s.onChange(&d, true)
}
