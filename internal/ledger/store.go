// Package ledger keeps one user's transactions and categories in memory,
// applies mutations optimistically and persists them to the remote document.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/docstore"
	"github.com/hray3182/SpendWise/internal/export"
	"github.com/hray3182/SpendWise/internal/models"
)

type State int

const (
	Unauthenticated State = iota
	Loading
	Ready
	// ReadyWithDefaults is entered when the remote document could not be read.
	// The store serves built-in defaults; mutations stay local and are never
	// written to the remote document.
	ReadyWithDefaults
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case ReadyWithDefaults:
		return "ready_with_defaults"
	}
	return "unknown"
}

type Option func(*Store)

// WithMergeDefaults unions every loaded category list with the built-in set.
func WithMergeDefaults(merge bool) Option {
	return func(s *Store) { s.mergeDefaults = merge }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Store owns the in-memory snapshot of one user's AppData.
//
// confirmed holds the last state delivered by the remote subscription and
// pending the result of local mutations not yet echoed back. Every remote
// delivery replaces confirmed; it also clears pending once none of the
// store's own writes are in flight, so the remote state wins as soon as the
// store is quiescent.
type Store struct {
	remote        docstore.RemoteDocumentStore
	queue         *writeQueue
	mergeDefaults bool
	now           func() time.Time
	newID         func() string

	mu        sync.Mutex
	state     State
	userID    string
	gen       uint64
	unsub     docstore.Unsubscribe
	confirmed models.AppData
	pending   *models.AppData
	inflight  int
}

func New(remote docstore.RemoteDocumentStore, opts ...Option) *Store {
	s := &Store{
		remote:    remote,
		queue:     newWriteQueue(remote),
		now:       time.Now,
		newID:     uuid.NewString,
		state:     Unauthenticated,
		confirmed: models.DefaultAppData(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Loading() bool {
	return s.State() == Loading
}

func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Snapshot returns a copy of the visible data: pending local changes when
// there are any, the confirmed remote state otherwise.
func (s *Store) Snapshot() models.AppData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible().Clone()
}

func (s *Store) visible() models.AppData {
	if s.pending != nil {
		return *s.pending
	}
	return s.confirmed
}

// Subscribe binds the store to userID, releasing any previous subscription
// first. An empty userID resets the snapshot to defaults.
func (s *Store) Subscribe(ctx context.Context, userID string) {
	s.mu.Lock()
	prev := s.unsub
	s.unsub = nil
	s.gen++
	gen := s.gen
	s.userID = userID
	s.pending = nil
	s.inflight = 0
	s.confirmed = models.DefaultAppData()
	if userID == "" {
		s.state = Unauthenticated
	} else {
		s.state = Loading
	}
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	if userID == "" {
		return
	}

	unsub, err := s.remote.Subscribe(ctx, userID,
		func(data *models.AppData, exists bool) { s.onChange(gen, userID, data, exists) },
		func(err error) { s.onError(gen, userID, err) },
	)
	if err != nil {
		s.onError(gen, userID, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsub = unsub
	s.mu.Unlock()
}

func (s *Store) onChange(gen uint64, key string, data *models.AppData, exists bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	if !exists {
		d := models.DefaultAppData()
		s.confirmed = d
		s.pending = nil
		s.state = Ready
		log.Info().Str("user_id", key).Msg("creating default document")
		s.push("create", d)
		return
	}

	d := data.Clone()
	d.Normalize()
	if s.mergeDefaults {
		d.Categories = models.MergeWithDefaults(d.Categories)
	}
	d.SortTransactions()
	s.confirmed = d
	if s.inflight == 0 {
		s.pending = nil
	}
	s.state = Ready
}

func (s *Store) onError(gen uint64, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	log.Error().Err(err).Str("user_id", key).Msg("remote subscription failed, using defaults")
	s.confirmed = models.DefaultAppData()
	s.pending = nil
	s.inflight = 0
	s.state = ReadyWithDefaults
}

// commit makes next the visible snapshot and queues it for persistence. Must
// be called with s.mu held.
func (s *Store) commit(op string, next models.AppData) {
	s.pending = &next
	if s.state != Ready {
		log.Warn().Str("user_id", s.userID).Str("op", op).Str("state", s.state.String()).Msg("change kept locally only")
		return
	}
	s.push(op, next)
}

// push queues a full write of data for the current user. Must be called with
// s.mu held.
func (s *Store) push(op string, data models.AppData) {
	gen := s.gen
	s.inflight++
	s.queue.push(writeJob{
		key:   s.userID,
		op:    op,
		patch: docstore.FullPatch(data),
		done: func(error) {
			s.mu.Lock()
			if s.gen == gen && s.inflight > 0 {
				s.inflight--
			}
			s.mu.Unlock()
		},
	})
}

// AddTransaction assigns a fresh id to draft and inserts it. The draft is
// expected to be validated by the caller.
func (s *Store) AddTransaction(draft models.Draft) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := draft.WithID(s.newID())
	s.commit("add_transaction", addTransaction(s.visible(), tx))
	return tx
}

// UpdateTransaction replaces the transaction with the same id. The snapshot
// is left unchanged when the id is unknown.
func (s *Store) UpdateTransaction(tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := updateTransaction(s.visible(), tx)
	if !ok {
		return ErrUnknownTransaction
	}
	s.commit("update_transaction", next)
	return nil
}

// DeleteTransaction removes the transaction with id. It reports whether
// anything was removed; deleting an unknown id is a no-op.
func (s *Store) DeleteTransaction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := deleteTransaction(s.visible(), id)
	if !ok {
		return false
	}
	s.commit("delete_transaction", next)
	return true
}

// AddCategory appends name to the list of t. It reports false without
// changing anything when the name is already present.
func (s *Store) AddCategory(t models.TransactionType, name string) (bool, error) {
	name, err := cleanCategoryName(t, name)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := addCategory(s.visible(), t, name)
	if !ok {
		return false, nil
	}
	s.commit("add_category", next)
	return true, nil
}

// UpdateCategory renames oldName to newName in the list of t and rewrites
// the transactions of t that used it. With default merging enabled the
// built-in names are restored on every load, so they cannot be renamed.
func (s *Store) UpdateCategory(t models.TransactionType, oldName, newName string) error {
	newName, err := cleanCategoryName(t, newName)
	if err != nil {
		return err
	}
	if s.mergeDefaults && (oldName == models.FallbackCategory || models.IsDefaultCategory(t, oldName)) {
		return fmt.Errorf("%w: %s", ErrProtectedCategory, oldName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := renameCategory(s.visible(), t, oldName, newName)
	if err != nil {
		return err
	}
	s.commit("update_category", next)
	return nil
}

func (s *Store) DeleteCategory(t models.TransactionType, name string) error {
	if !t.Valid() {
		return ErrInvalidCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := deleteCategory(s.visible(), t, name)
	if err != nil {
		return err
	}
	s.commit("delete_category", next)
	return nil
}

// ExportSnapshot serialises the visible snapshot and names the file after
// the current date.
func (s *Store) ExportSnapshot() ([]byte, string, error) {
	data := s.Snapshot()
	b, err := export.Snapshot(data)
	if err != nil {
		return nil, "", err
	}
	return b, export.Filename(s.now()), nil
}

// ImportSnapshot replaces the snapshot with a previously exported one.
func (s *Store) ImportSnapshot(b []byte) error {
	data, err := export.ParseSnapshot(b)
	if err != nil {
		return err
	}
	data.SortTransactions()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit("import", data)
	return nil
}

// ResetToDefaults replaces the snapshot, and the remote document, with the
// built-in defaults.
func (s *Store) ResetToDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit("reset", models.DefaultAppData())
}

// Flush blocks until every queued write has been attempted.
func (s *Store) Flush() {
	s.queue.flush()
}

// Close releases the subscription and drains queued writes. The store must
// not be used afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	prev := s.unsub
	s.unsub = nil
	s.gen++
	s.state = Unauthenticated
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	s.queue.close()
}
