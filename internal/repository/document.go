package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/database"
	"github.com/hray3182/SpendWise/internal/docstore"
	"github.com/hray3182/SpendWise/internal/models"
)

const documentChannel = "user_document_changed"

type documentSub struct {
	key      string
	onChange docstore.ChangeFunc
	onError  docstore.ErrorFunc
	wake     chan struct{}
	done     chan struct{}
	stop     sync.Once
}

func (s *documentSub) close() {
	s.stop.Do(func() { close(s.done) })
}

// DocumentRepository stores one JSONB document per user and implements
// docstore.RemoteDocumentStore. Change notifications come from a trigger
// calling pg_notify; a single LISTEN connection fans them out to subscribers,
// which re-read the document. Consecutive changes may be coalesced into one
// delivery of the latest state.
type DocumentRepository struct {
	db *database.DB

	mu        sync.Mutex
	subs      map[string]map[int]*documentSub
	nextID    int
	listening bool
	cancel    context.CancelFunc
}

func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{
		db:   db,
		subs: make(map[string]map[int]*documentSub),
	}
}

func (r *DocumentRepository) ReadOnce(ctx context.Context, key string) (*models.AppData, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT data FROM user_document WHERE user_id = $1`,
		key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", key, err)
	}

	data := &models.AppData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	data.Normalize()
	return data, nil
}

// WriteMerge upserts the document; top-level fields present in patch replace
// the stored ones.
func (r *DocumentRepository) WriteMerge(ctx context.Context, key string, patch docstore.Patch) error {
	b, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO user_document (user_id, data, updated_at) VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET data = user_document.data || EXCLUDED.data, updated_at = NOW()`,
		key, string(b),
	)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM user_document WHERE user_id = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// Subscribe delivers the current document before returning, then every later
// change on a per-subscription goroutine.
func (r *DocumentRepository) Subscribe(ctx context.Context, key string, onChange docstore.ChangeFunc, onError docstore.ErrorFunc) (docstore.Unsubscribe, error) {
	if err := r.ensureListener(ctx); err != nil {
		return nil, err
	}

	sub := &documentSub{
		key:      key,
		onChange: onChange,
		onError:  onError,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	if r.subs[key] == nil {
		r.subs[key] = make(map[int]*documentSub)
	}
	r.subs[key][id] = sub
	r.mu.Unlock()

	unsubscribe := func() {
		r.remove(key, id)
		sub.close()
	}

	// Registered before the first read, so a change racing with it still
	// produces a later delivery.
	if !r.deliver(ctx, id, sub) {
		return unsubscribe, nil
	}
	go r.watch(id, sub)

	return unsubscribe, nil
}

func (r *DocumentRepository) watch(id int, sub *documentSub) {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
			if !r.deliver(context.Background(), id, sub) {
				return
			}
		}
	}
}

// deliver reads the document and hands it to sub. It reports false when the
// subscription has ended.
func (r *DocumentRepository) deliver(ctx context.Context, id int, sub *documentSub) bool {
	select {
	case <-sub.done:
		return false
	default:
	}

	data, err := r.ReadOnce(ctx, sub.key)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		sub.onChange(nil, false)
	case err != nil:
		r.remove(sub.key, id)
		sub.close()
		sub.onError(err)
		return false
	default:
		sub.onChange(data, true)
	}
	return true
}

func (r *DocumentRepository) remove(key string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[key], id)
	if len(r.subs[key]) == 0 {
		delete(r.subs, key)
	}
}

func (r *DocumentRepository) ensureListener(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listening {
		return nil
	}

	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+documentChannel); err != nil {
		conn.Release()
		return fmt.Errorf("failed to listen on %s: %w", documentChannel, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	r.listening = true
	r.cancel = cancel
	go r.listen(listenCtx, conn)
	return nil
}

func (r *DocumentRepository) listen(ctx context.Context, conn *pgxpool.Conn) {
	defer conn.Release()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("document change feed failed")
			r.failAll(err)
			return
		}

		r.mu.Lock()
		for _, sub := range r.subs[n.Payload] {
			select {
			case sub.wake <- struct{}{}:
			default:
			}
		}
		r.mu.Unlock()
	}
}

// failAll ends every subscription after the change feed broke. The next
// Subscribe opens a new listener.
func (r *DocumentRepository) failAll(err error) {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]map[int]*documentSub)
	r.listening = false
	r.cancel = nil
	r.mu.Unlock()

	for _, byID := range subs {
		for _, sub := range byID {
			sub.close()
			sub.onError(fmt.Errorf("document change feed: %w", err))
		}
	}
}

// Close stops the change feed. Live subscriptions receive no further changes.
func (r *DocumentRepository) Close() {
	r.mu.Lock()
	cancel := r.cancel
	subs := r.subs
	r.subs = make(map[string]map[int]*documentSub)
	r.listening = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, byID := range subs {
		for _, sub := range byID {
			sub.close()
		}
	}
}
