package ledger

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hray3182/SpendWise/internal/docstore"
)

type writeJob struct {
	key   string
	op    string
	patch docstore.Patch
	done  func(error)
}

// writeQueue persists patches one at a time in the order they were pushed.
// push never blocks, so it is safe to call from subscription callbacks.
type writeQueue struct {
	remote docstore.RemoteDocumentStore

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []writeJob
	busy   bool
	closed bool
	done   chan struct{}
}

func newWriteQueue(remote docstore.RemoteDocumentStore) *writeQueue {
	q := &writeQueue{remote: remote, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *writeQueue) push(job writeJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Warn().Str("user_id", job.key).Str("op", job.op).Msg("write dropped after close")
		return
	}
	q.jobs = append(q.jobs, job)
	q.cond.Broadcast()
}

func (q *writeQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.busy = true
		q.mu.Unlock()

		// Failed writes are not retried; the optimistic local state stays visible.
		err := q.remote.WriteMerge(context.Background(), job.key, job.patch)
		if err != nil {
			log.Error().Err(err).Str("user_id", job.key).Str("op", job.op).Msg("remote write failed")
		} else {
			log.Debug().Str("user_id", job.key).Str("op", job.op).Msg("remote write done")
		}
		if job.done != nil {
			job.done(err)
		}

		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// flush waits until every pushed job has been attempted.
func (q *writeQueue) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) > 0 || q.busy {
		q.cond.Wait()
	}
}

// close drains the remaining jobs and stops the worker.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done
}
