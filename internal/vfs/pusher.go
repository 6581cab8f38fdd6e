package vfs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cardfs/internal/metrics"
	"github.com/roach88/cardfs/internal/remote"
)

// Push results recorded in metrics.
const (
	pushReplaced = "replaced"
	pushCreated  = "created"
	pushError    = "error"
)

// pushJob is one full-tree write for a user.
type pushJob struct {
	userKey string
	data    []byte
	// create writes the document without trying Replace first.
	create bool
}

// pusher sends trees to the remote on its own goroutine so a slow remote
// never stalls the loop. Each user has one pending slot: a newer tree
// replaces an older one that has not been sent yet. Jobs for one user are
// sent in submission order.
type pusher struct {
	remote remote.Channel
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]pushJob
	order   []string
	busy    bool
	stopped bool
	idlers  []chan struct{} // closed when the pusher next goes idle
	signal  chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func newPusher(ch remote.Channel, logger *slog.Logger) *pusher {
	ctx, cancel := context.WithCancel(context.Background())
	return &pusher{
		remote:  ch,
		logger:  logger,
		pending: make(map[string]pushJob),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (p *pusher) start() {
	if p.remote == nil {
		close(p.done)
		return
	}
	go p.run()
}

// submit queues job, replacing any unsent job for the same user.
func (p *pusher) submit(job pushJob) {
	if p.remote == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	if prev, ok := p.pending[job.userKey]; ok {
		// A pending create must stay a create.
		job.create = job.create || prev.create
	} else {
		p.order = append(p.order, job.userKey)
	}
	p.pending[job.userKey] = job

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *pusher) next() (pushJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		p.busy = false
		for _, ch := range p.idlers {
			close(ch)
		}
		p.idlers = nil
		return pushJob{}, false
	}
	key := p.order[0]
	p.order = p.order[1:]
	job := p.pending[key]
	delete(p.pending, key)
	p.busy = true
	return job, true
}

func (p *pusher) run() {
	defer close(p.done)
	for {
		job, ok := p.next()
		if ok {
			p.push(job)
			continue
		}

		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			return
		}

		select {
		case <-p.signal:
		case <-p.ctx.Done():
			return
		}
	}
}

// push writes one job. Replace is tried first; a missing document falls
// back to Create. Failures are logged and dropped: the next mutation or
// snapshot brings the remote up to date.
func (p *pusher) push(job pushJob) {
	start := time.Now()
	result := pushReplaced

	var err error
	if !job.create {
		err = p.remote.Replace(p.ctx, job.userKey, job.data)
	}
	if job.create || errors.Is(err, remote.ErrNotFound) {
		result = pushCreated
		err = p.remote.Create(p.ctx, job.userKey, job.data)
	}

	if err != nil {
		result = pushError
		p.logger.Warn("remote push failed", "user", job.userKey, "path", remote.DocumentPath(job.userKey), "error", err)
	} else {
		p.logger.Debug("remote push", "user", job.userKey, "result", result, "bytes", len(job.data))
	}
	metrics.RecordPush(result, time.Since(start))
}

// idleWait returns nil when nothing is pending or in flight, and otherwise
// a channel closed once that becomes true.
func (p *pusher) idleWait() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.busy && len(p.order) == 0 {
		return nil
	}
	ch := make(chan struct{})
	p.idlers = append(p.idlers, ch)
	return ch
}

// flush waits until nothing is pending or in flight.
func (p *pusher) flush(ctx context.Context) error {
	if p.remote == nil {
		return nil
	}
	idle := p.idleWait()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop lets pending pushes finish for up to drain, then abandons the rest.
func (p *pusher) stop(drain time.Duration) {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}

	timer := time.NewTimer(drain)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		p.logger.Warn("abandoning pending remote pushes", "drain", drain)
		p.cancel()
		<-p.done
	}
	p.cancel()
}
