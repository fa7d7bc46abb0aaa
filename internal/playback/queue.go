package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/dinevoice/internal/audio"
	"github.com/eleven-am/dinevoice/internal/transport"
)

// Queue plays inbound PCM16 chunks one after another and can be flushed at
// any moment. Every Interrupt starts a new generation; work belonging to an
// older generation is discarded when it comes back from the decoder, so no
// chunk enqueued before an Interrupt ever reaches the speaker.
type Queue struct {
	player transport.Player
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  [][]byte
	active   transport.PlaybackUnit
	playing  bool
	gen      uint64
	closed   bool
	onChange func(playing bool)
	onFail   func()

	notifyMu sync.Mutex
	notified bool
}

func NewQueue(player transport.Player, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		player: player,
		log:    log.With("component", "playback_queue"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnPlayingChange registers the playing-state observer. It is called
// outside the queue lock and must not call back into the queue.
func (q *Queue) OnPlayingChange(fn func(playing bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = fn
}

func (q *Queue) OnDecodeFailure(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onFail = fn
}

func (q *Queue) Enqueue(chunk []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, chunk)
	start := !q.playing
	q.playing = true
	gen := q.gen
	q.mu.Unlock()

	if start {
		q.notify()
		go q.playNext(gen)
	}
}

func (q *Queue) playNext(gen uint64) {
	for {
		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.active = nil
			q.playing = false
			q.mu.Unlock()
			q.notify()
			return
		}
		chunk := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		buf, err := q.player.Decode(q.ctx, audio.DecodeBytesToWAV(chunk))

		q.mu.Lock()
		if gen != q.gen {
			q.mu.Unlock()
			return
		}
		onFail := q.onFail
		q.mu.Unlock()

		if err != nil {
			q.log.Warn("skipping undecodable chunk", "error", err, "bytes", len(chunk))
			if onFail != nil {
				onFail()
			}
			continue
		}

		// Start may block on the output device, so it runs unlocked and the
		// generation is checked again once it returns. The ended callback
		// waits until the unit is registered or discarded.
		registered := make(chan struct{})
		unit, err := q.player.Start(buf, func() {
			<-registered
			q.ended(gen)
		})
		if err != nil {
			close(registered)
			q.log.Warn("skipping chunk that failed to start", "error", err)
			if onFail != nil {
				onFail()
			}
			continue
		}

		q.mu.Lock()
		stale := gen != q.gen
		if !stale {
			q.active = unit
		}
		q.mu.Unlock()
		close(registered)

		if stale {
			unit.Stop()
		}
		return
	}
}

func (q *Queue) ended(gen uint64) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	q.active = nil
	q.mu.Unlock()

	q.playNext(gen)
}

// Interrupt stops the active unit, drops everything pending and reports
// not-playing before it returns.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	q.gen++
	unit := q.active
	q.active = nil
	dropped := len(q.pending)
	q.pending = nil
	q.playing = false
	q.mu.Unlock()

	if unit != nil {
		unit.Stop()
	}
	if unit != nil || dropped > 0 {
		q.log.Debug("playback interrupted", "dropped", dropped)
	}
	q.notify()
}

// Close interrupts playback, cancels in-flight decodes and rejects further
// chunks. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.Interrupt()
	q.cancel()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// notify reports the current playing state to the observer when it differs
// from the last value reported.
func (q *Queue) notify() {
	q.notifyMu.Lock()
	defer q.notifyMu.Unlock()

	q.mu.Lock()
	playing := q.playing
	fn := q.onChange
	q.mu.Unlock()

	if playing == q.notified {
		return
	}
	q.notified = playing
	if fn != nil {
		fn(playing)
	}
}
