package mockreq

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tarmac-project/mockreq/event"
	"github.com/tarmac-project/mockreq/stream"
)

// adapter relays a live producer into a Request. It owns the producer for the
// lifetime of the binding.
type adapter struct {
	req *Request
	src stream.Producer
	log *zap.Logger

	// subs holds every listener installed on src; it is disposed on the first
	// terminal event.
	subs event.Group

	buffered bool
	done     func(error, int64)

	mu       sync.Mutex
	finished bool
	total    int64

	// Lazy relay state.
	draining bool
	again    bool
	awaiting bool
	waiting  *event.Subscription
}

func newAdapter(req *Request, src stream.Producer, buffered bool, done func(error, int64)) *adapter {
	return &adapter{
		req:      req,
		src:      src,
		log:      req.logger,
		buffered: buffered,
		done:     done,
	}
}

// startLazy relays on demand: nothing is read from src until the consumer
// pulls.
func (a *adapter) startLazy() {
	a.subs.Add(
		a.src.OnEnd(a.onEnd),
		a.src.OnClose(a.onClose),
		a.src.OnError(a.onError),
	)
	a.req.SetPull(a.pull)
}

// startUpfront relays every chunk as soon as src emits it. Consumer
// backpressure is ignored so the completion callback always sees the whole
// body.
func (a *adapter) startUpfront() {
	a.subs.Add(
		a.src.OnData(a.onData),
		a.src.OnEnd(a.onEnd),
		a.src.OnClose(a.onClose),
		a.src.OnError(a.onError),
	)
	// Reads block on pushes from src rather than pulling.
	a.req.SetPull(func(int) {})
	a.src.Resume()
}

// pull is the consumer's pull hook. A pull that arrives while a drain is in
// progress is folded into it.
func (a *adapter) pull(int) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	if a.draining {
		a.again = true
		a.mu.Unlock()
		return
	}
	a.draining = true
	a.mu.Unlock()

	a.req.setState(StateDraining)

	for {
		a.drain()

		a.mu.Lock()
		if !a.again || a.finished {
			a.draining = false
			a.again = false
			a.mu.Unlock()
			return
		}
		a.again = false
		a.mu.Unlock()
	}
}

// drain forwards chunks until src has nothing ready or the consumer buffer is
// full. Only the first case waits on src; the second waits for the next pull.
func (a *adapter) drain() {
	for {
		chunk, ok := a.src.ReadChunk(0)
		if !ok {
			if !a.await() {
				return
			}
			// A chunk may have landed between the read and the subscription.
			if chunk, ok = a.src.ReadChunk(0); !ok {
				return
			}
			a.cancelAwait()
		}
		if !a.req.Push(chunk) {
			return
		}
	}
}

// await marks the consumer as waiting and subscribes once to src's readable
// notification. It reports false once the binding has finished.
func (a *adapter) await() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished {
		return false
	}
	a.awaiting = true
	if a.waiting == nil {
		a.waiting = a.src.OnReadable(a.onReadable)
		a.subs.Add(a.waiting)
	}
	return true
}

func (a *adapter) cancelAwait() {
	a.mu.Lock()
	sub := a.waiting
	a.waiting = nil
	a.awaiting = false
	a.mu.Unlock()

	sub.Dispose()
}

// onReadable re-runs the drain only while the consumer is still waiting for
// data.
func (a *adapter) onReadable() {
	a.mu.Lock()
	sub := a.waiting
	a.waiting = nil
	awaiting := a.awaiting
	a.awaiting = false
	a.mu.Unlock()

	sub.Dispose()
	if awaiting {
		a.pull(0)
	}
}

func (a *adapter) onData(chunk []byte) {
	a.mu.Lock()
	a.total += int64(len(chunk))
	a.mu.Unlock()

	a.req.Push(chunk)
}

// finish claims the single terminal transition and tears down every listener
// on src. Only the first caller gets true.
func (a *adapter) finish() (int64, bool) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return 0, false
	}
	a.finished = true
	a.awaiting = false
	a.waiting = nil
	total := a.total
	a.mu.Unlock()

	a.subs.Dispose()
	return total, true
}

func (a *adapter) onEnd() {
	total, ok := a.finish()
	if !ok {
		return
	}

	if ts, isTrailerSource := a.src.(stream.TrailerSource); isTrailerSource {
		a.req.mu.Lock()
		a.req.producerTrailers = ts.Trailers()
		a.req.mu.Unlock()
	}
	if a.buffered {
		a.req.setContentLength(total)
	}

	a.log.Debug("producer ended", zap.Int64("bytes", total))
	a.req.PushEOF()
	a.complete(nil, total)
}

func (a *adapter) onClose() {
	total, ok := a.finish()
	if !ok {
		return
	}
	if a.buffered {
		a.req.setContentLength(total)
	}

	a.log.Debug("producer closed")
	a.req.setState(StateClosed)
	a.req.PushEOF()
	_ = a.req.Close()
	a.complete(nil, total)
}

// onError is a terminal exit of its own on both strategies: the error is
// forwarded without EOF and trailers stay empty, even when buffering upfront.
func (a *adapter) onError(err error) {
	total, ok := a.finish()
	if !ok {
		return
	}
	if a.buffered {
		a.req.setContentLength(total)
	}

	a.log.Debug("producer failed", zap.Error(err))
	a.req.setState(StateErrored)
	a.req.Fail(err)
	a.complete(err, total)
}

func (a *adapter) complete(err error, total int64) {
	if a.buffered && a.done != nil {
		a.done(err, total)
	}
}
