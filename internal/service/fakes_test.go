package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	cache "sqsbridge/internal/cache/iface"
	"sqsbridge/internal/config"
	queue "sqsbridge/internal/queue/iface"
)

type receiveResult struct {
	messages []queue.Message
	err      error
}

// fakeQueue serves scripted receive results in order, then empty receives.
type fakeQueue struct {
	mu        sync.Mutex
	script    []receiveResult
	receives  int
	requests  []queue.ReceiveRequest
	deletes   [][]queue.DeleteEntry
	deleteErr error
	failIDs   map[string]bool
	depth     queue.Depth
	depthErr  error
	idlePoll  time.Duration
}

func newFakeQueue(script ...receiveResult) *fakeQueue {
	return &fakeQueue{script: script, idlePoll: 5 * time.Millisecond}
}

func (q *fakeQueue) ReceiveMessages(ctx context.Context, req queue.ReceiveRequest) ([]queue.Message, error) {
	q.mu.Lock()
	q.receives++
	q.requests = append(q.requests, req)
	if len(q.script) > 0 {
		next := q.script[0]
		q.script = q.script[1:]
		q.mu.Unlock()
		return next.messages, next.err
	}
	idle := q.idlePoll
	q.mu.Unlock()

	select {
	case <-time.After(idle):
	case <-ctx.Done():
	}
	return nil, nil
}

func (q *fakeQueue) DeleteMessageBatch(ctx context.Context, queueURL string, entries []queue.DeleteEntry) (queue.DeleteResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deletes = append(q.deletes, append([]queue.DeleteEntry(nil), entries...))
	if q.deleteErr != nil {
		return queue.DeleteResult{}, q.deleteErr
	}

	var result queue.DeleteResult
	for _, e := range entries {
		if q.failIDs[e.ID] {
			result.Failed = append(result.Failed, queue.DeleteFailure{
				ID:          e.ID,
				Code:        "ReceiptHandleIsInvalid",
				Message:     "The receipt handle is not valid",
				SenderFault: true,
			})
			continue
		}
		result.Deleted = append(result.Deleted, e.ID)
	}
	return result, nil
}

func (q *fakeQueue) Depth(ctx context.Context, queueURL string) (queue.Depth, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth, q.depthErr
}

func (q *fakeQueue) receiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.receives
}

func (q *fakeQueue) deleteCalls() [][]queue.DeleteEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]queue.DeleteEntry, len(q.deletes))
	copy(out, q.deletes)
	return out
}

func (q *fakeQueue) deletedIDs() []string {
	var ids []string
	for _, batch := range q.deleteCalls() {
		for _, e := range batch {
			if !q.failIDs[e.ID] {
				ids = append(ids, e.ID)
			}
		}
	}
	return ids
}

func makeMessages(prefix string, n int) []queue.Message {
	msgs := make([]queue.Message, n)
	for i := range msgs {
		msgs[i] = queue.Message{
			ID:            fmt.Sprintf("%s-%d", prefix, i),
			Body:          fmt.Sprintf(`{"n":%d}`, i),
			ReceiptHandle: fmt.Sprintf("rh-%s-%d", prefix, i),
		}
	}
	return msgs
}

// endpoint is an httptest server recording request bodies.
type endpoint struct {
	*httptest.Server
	mu       sync.Mutex
	bodies   []string
	inFlight int32
	peak     int32
}

func newEndpoint(status func(body string) int, delay time.Duration) *endpoint {
	e := &endpoint{}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&e.inFlight, 1)
		defer atomic.AddInt32(&e.inFlight, -1)
		for {
			p := atomic.LoadInt32(&e.peak)
			if n <= p || atomic.CompareAndSwapInt32(&e.peak, p, n) {
				break
			}
		}

		raw, _ := io.ReadAll(r.Body)
		body := string(raw)

		e.mu.Lock()
		e.bodies = append(e.bodies, body)
		e.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.WriteHeader(status(body))
	}))
	return e
}

func alwaysOK(string) int { return http.StatusOK }

func (e *endpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bodies)
}

func testConfig(postURL string) config.Config {
	c := config.Defaults()
	c.PostURL = postURL
	c.QueueURL = "http://localhost:4566/000000000000/bridge-queue"
	c.FetchWaitSecs = 0
	c.DeleteWaitMsecs = 100
	return c
}

// memoryCache is an in-process cache.Cache.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

var _ cache.Cache = (*memoryCache)(nil)

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", cache.ErrKeyNotFound, key)
	}
	return v, nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.ttls, key)
	return nil
}

func (m *memoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl, ok := m.ttls[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", cache.ErrKeyNotFound, key)
	}
	return ttl, nil
}

func (m *memoryCache) Close() error { return nil }
