package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store is the entry point used by the rest of the service: every write
// goes to the backend and then signals the collection and group channels.
type Store struct {
	backend  Backend
	notifier Notifier
	retry    RetryPolicy
	logger   *slog.Logger
}

// New returns a Store. A nil notifier means an in-process LocalNotifier.
func New(backend Backend, notifier Notifier, logger *slog.Logger) *Store {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, notifier: notifier, retry: DefaultRetryPolicy(), logger: logger}
}

// WithRetry sets the policy used when re-running live queries.
func (s *Store) WithRetry(p RetryPolicy) *Store {
	s.retry = p
	return s
}

// Retry runs op under the store's retry policy.
func (s *Store) Retry(ctx context.Context, op func() error) error {
	return Retry(ctx, s.retry, op)
}

func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	return s.backend.Get(ctx, collection, id)
}

func (s *Store) Query(ctx context.Context, q Query) ([]Document, error) {
	return s.backend.Query(ctx, q)
}

// Create marshals data and stores it. An empty id lets the backend pick one.
func (s *Store) Create(ctx context.Context, collection, id string, data any) (Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", collection, err)
	}
	doc, err := s.backend.Create(ctx, collection, id, raw)
	if err != nil {
		return Document{}, err
	}
	s.publish(ctx, collection)
	return doc, nil
}

// Update applies a partial update, optionally conditioned on the current
// document matching conds.
func (s *Store) Update(ctx context.Context, collection, id string, patch Patch, conds ...Filter) error {
	if err := s.backend.Update(ctx, collection, id, patch, conds...); err != nil {
		return err
	}
	s.publish(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.backend.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.publish(ctx, collection)
	return nil
}

func (s *Store) Close() error { return s.backend.Close() }

// publish failures are logged, not returned: the write already succeeded and
// subscribers resynchronise on the next signal.
func (s *Store) publish(ctx context.Context, collection string) {
	if err := s.notifier.Publish(ctx, collectionChannel(collection), groupChannel(Group(collection))); err != nil {
		s.logger.Warn("change signal not published", slog.String("collection", collection), slog.String("error", err.Error()))
	}
}

// Subscribe opens a live query. The subscription emits the full result set
// once, then again after every observed change that alters it.
func (s *Store) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	listener, err := s.notifier.Listen(ctx, q.channel())
	if err != nil {
		cancel()
		return nil, err
	}
	sub := &Subscription{
		c:      make(chan []Document, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(ctx, s, q, listener)
	return sub, nil
}

// Subscription delivers result sets of a live query. Only the latest
// undelivered set is kept; a slow reader never receives a set older than
// one it could have received.
type Subscription struct {
	c      chan []Document
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// C is closed when the subscription ends.
func (s *Subscription) C() <-chan []Document { return s.c }

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Err reports why the subscription ended, nil after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Subscription) run(ctx context.Context, store *Store, q Query, listener Listener) {
	defer close(s.done)
	defer close(s.c)
	defer listener.Close()

	var last [sha256.Size]byte
	first := true
	refresh := func() bool {
		docs, err := RetryValue(ctx, store.retry, func() ([]Document, error) {
			return store.backend.Query(ctx, q)
		})
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				store.logger.Error("live query failed", slog.String("channel", q.channel()), slog.String("error", err.Error()))
				s.fail(err)
			}
			return false
		}
		sum := fingerprint(docs)
		if first || sum != last {
			first = false
			last = sum
			s.emit(docs)
		}
		return true
	}

	if !refresh() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.C():
			if !refresh() {
				return
			}
		}
	}
}

func (s *Subscription) emit(docs []Document) {
	for {
		select {
		case s.c <- docs:
			return
		default:
		}
		select {
		case <-s.c:
		default:
		}
	}
}

func fingerprint(docs []Document) [sha256.Size]byte {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.Path()))
		h.Write([]byte{0})
		h.Write(d.Data)
		h.Write([]byte{0})
	}
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
