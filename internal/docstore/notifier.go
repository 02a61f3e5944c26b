package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "something in this channel changed" signals. Signals are
// coalesced: a listener that is behind sees one pending signal, not many.
type Notifier interface {
	Publish(ctx context.Context, channels ...string) error
	Listen(ctx context.Context, channel string) (Listener, error)
}

// Listener receives change signals until closed.
type Listener interface {
	C() <-chan struct{}
	Close() error
}

func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// LocalNotifier fans signals out inside one process.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[string]map[*localListener]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]map[*localListener]struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, channels ...string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range channels {
		for l := range n.listeners[ch] {
			signal(l.c)
		}
	}
	return nil
}

func (n *LocalNotifier) Listen(_ context.Context, channel string) (Listener, error) {
	l := &localListener{n: n, channel: channel, c: make(chan struct{}, 1)}
	n.mu.Lock()
	set, ok := n.listeners[channel]
	if !ok {
		set = make(map[*localListener]struct{})
		n.listeners[channel] = set
	}
	set[l] = struct{}{}
	n.mu.Unlock()
	return l, nil
}

type localListener struct {
	n       *LocalNotifier
	channel string
	c       chan struct{}
	once    sync.Once
}

func (l *localListener) C() <-chan struct{} { return l.c }

func (l *localListener) Close() error {
	l.once.Do(func() {
		l.n.mu.Lock()
		delete(l.n.listeners[l.channel], l)
		if len(l.n.listeners[l.channel]) == 0 {
			delete(l.n.listeners, l.channel)
		}
		l.n.mu.Unlock()
	})
	return nil
}

const redisChannelPrefix = "docstore:"

// RedisNotifier relays signals through Redis pub/sub so subscribers on other
// instances observe writes made here.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, channels ...string) error {
	for _, ch := range channels {
		if err := n.rdb.Publish(ctx, redisChannelPrefix+ch, "1").Err(); err != nil {
			return fmt.Errorf("redis publish %s: %w", ch, err)
		}
	}
	return nil
}

func (n *RedisNotifier) Listen(ctx context.Context, channel string) (Listener, error) {
	ps := n.rdb.Subscribe(ctx, redisChannelPrefix+channel)
	// Wait for the subscription confirmation so no publish after Listen returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, ErrUnavailable)
	}
	l := &redisListener{ps: ps, c: make(chan struct{}, 1), done: make(chan struct{})}
	go l.pump()
	return l, nil
}

type redisListener struct {
	ps   *redis.PubSub
	c    chan struct{}
	done chan struct{}
	once sync.Once
}

func (l *redisListener) pump() {
	msgs := l.ps.Channel()
	for {
		select {
		case _, ok := <-msgs:
			if !ok {
				return
			}
			signal(l.c)
		case <-l.done:
			return
		}
	}
}

func (l *redisListener) C() <-chan struct{} { return l.c }

func (l *redisListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.ps.Close()
	})
	return err
}
