package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/LucasSckenal/nexo-sub000/internal/cache"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// InboxLimit caps how many notifications List returns.
const InboxLimit = 100

// Inbox is the recipient side: reading and marking notifications.
type Inbox struct {
	store  Store
	cache  *cache.NotificationCache
	logger *slog.Logger
	sf     singleflight.Group
}

// NewInbox creates an Inbox. If c is nil, caching is disabled.
func NewInbox(store Store, c *cache.NotificationCache, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{store: store, cache: c, logger: logger}
}

// List returns the recipient's newest notifications.
func (b *Inbox) List(ctx context.Context, recipient string) ([]domain.Notification, error) {
	if b.cache == nil {
		return b.store.ListForRecipient(ctx, recipient, false, InboxLimit)
	}
	v, err, _ := b.sf.Do("list:"+recipient, func() (interface{}, error) {
		if list, err := b.cache.GetList(ctx, recipient); err == nil && list != nil {
			return list, nil
		}
		gen, genErr := b.cache.Generation(ctx, recipient)
		list, err := b.store.ListForRecipient(ctx, recipient, false, InboxLimit)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			_ = b.cache.SetList(ctx, recipient, gen, list)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Notification), nil
}

// UnreadCount counts the recipient's unread notifications.
func (b *Inbox) UnreadCount(ctx context.Context, recipient string) (int, error) {
	count := func() (int, error) {
		unread, err := b.store.ListForRecipient(ctx, recipient, true, 0)
		if err != nil {
			return 0, err
		}
		return len(unread), nil
	}
	if b.cache == nil {
		return count()
	}
	v, err, _ := b.sf.Do("unread:"+recipient, func() (interface{}, error) {
		if n, ok, err := b.cache.GetUnread(ctx, recipient); err == nil && ok {
			return n, nil
		}
		gen, genErr := b.cache.Generation(ctx, recipient)
		n, err := count()
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			_ = b.cache.SetUnread(ctx, recipient, gen, n)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// MarkRead flags one notification. Only its recipient may do so.
func (b *Inbox) MarkRead(ctx context.Context, recipient, id string) error {
	if err := b.store.MarkRead(ctx, recipient, id); err != nil {
		return err
	}
	b.invalidate(ctx, recipient)
	return nil
}

func (b *Inbox) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	n, err := b.store.MarkAllRead(ctx, recipient)
	if n > 0 {
		b.invalidate(ctx, recipient)
	}
	return n, err
}

func (b *Inbox) invalidate(ctx context.Context, recipient string) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Invalidate(ctx, recipient); err != nil {
		b.logger.Warn("inbox cache not invalidated", slog.String("recipient", recipient), slog.String("error", err.Error()))
	}
}
