package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// ErrNotRecipient is returned when someone other than the recipient tries
// to mutate a notification.
var ErrNotRecipient = errors.New("only the recipient may modify a notification")

// NotificationRepo stores notifications in the top-level notifications collection.
type NotificationRepo struct {
	store *docstore.Store
}

func NewNotificationRepo(store *docstore.Store) *NotificationRepo {
	return &NotificationRepo{store: store}
}

func (r *NotificationRepo) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if err := n.Validate(); err != nil {
		return domain.Notification{}, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	if _, err := r.store.Create(ctx, notificationsCollection, n.ID, n); err != nil {
		return domain.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func decodeNotification(doc docstore.Document) (domain.Notification, error) {
	var n domain.Notification
	if err := doc.Decode(&n); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	n.ID = doc.ID
	return n, nil
}

// ListForRecipient returns newest first. limit <= 0 means no limit.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	q := docstore.Query{
		Collection: notificationsCollection,
		Filters:    []docstore.Filter{docstore.Where("recipient", docstore.OpEq, recipient)},
		OrderBy:    "created_at",
		Desc:       true,
		Limit:      limit,
	}
	if unreadOnly {
		q.Filters = append(q.Filters, docstore.Where("read", docstore.OpEq, false))
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(docs))
	for _, d := range docs {
		n, err := decodeNotification(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead flags one notification as read, conditioned on the caller being
// its recipient.
func (r *NotificationRepo) MarkRead(ctx context.Context, recipient, id string) error {
	err := r.store.Update(ctx, notificationsCollection, id,
		docstore.Patch{"read": true},
		docstore.Where("recipient", docstore.OpEq, recipient),
	)
	if errors.Is(err, docstore.ErrConditionFailed) {
		return ErrNotRecipient
	}
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead flags every unread notification of the recipient. It returns
// how many were updated before the first failure.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	unread, err := r.ListForRecipient(ctx, recipient, true, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range unread {
		if err := r.MarkRead(ctx, recipient, item.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
