package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/storage"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNotification(i int, c Category) Notification {
	return Notification{
		ID:        fmt.Sprintf("n-%03d", i),
		Category:  c,
		Title:     fmt.Sprintf("Title %d", i),
		Message:   fmt.Sprintf("Message %d", i),
		Timestamp: testEpoch.Add(time.Duration(i) * time.Second),
		Priority:  PriorityMedium,
	}
}

func newTestHistory(store storage.Store, opts ...HistoryOption) *History {
	opts = append([]HistoryOption{
		WithHistoryLogger(logger.Nop()),
		WithHistoryClock(func() time.Time { return testEpoch }),
	}, opts...)
	if store != nil {
		opts = append(opts, WithHistoryStorage(store))
	}
	return NewHistory(opts...)
}

// requireUnreadInvariant checks the counter against a full recount.
func requireUnreadInvariant(t *testing.T, h *History) {
	t.Helper()

	want := 0
	for _, n := range append(h.All(), h.Archived()...) {
		if !n.Read && !n.Archived {
			want++
		}
	}
	require.Equal(t, want, h.UnreadCount(), "unread counter out of sync")
	require.GreaterOrEqual(t, h.UnreadCount(), 0)
}

func loadSnapshot(t *testing.T, s storage.Store) Snapshot {
	t.Helper()

	var snap Snapshot
	require.NoError(t, storage.GetJSON(context.Background(), s, HistoryKey, &snap))
	return snap
}
