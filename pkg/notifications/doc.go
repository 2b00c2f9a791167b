// Package notifications turns inbound real-time events into user-visible
// notifications.
//
// # Architecture
//
// Events flow through four pieces:
//
//   - Normalizer maps each inbound event shape ("item:new", "item:resolved",
//     "challenge:received", "achievement:unlocked", "notification") to one
//     canonical Notification and infers its category and priority.
//   - Admit, fed by a PreferenceStore, drops notifications whose category the
//     user has disabled. Dropped notifications leave no trace.
//   - History keeps the bounded, newest-first list with its unread counter,
//     fans changes out to subscribers and persists a snapshot to a
//     storage.Store.
//   - Deliverers perform side effects: Toaster (in-app toasts with
//     auto-dismiss), SystemDeliverer, SoundDeliverer and VibrationDeliverer.
//     MultiDeliverer runs them with per-channel failure isolation.
//
// Dispatcher ties them together.
//
// # Usage
//
//	store := storage.NewMemoryStore()
//	prefs := notifications.NewPreferenceStore(notifications.WithPreferenceStorage(store))
//	history := notifications.NewHistory(notifications.WithHistoryStorage(store))
//	toaster := notifications.NewToaster(log)
//
//	dispatcher := notifications.NewDispatcher(history, prefs,
//	    notifications.WithDeliverer(notifications.NewMultiDeliverer([]notifications.Deliverer{
//	        toaster,
//	        notifications.NewSystemDeliverer(device.Notifier, device.Capabilities),
//	    })),
//	)
//
//	unsubscribe := history.Subscribe(func(ctx context.Context, c notifications.Change) {
//	    render(history.All(), c.UnreadCount)
//	})
//	defer unsubscribe()
//
//	_ = dispatcher.Dispatch(ctx, "item:new", raw)
//
// # Unread counter
//
// History.UnreadCount always equals the number of records that are neither
// read nor archived. MarkRead is idempotent, archiving or deleting an unread
// record decrements the counter, and evicting an unread record past the cap
// does too.
//
// # Persistence
//
// History persists {notifications, unreadCount} under "notifications", capped
// at the persisted limit (50 by default). PreferenceStore persists under
// "notification-preferences". Storage errors are logged and never returned.
package notifications
