// Package pipeline assembles the notification pipeline for one process.
//
// New builds every component from a Config: the storage backend selected by
// NOTIFY_STORAGE, the preference store, the bounded history, the delivery
// channels (toast, system, sound, vibration) gated by detected device
// capabilities, the dispatcher, the realtime connection manager and the push
// manager. Dependencies that tests or embedders want to control can be
// supplied with options instead.
//
//	cfg, err := pipeline.LoadConfig(".env")
//	if err != nil {
//		return err
//	}
//	p, err := pipeline.New(ctx, cfg, pipeline.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer p.Close(ctx)
//
//	if err := p.Connect(ctx, "user-1"); err != nil {
//		return err
//	}
//	p.History().Subscribe(func(ctx context.Context, c notifications.Change) {
//		render(c.UnreadCount)
//	})
//
// While connected, every preference change is sent to the server as an
// updatePreferences message.
package pipeline
