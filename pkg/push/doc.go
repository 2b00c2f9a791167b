// Package push registers the device for background (push) delivery.
//
// Manager.Init runs once per process. When the platform supports push it asks
// for permission if the user has not decided yet, waits for the background
// agent, subscribes with the application server key and persists the
// resulting descriptor under SubscriptionsKey. The descriptor is then posted
// once to the registration endpoint as {"subscription": ..., "userId": ...}
// through pkg/webhook without retries.
//
// Nothing in Init is fatal. An unsupported platform, a denied permission or a
// failed subscribe leaves the Manager inert and is reported through Status.
// A failed registration is logged and the local descriptor is kept.
//
//	m := push.NewManager(device.Push,
//		push.WithStorage(store),
//		push.WithPublicKey(cfg.PushPublicKey),
//		push.WithEndpoint(cfg.PushEndpoint),
//	)
//	if m.Init(ctx, userID).Active() {
//		log.Info("push enabled")
//	}
package push
