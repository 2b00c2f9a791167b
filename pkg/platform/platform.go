package platform

import "context"

// Capabilities is the set of device features available to the pipeline.
type Capabilities struct {
	CanNotify  bool `json:"canNotify"`
	CanVibrate bool `json:"canVibrate"`
	CanPersist bool `json:"canPersist"`
	CanPush    bool `json:"canPush"`
}

// Permission is the user's decision for a gated feature.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Granted reports whether p allows the feature.
func (p Permission) Granted() bool { return p == PermissionGranted }

// Alert is what a system notification shows.
type Alert struct {
	Title string
	Body  string
	Tag   string
	Icon  string
	URL   string
}

// Notifier shows system-level notifications.
type Notifier interface {
	Permission() Permission
	Show(ctx context.Context, a Alert) error
}

// AudioPlayer plays a short notification sound.
// Play returns ErrResourceNotLoaded when Load has not succeeded.
type AudioPlayer interface {
	Load(ctx context.Context, resource string) error
	Play(ctx context.Context) error
}

// Vibrator triggers a vibration pattern; durations alternate on/off in milliseconds.
type Vibrator interface {
	Vibrate(ctx context.Context, pattern []int) error
}

// PushKeys carries the subscription's encryption material.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushEndpoint is the platform's answer to a subscribe request.
type PushEndpoint struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// PushPlatform is the background delivery agent of the host.
type PushPlatform interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	// Ready blocks until the background agent is active.
	Ready(ctx context.Context) error
	Subscribe(ctx context.Context, publicKey string) (PushEndpoint, error)
}

// Device bundles what Detect found.
type Device struct {
	Capabilities Capabilities
	Notifier     Notifier
	Audio        AudioPlayer
	Vibrator     Vibrator
	Push         PushPlatform
}

// Detect derives Capabilities from the provided device drivers.
// A nil driver disables its capability. canPersist is passed through
// because storage availability is decided by the storage backend.
func Detect(d Device, canPersist bool) Device {
	d.Capabilities = Capabilities{
		CanNotify:  d.Notifier != nil,
		CanVibrate: d.Vibrator != nil,
		CanPersist: canPersist,
		CanPush:    d.Push != nil && d.Push.Supported(),
	}
	return d
}
