package platform

import "context"

// Headless is a platform without device features. Every method reports
// ErrUnsupported; use it for servers and terminals.
type Headless struct{}

var (
	_ Notifier     = Headless{}
	_ AudioPlayer  = Headless{}
	_ Vibrator     = Headless{}
	_ PushPlatform = Headless{}
)

// HeadlessDevice returns a Device whose capabilities are all false.
func HeadlessDevice() Device {
	return Device{}
}

func (Headless) Permission() Permission               { return PermissionDenied }
func (Headless) Show(context.Context, Alert) error    { return ErrUnsupported }
func (Headless) Load(context.Context, string) error   { return ErrUnsupported }
func (Headless) Play(context.Context) error           { return ErrUnsupported }
func (Headless) Vibrate(context.Context, []int) error { return ErrUnsupported }
func (Headless) Supported() bool                      { return false }
func (Headless) Ready(context.Context) error          { return ErrUnsupported }
func (Headless) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, ErrUnsupported
}
func (Headless) Subscribe(context.Context, string) (PushEndpoint, error) {
	return PushEndpoint{}, ErrUnsupported
}
