package notifications

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/platform"
)

// SystemDeliverer shows device-level notifications. It requires the CanNotify
// capability and a granted permission, and by default only shows notifications
// of medium priority or higher.
type SystemDeliverer struct {
	notifier    platform.Notifier
	caps        platform.Capabilities
	minPriority Priority
}

// SystemOption configures a SystemDeliverer.
type SystemOption func(*SystemDeliverer)

// WithMinPriority lowers or raises the priority threshold.
func WithMinPriority(p Priority) SystemOption {
	return func(s *SystemDeliverer) {
		if p.Valid() {
			s.minPriority = p
		}
	}
}

func NewSystemDeliverer(notifier platform.Notifier, caps platform.Capabilities, opts ...SystemOption) *SystemDeliverer {
	s := &SystemDeliverer{
		notifier:    notifier,
		caps:        caps,
		minPriority: PriorityMedium,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SystemDeliverer) Name() string { return "system" }

func (s *SystemDeliverer) Deliver(ctx context.Context, n Notification, _ Preferences) error {
	if !s.caps.CanNotify || s.notifier == nil {
		return nil
	}
	if !s.notifier.Permission().Granted() {
		return nil
	}
	if !n.Priority.AtLeast(s.minPriority) {
		return nil
	}
	return s.notifier.Show(ctx, platform.Alert{
		Title: n.Title,
		Body:  n.Message,
		Tag:   n.ID,
		URL:   n.ActionURL,
	})
}

// SoundDeliverer plays the notification sound when the user has sound enabled.
// The audio resource is loaded on first use; if loading fails the channel
// stays silent for the rest of the session. Playback errors are swallowed.
type SoundDeliverer struct {
	player   platform.AudioPlayer
	resource string
	logger   *slog.Logger

	loadOnce sync.Once
	loaded   bool
}

// NewSoundDeliverer creates a sound channel for the given audio resource.
func NewSoundDeliverer(player platform.AudioPlayer, resource string, l *slog.Logger) *SoundDeliverer {
	if l == nil {
		l = slog.Default()
	}
	return &SoundDeliverer{player: player, resource: resource, logger: l}
}

func (s *SoundDeliverer) Name() string { return "sound" }

func (s *SoundDeliverer) Deliver(ctx context.Context, n Notification, prefs Preferences) error {
	if !prefs.SoundEnabled || s.player == nil {
		return nil
	}

	s.loadOnce.Do(func() {
		if err := s.player.Load(ctx, s.resource); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelDebug, "notification sound unavailable",
				logger.Channel(s.Name()),
				logger.Error(err),
			)
			return
		}
		s.loaded = true
	})
	if !s.loaded {
		return nil
	}

	if err := s.player.Play(ctx); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "notification sound playback failed",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}
	return nil
}

// Vibration patterns in milliseconds, alternating on and off.
var (
	DefaultVibrationPattern = []int{200, 100, 200}
	UrgentVibrationPattern  = []int{300, 100, 300, 100, 300}
)

// VibrationDeliverer vibrates the device when supported and enabled.
type VibrationDeliverer struct {
	vibrator platform.Vibrator
	caps     platform.Capabilities
}

func NewVibrationDeliverer(v platform.Vibrator, caps platform.Capabilities) *VibrationDeliverer {
	return &VibrationDeliverer{vibrator: v, caps: caps}
}

func (v *VibrationDeliverer) Name() string { return "vibration" }

func (v *VibrationDeliverer) Deliver(ctx context.Context, n Notification, prefs Preferences) error {
	if !v.caps.CanVibrate || v.vibrator == nil || !prefs.VibrationEnabled {
		return nil
	}
	pattern := DefaultVibrationPattern
	if n.Priority == PriorityHigh {
		pattern = UrgentVibrationPattern
	}
	return v.vibrator.Vibrate(ctx, pattern)
}
