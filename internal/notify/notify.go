// Package notify delivers alert notifications to the user.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptotracker/internal/config"
	"cryptotracker/internal/errors"
)

const (
	// AlertTitle is the title of every price alert notification.
	AlertTitle = "Crypto Alert"
	// ChannelID and ChannelName identify the price alert stream to receivers.
	ChannelID   = "price_alerts_channel"
	ChannelName = "Price Alerts"
	// DefaultVibrateDuration is the haptic length used when none is configured.
	DefaultVibrateDuration = 500 * time.Millisecond
)

// Sink is where the alert loop sends user-visible effects. Implementations are
// fire-and-forget from the caller's point of view.
type Sink interface {
	Notify(ctx context.Context, title, body string) error
	Vibrate(ctx context.Context, d time.Duration) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Vibrator is implemented by channels that can produce a haptic or audible cue.
type Vibrator interface {
	Vibrate(ctx context.Context, d time.Duration) error
}

// Notification represents a notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Channel   string
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationAlert NotificationType = "alert"
	NotificationError NotificationType = "error"
	NotificationInfo  NotificationType = "info"
)

// Dispatcher fans notifications out to every enabled channel.
type Dispatcher struct {
	channels []NotificationChannel
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewDispatcher creates a Dispatcher with the given channels.
func NewDispatcher(logger zerolog.Logger, channels ...NotificationChannel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// NewDispatcherFromConfig builds the channels enabled in cfg. Terminal output
// goes to out.
func NewDispatcherFromConfig(cfg *config.Config, out io.Writer, logger zerolog.Logger) *Dispatcher {
	d := NewDispatcher(logger)
	n := cfg.Notifications

	if n.Terminal.Enabled {
		d.AddChannel(NewTerminalChannel(out, TerminalOptions{
			Bell:  n.Terminal.Bell,
			Color: cfg.UI.ColorEnabled,
		}))
	}
	if n.Desktop.Enabled {
		d.AddChannel(NewDesktopChannel())
	}
	if n.Webhook.Enabled {
		d.AddChannel(NewWebhookChannel(n.Webhook))
	}
	if n.Telegram.Enabled {
		d.AddChannel(NewTelegramChannel(n.Telegram, cfg.Credentials.Telegram.BotToken))
	}
	if n.Email.Enabled {
		d.AddChannel(NewEmailChannel(n.Email, cfg.Credentials.Email.Password))
	}

	return d
}

// AddChannel adds a notification channel.
func (d *Dispatcher) AddChannel(ch NotificationChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch)
}

// Channels returns the names of the enabled channels.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

func (d *Dispatcher) snapshot() []NotificationChannel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]NotificationChannel, len(d.channels))
	copy(out, d.channels)
	return out
}

// Send delivers n to all enabled channels. Every channel is attempted; the
// failures are joined into one error.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if n.Channel == "" {
		n.Channel = ChannelID
	}

	var errs []error
	for _, ch := range d.snapshot() {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			d.logger.Warn().Err(err).Str("channel", ch.Name()).Str("notification_id", n.ID).Msg("Notification delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Notify sends an alert notification.
func (d *Dispatcher) Notify(ctx context.Context, title, body string) error {
	return d.Send(ctx, Notification{
		Type:    NotificationAlert,
		Title:   title,
		Message: body,
	})
}

// Vibrate asks every channel that supports it to emit a haptic cue.
func (d *Dispatcher) Vibrate(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		dur = DefaultVibrateDuration
	}
	var errs []error
	for _, ch := range d.snapshot() {
		v, ok := ch.(Vibrator)
		if !ok || !ch.IsEnabled() {
			continue
		}
		if err := v.Vibrate(ctx, dur); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// NoOpSink is a sink that does nothing (for testing or disabled notifications).
type NoOpSink struct{}

// Notify does nothing.
func (NoOpSink) Notify(context.Context, string, string) error { return nil }

// Vibrate does nothing.
func (NoOpSink) Vibrate(context.Context, time.Duration) error { return nil }
