package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// TerminalOptions configures terminal output.
type TerminalOptions struct {
	Bell  bool
	Color bool
}

// TerminalChannel prints notifications as single lines and rings the bell
// for haptic cues.
type TerminalChannel struct {
	out  io.Writer
	opts TerminalOptions
	mu   sync.Mutex
}

// NewTerminalChannel creates a TerminalChannel writing to out.
func NewTerminalChannel(out io.Writer, opts TerminalOptions) *TerminalChannel {
	return &TerminalChannel{out: out, opts: opts}
}

// Name returns the name of the channel.
func (t *TerminalChannel) Name() string { return "terminal" }

// IsEnabled returns whether the channel is enabled.
func (t *TerminalChannel) IsEnabled() bool { return t.out != nil }

// Send prints the notification.
func (t *TerminalChannel) Send(_ context.Context, n Notification) error {
	line := FormatNotification(n, t.opts.Color)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.out, line)
	return err
}

// Vibrate rings the terminal bell. The duration has no terminal equivalent.
func (t *TerminalChannel) Vibrate(context.Context, time.Duration) error {
	if !t.opts.Bell {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, "\a")
	return err
}

// FormatNotification formats a notification for terminal display.
func FormatNotification(n Notification, colorEnabled bool) string {
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var indicator string
	var c *color.Color
	switch n.Type {
	case NotificationAlert:
		indicator = "🔔 ALERT"
		c = color.New(color.FgYellow, color.Bold)
	case NotificationError:
		indicator = "❌ ERROR"
		c = color.New(color.FgRed)
	default:
		indicator = "ℹ️  INFO"
		c = color.New(color.FgCyan)
	}

	head := fmt.Sprintf("[%s] %s", ts.Format("15:04:05"), indicator)
	if colorEnabled {
		c.EnableColor()
		head = c.Sprint(head)
	}

	var sb strings.Builder
	sb.WriteString(head)
	if n.Title != "" {
		sb.WriteString(" ")
		sb.WriteString(n.Title)
		sb.WriteString(":")
	}
	sb.WriteString(" ")
	sb.WriteString(n.Message)
	return sb.String()
}
