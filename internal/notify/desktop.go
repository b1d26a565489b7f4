package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// commandRunner starts an external command without waiting for it.
type commandRunner func(ctx context.Context, name string, args ...string) error

func startCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap in the background.
	go cmd.Wait()
	return nil
}

// DesktopChannel raises OS notifications via notify-send (Linux) or
// osascript (macOS).
type DesktopChannel struct {
	goos string
	run  commandRunner
}

// NewDesktopChannel creates a DesktopChannel for the current OS.
func NewDesktopChannel() *DesktopChannel {
	return &DesktopChannel{goos: runtime.GOOS, run: startCommand}
}

// Name returns the name of the channel.
func (d *DesktopChannel) Name() string { return "desktop" }

// IsEnabled reports whether the OS has a supported notifier.
func (d *DesktopChannel) IsEnabled() bool {
	return d.goos == "linux" || d.goos == "darwin"
}

// Send raises a desktop notification.
func (d *DesktopChannel) Send(_ context.Context, n Notification) error {
	// Detached from the caller's context so the popup outlives the cycle.
	ctx := context.Background()
	switch d.goos {
	case "linux":
		return d.run(ctx, "notify-send", "--app-name", ChannelName, "--urgency", "normal", n.Title, n.Message)
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s sound name \"default\"",
			appleScriptQuote(n.Message), appleScriptQuote(n.Title))
		return d.run(ctx, "osascript", "-e", script)
	default:
		return fmt.Errorf("desktop notifications unsupported on %s", d.goos)
	}
}

func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
