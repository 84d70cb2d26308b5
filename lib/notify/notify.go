// Package notify shows a desktop notification when a completion cannot be
// delivered to the desktop app.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/nrednav/cuid2"
)

type command struct {
	name string
	args []string
	env  []string
}

// Title and body are passed as arguments or environment, never spliced into
// a script. id tags the notification where the platform has a slot for it;
// osascript has none.
func platformCommand(goos, id, title, body string) (command, error) {
	switch goos {
	case "darwin":
		return command{
			name: "osascript",
			args: []string{
				"-e", "on run argv",
				"-e", "display notification (item 2 of argv) with title (item 1 of argv)",
				"-e", "end run",
				title, body,
			},
		}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return command{name: "notify-send", args: []string{
			"--app-name=aibridge",
			"--hint=string:x-aibridge-id:" + id,
			"--", title, body,
		}}, nil
	case "windows":
		script := strings.Join([]string{
			"Add-Type -AssemblyName System.Windows.Forms",
			"$n = New-Object System.Windows.Forms.NotifyIcon",
			"$n.Icon = [System.Drawing.SystemIcons]::Information",
			"$n.Text = 'aibridge ' + $env:AIBRIDGE_ID",
			"$n.Visible = $true",
			"$n.ShowBalloonTip(5000, $env:AIBRIDGE_TITLE, $env:AIBRIDGE_BODY, 'Info')",
			"Start-Sleep -Seconds 6",
			"$n.Dispose()",
		}, "; ")
		return command{
			name: "powershell",
			args: []string{"-NoProfile", "-NonInteractive", "-Command", script},
			env:  []string{"AIBRIDGE_ID=" + id, "AIBRIDGE_TITLE=" + title, "AIBRIDGE_BODY=" + body},
		}, nil
	}
	return command{}, fmt.Errorf("notifications not supported on %s", goos)
}

type runner func(ctx context.Context, c command) error

func execRunner(ctx context.Context, c command) error {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Desktop shows notifications through the platform's notifier.
type Desktop struct {
	log  *slog.Logger
	goos string
	run  runner
}

func NewDesktop(log *slog.Logger) *Desktop {
	return &Desktop{log: log.With("component", "notify"), goos: runtime.GOOS, run: execRunner}
}

func (d *Desktop) Show(ctx context.Context, title, body string) error {
	id := cuid2.Generate()
	c, err := platformCommand(d.goos, id, title, body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.run(ctx, c); err != nil {
		return fmt.Errorf("show notification %s: %w", id, err)
	}
	d.log.Info("notification shown", "id", id, "title", title)
	return nil
}

// Log records notifications in the log instead of showing them.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With("component", "notify")}
}

func (l *Log) Show(ctx context.Context, title, body string) error {
	l.log.Info("notification", "id", cuid2.Generate(), "title", title, "body", body)
	return nil
}
