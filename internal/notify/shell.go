package notify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/channel"
	"github.com/play-it-team/healthchecks/internal/domain/check"
	"github.com/play-it-team/healthchecks/internal/domain/notification"
)

// Shell runs a per-direction command template through the system shell.
// There is no retry: a shell command's side effects are not safely
// repeatable. The command is also not time-boxed here; these are expected
// to be short scripts governed by their own runtime.
type Shell struct {
	Log *zap.Logger
}

func NewShell(log *zap.Logger) *Shell {
	return &Shell{Log: log.With(zap.String("component", "notify.shell"))}
}

func (s *Shell) IsNoop(ch *channel.Channel, c *check.Check) bool {
	cfg := ch.Config.Shell
	if cfg == nil {
		return false
	}
	if c.Status == check.StatusDown {
		return cfg.CmdDown == ""
	}
	return cfg.CmdUp == ""
}

func (s *Shell) Notify(_ context.Context, ch *channel.Channel, c *check.Check, _ *notification.Notification) error {
	cfg := ch.Config.Shell
	if cfg == nil {
		return fmt.Errorf("shell channel %s has no configuration", ch.Code)
	}

	tmpl := cfg.CmdUp
	if c.Status == check.StatusDown {
		tmpl = cfg.CmdDown
	}
	cmd := Substitute(tmpl, Vars(c, time.Now()))

	s.Log.Debug("running command", zap.String("channel", ch.Code))
	err := exec.Command("sh", "-c", cmd).Run()
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return fmt.Errorf("Command returned exit code %d", ee.ExitCode())
	}
	return fmt.Errorf("Command failed: %v", err)
}
