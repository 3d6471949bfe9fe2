package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Script invokes the external control script as `<path> --mode <action>`.
type Script struct {
	path    string
	timeout time.Duration
	log     *zap.Logger
}

func NewScript(path string, timeout time.Duration, log *zap.Logger) *Script {
	return &Script{path: path, timeout: timeout, log: log}
}

func (s *Script) Run(ctx context.Context, action Action) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.path, "--mode", string(action))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	s.log.Debug("control script finished",
		zap.String("script", s.path),
		zap.String("mode", string(action)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stdout", strings.TrimSpace(stdout.String())),
	)
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s --mode %s: %w: %s", s.path, action, err, msg)
		}
		return fmt.Errorf("%s --mode %s: %w", s.path, action, err)
	}
	return nil
}
