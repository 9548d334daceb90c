package ops

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// stderr from ffmpeg includes its full progress log; only the tail carries
// the actual failure.
const maxStderrInError = 500

// run executes an external tool and captures stderr for error reporting.
// When mustExist is set, the tool must have produced that file.
func (p *processors) run(ctx context.Context, bin string, args []string, mustExist string) error {
	p.logger.Debug("Running tool",
		slog.String("bin", bin),
		slog.String("args", strings.Join(args, " ")),
	)

	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		name := filepath.Base(bin)
		if msg := tail(strings.TrimSpace(stderr.String()), maxStderrInError); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}

	if mustExist != "" {
		if _, err := os.Stat(mustExist); err != nil {
			return fmt.Errorf("%s produced no output file", filepath.Base(bin))
		}
	}

	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
